package arr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client talks to one *arr instance (Sonarr/Radarr/Lidarr). The three share
// the same API surface for everything this scheduler touches; only the API
// prefix and a few field names differ.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL   string
	APIKey    string
	APIPrefix string // "/api/v3" (sonarr/radarr) or "/api/v1" (lidarr)
	Timeout   time.Duration

	// CommandsPerSec caps POST /command bursts. 0 disables limiting.
	CommandsPerSec int
}

func NewClient(opts ClientOptions) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := resty.New().
		SetBaseURL(base+opts.APIPrefix).
		SetTimeout(timeout).
		SetHeader("X-Api-Key", opts.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "searcharr/2.0")

	var lim *rate.Limiter
	if opts.CommandsPerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.CommandsPerSec), opts.CommandsPerSec)
	}
	return &Client{http: hc, limiter: lim}
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, params map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Get(normalizePath(path))
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return httpError("GET", path, resp)
	}
	return nil
}

// PutJSON issues a PUT with a JSON payload.
func (c *Client) PutJSON(ctx context.Context, path string, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Put(normalizePath(path))
	if err != nil {
		return fmt.Errorf("PUT %s: %w", path, err)
	}
	if resp.IsError() {
		return httpError("PUT", path, resp)
	}
	return nil
}

// PostCommand issues a POST /command, honoring the command rate limit.
func (c *Client) PostCommand(ctx context.Context, payload any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/command")
	if err != nil {
		return fmt.Errorf("POST /command: %w", err)
	}
	if resp.IsError() {
		return httpError("POST", "/command", resp)
	}
	return nil
}

// wantedPage is the envelope of the paged wanted endpoints.
type wantedPage struct {
	Page         int      `json:"page"`
	PageSize     int      `json:"pageSize"`
	TotalRecords int      `json:"totalRecords"`
	Records      []Record `json:"records"`
}

// PagedRecords drains a paged wanted endpoint ({page, pageSize,
// totalRecords, records}). maxRecords 0 means no cap.
func (c *Client) PagedRecords(ctx context.Context, path string, pageSize, maxRecords int) ([]Record, error) {
	if pageSize <= 0 {
		pageSize = 200
	}
	var out []Record
	for page := 1; ; page++ {
		var data wantedPage
		err := c.GetJSON(ctx, path, map[string]string{
			"page":     strconv.Itoa(page),
			"pageSize": strconv.Itoa(pageSize),
		}, &data)
		if err != nil {
			return nil, err
		}

		out = append(out, data.Records...)
		if maxRecords > 0 && len(out) >= maxRecords {
			return out[:maxRecords], nil
		}
		if len(data.Records) == 0 {
			return out, nil
		}
		if len(out) >= data.TotalRecords {
			return out, nil
		}
	}
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

func httpError(method, path string, resp *resty.Response) error {
	body := string(resp.Body())
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Errorf("%s %s failed: %d %s", method, path, resp.StatusCode(), body)
}
