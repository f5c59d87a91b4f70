package arr

import (
	"context"
	"strconv"
	"strings"
)

// Record is one JSON object from a wanted/library endpoint. The *arr apps
// disagree on field shapes across versions (bare int, digit string, nested
// object), so records stay loosely typed and ids are extracted defensively.
type Record map[string]any

// Tag is one entry of GET /tag.
type Tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// TagIDs resolves the search/done tag labels to ids, case-insensitively.
// A missing label yields (nil) for that position, not an error; the caller
// decides which passes can still run.
func (c *Client) TagIDs(ctx context.Context, searchLabel, doneLabel string) (searchID, doneID *int64, err error) {
	var tags []Tag
	if err := c.GetJSON(ctx, "/tag", nil, &tags); err != nil {
		return nil, nil, err
	}
	for _, t := range tags {
		t := t
		if strings.EqualFold(t.Label, searchLabel) {
			searchID = &t.ID
		}
		if strings.EqualFold(t.Label, doneLabel) {
			doneID = &t.ID
		}
	}
	return searchID, doneID, nil
}

// BuildTagIndex maps item id -> set of tag ids from a full library listing.
func BuildTagIndex(items []Record) map[int64]map[int64]struct{} {
	out := make(map[int64]map[int64]struct{}, len(items))
	for _, it := range items {
		id, ok := ExtractID(it, "id")
		if !ok {
			continue
		}
		tags := map[int64]struct{}{}
		if raw, ok := it["tags"].([]any); ok {
			for _, v := range raw {
				if tid, ok := coerceID(v); ok {
					tags[tid] = struct{}{}
				}
			}
		}
		out[id] = tags
	}
	return out
}

// ExtractID pulls a numeric id out of a record, trying keys in order. Each
// key may hold a bare number, a digit string, or a nested {"id": n} object;
// direct forms win over nested ones.
func ExtractID(rec Record, keys ...string) (int64, bool) {
	for _, k := range keys {
		if id, ok := coerceID(rec[k]); ok {
			return id, true
		}
	}
	for _, k := range keys {
		if inner, ok := rec[k].(map[string]any); ok {
			if id, ok := coerceID(inner["id"]); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func coerceID(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		id := int64(x)
		if id < 0 || float64(id) != x {
			return 0, false
		}
		return id, true
	case int64:
		if x < 0 {
			return 0, false
		}
		return x, true
	case int:
		if x < 0 {
			return 0, false
		}
		return int64(x), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil || id < 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
