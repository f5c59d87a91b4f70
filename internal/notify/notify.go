// Package notify delivers end-of-tick run summaries to a Telegram chat.
// Delivery is best-effort and fully asynchronous: a full queue or a dead
// bot never stalls the scheduling loop.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"searcharr/internal/search"
	logx "searcharr/pkg/logx"
)

type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerMin int
}

// Service owns the bot connection and a single delivery worker.
type Service struct {
	log     logx.Logger
	chatID  int64
	limiter *rate.Limiter

	bot *tele.Bot

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New builds the service. Returns (nil, nil) when notifications are
// disabled so callers can treat the nil service as a no-op.
func New(cfg Config, log logx.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Token) == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("notify: token and chat_id are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	// Send-only: no poller, we never receive updates.
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 20
	}

	return &Service{
		log:     log,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
		bot:     bot,
		queue:   make(chan string, 64),
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

func (s *Service) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

// RunSummary enqueues a tick summary. Non-blocking; drops when the queue is
// full.
func (s *Service) RunSummary(reports []search.Report, took time.Duration, runErrs int) {
	if s == nil {
		return
	}
	msg := formatSummary(reports, took, runErrs)
	if msg == "" {
		return
	}
	select {
	case s.queue <- msg:
	default:
		s.log.Debug("notify queue full; dropping summary")
	}
}

func (s *Service) worker(ctx context.Context) {
	recipient := &tele.Chat{ID: s.chatID}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if _, err := s.bot.Send(recipient, msg); err != nil {
				s.log.Warn("notify send failed", logx.Err(err))
			}
		}
	}
}

func formatSummary(reports []search.Report, took time.Duration, runErrs int) string {
	if len(reports) == 0 && runErrs == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("searcharr run finished\n")
	for _, rep := range reports {
		fmt.Fprintf(&b, "- %s: missing %d/%d, upgrades %d/%d",
			rep.App,
			len(rep.MissingPicked), rep.MissingEligible,
			len(rep.UpgradesPicked), rep.UpgradesEligible,
		)
		if rep.Promoted > 0 {
			fmt.Fprintf(&b, ", promoted %d", rep.Promoted)
		}
		b.WriteString("\n")
	}
	if runErrs > 0 {
		fmt.Fprintf(&b, "errors: %d (see logs)\n", runErrs)
	}
	fmt.Fprintf(&b, "took %s", took.Round(time.Millisecond))
	return b.String()
}
