package app

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"searcharr/internal/arr"
	"searcharr/internal/config"
	"searcharr/internal/search"
	logx "searcharr/pkg/logx"
)

// Never spin faster than this, whatever the schedule says.
const minTickSpacing = 5 * time.Second

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// runLoop executes one tick immediately, then sleeps according to the
// configured schedule. The schedule is re-read every iteration so a hot
// reload takes effect without a restart.
func (a *App) runLoop(ctx context.Context) error {
	for {
		cfg := a.cfgMgr.Get()
		a.runTick(ctx, cfg)

		if ctx.Err() != nil {
			return nil
		}

		wait := a.nextWait(cfg)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (a *App) nextWait(cfg *config.Config) time.Duration {
	raw := cfg.ScheduleOrDefault()
	spec, err := ParseSchedule(raw)
	if err != nil {
		a.log.Warn("invalid schedule; falling back to 1h", logx.String("schedule", raw), logx.Err(err))
		return time.Hour
	}

	var wait time.Duration
	switch spec.Kind {
	case SpecCron:
		sched, err := cronParser.Parse(spec.Cron)
		if err != nil {
			a.log.Warn("invalid cron schedule; falling back to 1h", logx.String("schedule", raw), logx.Err(err))
			return time.Hour
		}
		wait = time.Until(sched.Next(time.Now()))
	default:
		wait = spec.Every
	}

	if wait < minTickSpacing {
		wait = minTickSpacing
	}
	return wait
}

// runTick runs all enabled apps once and persists picker state at the end,
// whether or not anything failed: partial progress must survive restarts.
func (a *App) runTick(ctx context.Context, cfg *config.Config) {
	start := time.Now()

	var reports []search.Report
	runErrs := 0

	for _, name := range config.KnownApps {
		if ctx.Err() != nil {
			break
		}
		ac, ok := cfg.Apps[name]
		if !ok || !ac.Enabled {
			continue
		}
		if strings.TrimSpace(ac.URL) == "" || strings.TrimSpace(ac.APIKey) == "" {
			a.log.Warn("app enabled but url/api_key not set; skipping", logx.String("app", name))
			continue
		}

		spec := search.Specs[name]
		client := arr.NewClient(arr.ClientOptions{
			BaseURL:        ac.URL,
			APIKey:         ac.APIKey,
			APIPrefix:      spec.APIPrefix,
			Timeout:        cfg.HTTPTimeout(),
			CommandsPerSec: cfg.CommandsPerSec(),
		})

		rep, err := a.runner.RunApp(ctx, client, spec, search.Params{
			SearchTag:        cfg.SearchTag(),
			DoneTag:          cfg.DoneTag(),
			MissingLimit:     ac.Limits.MissingOrDefault(),
			UpgradesLimit:    ac.Limits.UpgradesOrDefault(),
			PromoteLimit:     ac.Limits.PromoteOrDefault(),
			MissingCooldown:  cfg.CooldownFor(name, "missing"),
			UpgradesCooldown: cfg.CooldownFor(name, "upgrades"),
			WantedPageSize:   cfg.WantedPageSize(),
			DryRun:           cfg.DryRun,
			AutoPromote:      cfg.AutoPromoteEnabled(),
		})
		reports = append(reports, rep)
		if err != nil {
			runErrs++
			a.log.Error("app run failed", logx.String("app", name), logx.Err(err))
			// Other apps still get their turn this tick.
		}
	}

	if err := a.store.Save(ctx, a.pick.Snapshot()); err != nil {
		a.log.Warn("state save failed; retrying next tick", logx.Err(err))
	}

	took := time.Since(start)
	a.notify.RunSummary(reports, took, runErrs)
	a.log.Info("tick finished",
		logx.Int("apps", len(reports)),
		logx.Int("errors", runErrs),
		logx.Duration("took", took),
	)
}
