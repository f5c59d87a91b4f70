// Package app wires the daemon together: config manager, logging service,
// state store, picker, per-app runners and the tick loop.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"searcharr/internal/config"
	"searcharr/internal/notify"
	"searcharr/internal/picker"
	"searcharr/internal/runtime/supervisor"
	"searcharr/internal/search"
	"searcharr/internal/storage"
	logx "searcharr/pkg/logx"
)

type App struct {
	cfgMgr *config.ConfigManager
	logSvc *logx.Service
	log    logx.Logger

	pick   *picker.Picker
	store  storage.Store
	runner *search.Runner
	notify *notify.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewConfigManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log)
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		_ = ctx
		return c.Validate()
	})

	var rng *rand.Rand
	if cfg.RandomSeed != 0 {
		rng = rand.New(rand.NewSource(cfg.RandomSeed))
		log.Info("deterministic shuffles enabled", logx.Int64("seed", cfg.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	pick := picker.New(picker.WithRand(rng), picker.WithLogger(log))

	busyTimeout, err := config.ParseDurationField("state.busy_timeout", cfg.State.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.State.Driver,
		Path:        cfg.StatePath(),
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	var notifier *notify.Service
	if cfg.Notify != nil {
		notifier, err = notify.New(notify.Config{
			Enabled:    cfg.Notify.Enabled,
			Token:      cfg.Notify.Token,
			ChatID:     cfg.Notify.ChatID,
			RatePerMin: cfg.Notify.RatePerMin,
		}, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		pick:   pick,
		store:  store,
		runner: search.NewRunner(pick, rng, log),
		notify: notifier,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	st, err := a.store.Load(ctx)
	if err != nil {
		// Load is already lenient; an error here is unexpected but still
		// not worth refusing to start over.
		a.log.Warn("state load failed; starting fresh", logx.Err(err))
		st = picker.NewState()
	}
	a.pick.Restore(st)

	a.notify.Start(ctx)

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.GoRestart("tick-loop", a.runLoop)
	a.sup.GoRestart("config-watch", a.cfgMgr.Watch)
	a.sup.Go("config-apply", a.applyConfigUpdates)

	if sent, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}

	a.log.Info("searcharr started", logx.String("schedule", a.cfgMgr.Get().ScheduleOrDefault()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)

	var supErr error
	if a.sup != nil {
		supErr = a.sup.Stop(ctx)
	}

	// Final best-effort flush so a clean shutdown never loses a tick.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := a.store.Save(saveCtx, a.pick.Snapshot()); err != nil {
		a.log.Warn("final state save failed", logx.Err(err))
	}
	cancel()

	a.notify.Stop()
	_ = a.store.Close()
	a.log.Info("searcharr stopped")
	_ = a.logSvc.Close()
	return supErr
}

// applyConfigUpdates reacts to hot reloads: logging settings take effect
// immediately, everything else is picked up naturally at the next tick.
func (a *App) applyConfigUpdates(ctx context.Context) error {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)

	prev := a.cfgMgr.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-ch:
			if !ok {
				return nil
			}
			if cfg == nil {
				continue
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			changed, attrs, _ := config.SummarizeConfigChange(prev, cfg)
			if len(changed) > 0 {
				a.log.Info("config reloaded", append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)...)
			}
			prev = cfg
		}
	}
}
