package config

import (
	"reflect"
	"sort"
	"strings"

	logx "searcharr/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like API
// keys or bot tokens), and (3) the app names whose config changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Schedule
	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule", newCfg.ScheduleOrDefault()))
	}

	// State
	if oldCfg.State != newCfg.State {
		changed = append(changed, "state")
		attrs = append(attrs,
			logx.String("state.driver", newCfg.State.Driver),
			logx.String("state.path", newCfg.StatePath()),
		)
	}

	// HTTP
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Duration("http.timeout", newCfg.HTTPTimeout()),
			logx.Int("http.wanted_page_size", newCfg.WantedPageSize()),
		)
	}

	// Run behavior
	if oldCfg.DryRun != newCfg.DryRun ||
		oldCfg.Tags != newCfg.Tags ||
		oldCfg.AutoPromoteEnabled() != newCfg.AutoPromoteEnabled() ||
		strings.TrimSpace(oldCfg.DefaultCooldown) != strings.TrimSpace(newCfg.DefaultCooldown) {
		changed = append(changed, "run")
		attrs = append(attrs,
			logx.Bool("dry_run", newCfg.DryRun),
			logx.String("tags.search", newCfg.SearchTag()),
			logx.String("tags.done", newCfg.DoneTag()),
			logx.Bool("auto_promote", newCfg.AutoPromoteEnabled()),
		)
	}

	// Notify (never log token)
	oldNotify := notifyOrZero(oldCfg.Notify)
	newNotify := notifyOrZero(newCfg.Notify)
	if oldNotify.Enabled != newNotify.Enabled ||
		oldNotify.ChatID != newNotify.ChatID ||
		oldNotify.RatePerMin != newNotify.RatePerMin ||
		(oldNotify.Token != "") != (newNotify.Token != "") {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.enabled", newNotify.Enabled),
			logx.Bool("notify.token_set", strings.TrimSpace(newNotify.Token) != ""),
		)
	}

	// Apps (by name; never log api_key)
	appsChanged := diffApps(oldCfg.Apps, newCfg.Apps)
	if len(appsChanged) > 0 {
		changed = append(changed, "apps")
		attrs = append(attrs, logx.String("apps.changed", strings.Join(appsChanged, ",")))
	}

	return changed, attrs, appsChanged
}

func notifyOrZero(n *NotifyConfig) NotifyConfig {
	if n == nil {
		return NotifyConfig{}
	}
	return *n
}

func diffApps(oldApps, newApps map[string]AppConfig) []string {
	names := map[string]struct{}{}
	for n := range oldApps {
		names[n] = struct{}{}
	}
	for n := range newApps {
		names[n] = struct{}{}
	}

	var out []string
	for n := range names {
		o, okO := oldApps[n]
		nw, okN := newApps[n]
		if okO != okN || !reflect.DeepEqual(o, nw) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
