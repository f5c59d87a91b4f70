package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the whole config file.
//
// The file may be JSON or YAML (decided by extension); both are decoded
// strictly, so typos in keys are rejected instead of silently ignored.
//
// All duration-like fields are Go duration strings (e.g. "30s", "12h").
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Schedule drives the tick cadence. Accepted forms:
	//   - cron expression: "*/30 * * * *", "@hourly"
	//   - interval: "1h", "45m", "02:30" (HH:MM)
	//   - explicit prefixes "cron:" / "every:"
	// Default: "1h".
	Schedule string `json:"schedule,omitempty"`

	// State controls where picker state lives between runs.
	State StateConfig `json:"state"`

	HTTP HTTPConfig `json:"http,omitempty"`

	// DryRun logs would-be search commands and retags without sending them.
	// Draws still advance cycle position but leave cooldowns untouched.
	DryRun bool `json:"dry_run,omitempty"`

	// RandomSeed seeds the picker shuffles when non-zero (deterministic runs).
	RandomSeed int64 `json:"random_seed,omitempty"`

	Tags TagsConfig `json:"tags,omitempty"`

	// AutoPromote is a pointer so "omitted" defaults to true.
	AutoPromote *bool `json:"auto_promote,omitempty"`

	// DefaultCooldown applies when an app/pass has no override. "0s"
	// disables cooldown gating.
	DefaultCooldown string `json:"default_cooldown,omitempty"`

	Apps map[string]AppConfig `json:"apps"`

	Notify *NotifyConfig `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileTarget `json:"file,omitempty"`
}

type FileTarget struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StateConfig mirrors the storage layer's drivers.
type StateConfig struct {
	Driver      string `json:"driver,omitempty"` // "file" (default) | "sqlite"
	Path        string `json:"path,omitempty"`   // default: "./data/state.json"
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type HTTPConfig struct {
	Timeout        string `json:"timeout,omitempty"`          // default: "30s"
	WantedPageSize int    `json:"wanted_page_size,omitempty"` // default: 200
	CommandsPerSec int    `json:"commands_per_sec,omitempty"` // default: 5
}

// TagsConfig names the two labels the scheduler keys on. An item tagged
// Search is fed to the missing pass; an item tagged Done is fed to the
// upgrades pass.
type TagsConfig struct {
	Search string `json:"search,omitempty"` // default: "search"
	Done   string `json:"done,omitempty"`   // default: "done"
}

// AppConfig configures one upstream app (sonarr/radarr/lidarr).
type AppConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`

	Limits    AppLimits    `json:"limits,omitempty"`
	Cooldowns AppCooldowns `json:"cooldowns,omitempty"`
}

// AppLimits caps the per-tick selection counts. Zero-valued fields fall
// back to defaults (missing/upgrades: 10, promote: 50); use -1 to disable
// a pass explicitly.
type AppLimits struct {
	Missing  int `json:"missing,omitempty"`
	Upgrades int `json:"upgrades,omitempty"`
	Promote  int `json:"promote,omitempty"`
}

// AppCooldowns overrides the global default per pass.
type AppCooldowns struct {
	Default  string `json:"default,omitempty"`
	Missing  string `json:"missing,omitempty"`
	Upgrades string `json:"upgrades,omitempty"`
}

// NotifyConfig controls the optional Telegram run-summary sink.
type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerMin int    `json:"rate_per_min,omitempty"` // default: 20
}

// KnownApps are the upstream apps the runner understands.
var KnownApps = []string{"sonarr", "radarr", "lidarr"}

const (
	defaultSchedule       = "1h"
	defaultStatePath      = "./data/state.json"
	defaultHTTPTimeout    = 30 * time.Second
	defaultWantedPageSize = 200
	defaultCommandsPerSec = 5
	defaultMissingLimit   = 10
	defaultUpgradesLimit  = 10
	defaultPromoteLimit   = 50
)

// Validate checks the config without mutating it. It is also installed as
// the ConfigManager's hot-reload validator.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseDurationField("default_cooldown", c.DefaultCooldown); err != nil {
		return err
	}
	if _, err := ParseDurationField("http.timeout", c.HTTP.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("state.busy_timeout", c.State.BusyTimeout); err != nil {
		return err
	}
	if c.HTTP.WantedPageSize < 0 {
		return fmt.Errorf("http.wanted_page_size must be >= 0")
	}
	for name, app := range c.Apps {
		key := strings.ToLower(strings.TrimSpace(name))
		if !isKnownApp(key) {
			return fmt.Errorf("apps.%s: unknown app (expected one of %s)", name, strings.Join(KnownApps, ", "))
		}
		if app.Enabled && strings.TrimSpace(app.URL) != "" {
			if _, err := url.Parse(strings.TrimSpace(app.URL)); err != nil {
				return fmt.Errorf("apps.%s.url: %w", name, err)
			}
		}
		for field, raw := range map[string]string{
			"default":  app.Cooldowns.Default,
			"missing":  app.Cooldowns.Missing,
			"upgrades": app.Cooldowns.Upgrades,
		} {
			if _, err := ParseDurationField("apps."+name+".cooldowns."+field, raw); err != nil {
				return err
			}
		}
	}
	if c.Notify != nil && c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.Token) == "" {
			return fmt.Errorf("notify.token is required when notify is enabled")
		}
		if c.Notify.ChatID == 0 {
			return fmt.Errorf("notify.chat_id is required when notify is enabled")
		}
	}
	return nil
}

func isKnownApp(name string) bool {
	for _, k := range KnownApps {
		if k == name {
			return true
		}
	}
	return false
}

// ---- Resolved accessors (defaults applied) ----

func (c *Config) ScheduleOrDefault() string {
	if s := strings.TrimSpace(c.Schedule); s != "" {
		return s
	}
	return defaultSchedule
}

func (c *Config) StatePath() string {
	if p := strings.TrimSpace(c.State.Path); p != "" {
		return p
	}
	return defaultStatePath
}

func (c *Config) HTTPTimeout() time.Duration {
	d, err := ParseDurationOrDefault("http.timeout", c.HTTP.Timeout, defaultHTTPTimeout)
	if err != nil {
		return defaultHTTPTimeout
	}
	return d
}

func (c *Config) WantedPageSize() int {
	if c.HTTP.WantedPageSize > 0 {
		return c.HTTP.WantedPageSize
	}
	return defaultWantedPageSize
}

func (c *Config) CommandsPerSec() int {
	if c.HTTP.CommandsPerSec > 0 {
		return c.HTTP.CommandsPerSec
	}
	return defaultCommandsPerSec
}

func (c *Config) SearchTag() string {
	if t := strings.TrimSpace(c.Tags.Search); t != "" {
		return t
	}
	return "search"
}

func (c *Config) DoneTag() string {
	if t := strings.TrimSpace(c.Tags.Done); t != "" {
		return t
	}
	return "done"
}

func (c *Config) AutoPromoteEnabled() bool {
	if c.AutoPromote == nil {
		return true
	}
	return *c.AutoPromote
}

func (l AppLimits) MissingOrDefault() int  { return limitOrDefault(l.Missing, defaultMissingLimit) }
func (l AppLimits) UpgradesOrDefault() int { return limitOrDefault(l.Upgrades, defaultUpgradesLimit) }
func (l AppLimits) PromoteOrDefault() int  { return limitOrDefault(l.Promote, defaultPromoteLimit) }

func limitOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	if v < 0 {
		return 0
	}
	return v
}

// CooldownFor resolves the cooldown window for one app pass.
//
// Precedence: apps.<name>.cooldowns.<pass> > apps.<name>.cooldowns.default >
// default_cooldown > 0 (disabled). Mirrors the layered override scheme the
// deployment grew up with.
func (c *Config) CooldownFor(app string, pass string) time.Duration {
	ac, ok := c.Apps[app]
	if ok {
		var raw string
		switch pass {
		case "missing":
			raw = ac.Cooldowns.Missing
		case "upgrades":
			raw = ac.Cooldowns.Upgrades
		}
		if d, err := ParseDurationField("", raw); err == nil && strings.TrimSpace(raw) != "" {
			return d
		}
		if d, err := ParseDurationField("", ac.Cooldowns.Default); err == nil && strings.TrimSpace(ac.Cooldowns.Default) != "" {
			return d
		}
	}
	if d, err := ParseDurationField("", c.DefaultCooldown); err == nil {
		return d
	}
	return 0
}
