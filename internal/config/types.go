package config

// Config is the root configuration document. Files may be JSON or YAML;
// unknown keys are rejected. Any leaf can be overridden from the environment
// with the MENUBOT_ prefix, e.g. MENUBOT_TELEGRAM_TOKEN or
// MENUBOT_STORAGE_DRIVER. Keys are derived from field names; explicit
// envconfig tags are avoided because envconfig also looks the bare tag up
// without the prefix (STORAGE_PATH would read $PATH).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram" split_words:"true"`
	Logging   LoggingConfig   `json:"logging" split_words:"true"`
	Storage   StorageConfig   `json:"storage" split_words:"true"`
	Menu      MenuConfig      `json:"menu" split_words:"true"`
	RateLimit RateLimitConfig `json:"rate_limit" split_words:"true"`
}

type TelegramConfig struct {
	Token string `json:"token" split_words:"true"`
	// PollTimeout is the long-poll timeout. Default "10s".
	PollTimeout string `json:"poll_timeout,omitempty" split_words:"true"`
}

type LoggingConfig struct {
	Level    string          `json:"level" split_words:"true"`
	Console  bool            `json:"console" split_words:"true"`
	File     LoggingFile     `json:"file" split_words:"true"`
	Telegram LoggingTelegram `json:"telegram" split_words:"true"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled" split_words:"true"`
	Path    string `json:"path" split_words:"true"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled" split_words:"true"`
	ChatID     int64  `json:"chat_id" split_words:"true"`
	ThreadID   int    `json:"thread_id,omitempty" split_words:"true"`
	MinLevel   string `json:"min_level,omitempty" split_words:"true"`
	RatePerSec int    `json:"rate_per_sec,omitempty" split_words:"true"`
}

// StorageConfig selects where menu metadata and navigation history live.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/menus.db", "retention": "720h" }
//
// Drivers: memory, file, sqlite, bolt, postgres. Empty or "none" keeps
// records in process memory only.
type StorageConfig struct {
	Driver      string `json:"driver" split_words:"true"`
	Path        string `json:"path,omitempty" split_words:"true"`
	DSN         string `json:"dsn,omitempty" split_words:"true"`
	BusyTimeout string `json:"busy_timeout,omitempty" split_words:"true"` // sqlite
	MaxConns    int    `json:"max_conns,omitempty" split_words:"true"`    // postgres

	// Retention drops records not written for this long. "0s" keeps
	// everything. A message's history is rewritten on every send or edit
	// of a menu to it, so retention counts from the last time it was shown.
	Retention string `json:"retention,omitempty" split_words:"true"`
	// PruneSchedule is a standard 5-field cron spec or descriptor
	// ("@hourly"). Default "@hourly".
	PruneSchedule string `json:"prune_schedule,omitempty" split_words:"true"`
}

type MenuConfig struct {
	// KeyPrefix namespaces storage keys. Default "menu".
	KeyPrefix string `json:"key_prefix,omitempty" split_words:"true"`
	// CacheSize bounds renders held in memory. Default 5000.
	CacheSize int `json:"cache_size,omitempty" split_words:"true"`
	// CacheTTL is how long a render stays in memory. Default "15m".
	CacheTTL string `json:"cache_ttl,omitempty" split_words:"true"`
}

// RateLimitConfig throttles inbound updates per chat. PerSec 0 disables it.
type RateLimitConfig struct {
	PerSec float64 `json:"per_sec" split_words:"true"`
	Burst  int     `json:"burst,omitempty" split_words:"true"`
}
