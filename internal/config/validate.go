package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var ErrInvalid = errors.New("invalid config")

var knownDrivers = map[string]bool{
	"": true, "none": true,
	"memory": true, "mem": true,
	"file":   true,
	"sqlite": true, "sqlite3": true,
	"bolt": true, "bbolt": true,
	"postgres": true, "postgresql": true, "pg": true,
}

// Validate checks cfg without modifying it. All problems are reported
// together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	dur := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required")
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)

	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path is required when logging.file.enabled")
	}
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		add("logging.telegram.chat_id is required when logging.telegram.enabled")
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		add("logging.telegram.rate_per_sec must be >= 0")
	}

	st := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(st.Driver))
	switch {
	case !knownDrivers[driver]:
		add("storage.driver: unknown driver %q", st.Driver)
	case driver == "file" || driver == "sqlite" || driver == "sqlite3" || driver == "bolt" || driver == "bbolt":
		if strings.TrimSpace(st.Path) == "" {
			add("storage.path is required for driver %q", driver)
		}
	case driver == "postgres" || driver == "postgresql" || driver == "pg":
		if strings.TrimSpace(st.DSN) == "" {
			add("storage.dsn is required for driver %q", driver)
		}
	}
	dur("storage.busy_timeout", st.BusyTimeout)
	dur("storage.retention", st.Retention)
	if st.MaxConns < 0 {
		add("storage.max_conns must be >= 0")
	}
	if spec := strings.TrimSpace(st.PruneSchedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			add("storage.prune_schedule: %v", err)
		}
	}

	if cfg.Menu.CacheSize < 0 {
		add("menu.cache_size must be >= 0")
	}
	dur("menu.cache_ttl", cfg.Menu.CacheTTL)

	if cfg.RateLimit.PerSec < 0 {
		add("rate_limit.per_sec must be >= 0")
	}
	if cfg.RateLimit.Burst < 0 {
		add("rate_limit.burst must be >= 0")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
