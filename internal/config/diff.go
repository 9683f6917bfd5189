package config

import (
	"strings"

	logx "menubot/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Secrets (token, dsn) are
// never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.retention", newCfg.Storage.Retention),
			logx.String("storage.prune_schedule", newCfg.Storage.PruneSchedule),
		)
	}

	if oldCfg.Menu != newCfg.Menu {
		changed = append(changed, "menu")
		fields = append(fields,
			logx.Int("menu.cache_size", newCfg.Menu.CacheSize),
			logx.String("menu.cache_ttl", newCfg.Menu.CacheTTL),
		)
	}

	if oldCfg.RateLimit != newCfg.RateLimit {
		changed = append(changed, "rate_limit")
		fields = append(fields,
			logx.Any("rate_limit.per_sec", newCfg.RateLimit.PerSec),
			logx.Int("rate_limit.burst", newCfg.RateLimit.Burst),
		)
	}

	return changed, fields
}

// RequiresRestart reports whether the change touches settings that are only
// read at startup.
func RequiresRestart(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	// retention and the prune schedule are applied live
	oldSt, newSt := oldCfg.Storage, newCfg.Storage
	oldSt.Retention, newSt.Retention = "", ""
	oldSt.PruneSchedule, newSt.PruneSchedule = "", ""
	return oldCfg.Telegram != newCfg.Telegram ||
		oldSt != newSt ||
		oldCfg.Menu != newCfg.Menu
}
