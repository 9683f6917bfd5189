package app

import (
	"strings"

	"menubot/internal/config"
	"menubot/internal/storage"
	logx "menubot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ChatID:     lc.Telegram.ChatID,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

// mapStorageConfig reports false when no persistent driver is configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: sc.BusyTimeoutValue(),
		MaxConns:    sc.MaxConns,
	}, true
}

// openStore opens the configured store. Without one, records live in
// process memory and are lost on restart.
func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, ok := mapStorageConfig(cfg)
	if !ok {
		log.Warn("no storage driver configured; navigation history is kept in memory only")
		return storage.Open(storage.Config{Driver: "memory"}, log)
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver))
	return st, nil
}
