package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  poll_timeout: 20s
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/menus.db
  retention: 720h
  prune_schedule: "0 * * * *"
menu:
  key_prefix: bot
  cache_size: 100
rate_limit:
  per_sec: 1.5
  burst: 3
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseYAML(t *testing.T) {
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	m.DisableEnv()
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.PollTimeoutOrDefault() != 20*time.Second {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.RetentionValue() != 720*time.Hour {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Menu.KeyPrefix != "bot" || cfg.Menu.CacheSize != 100 || cfg.Menu.CacheTTLOrDefault() != 15*time.Minute {
		t.Fatalf("menu = %+v", cfg.Menu)
	}
	if cfg.RateLimit.PerSec != 1.5 || cfg.RateLimit.Burst != 3 {
		t.Fatalf("rate_limit = %+v", cfg.RateLimit)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return committed config")
	}
}

func TestParseJSONRejectsUnknownAndTrailing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: `{"telegram":{"token":"x"},"plugins":{}}`},
		{name: "trailing", body: `{"telegram":{"token":"x"}}{}`},
	}
	for _, tt := range tests {
		m := NewManager(writeFile(t, "config.json", tt.body))
		m.DisableEnv()
		if _, err := m.Parse(); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MENUBOT_TELEGRAM_TOKEN", "from-env")
	t.Setenv("MENUBOT_STORAGE_DRIVER", "bolt")
	t.Setenv("MENUBOT_STORAGE_PATH", "/tmp/menus.bolt")
	t.Setenv("MENUBOT_RATE_LIMIT_BURST", "9")

	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"from-file"},"storage":{"driver":"memory"}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Storage.Driver != "bolt" || cfg.Storage.Path != "/tmp/menus.bolt" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.RateLimit.Burst != 9 {
		t.Fatalf("burst = %d, want 9", cfg.RateLimit.Burst)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "t"}}
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("minimal config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "token", mutate: func(c *Config) { c.Telegram.Token = "" }, want: "telegram.token"},
		{name: "driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, want: "storage.driver"},
		{name: "path", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, want: "storage.path"},
		{name: "dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, want: "storage.dsn"},
		{name: "retention", mutate: func(c *Config) { c.Storage.Retention = "forever" }, want: "storage.retention"},
		{name: "schedule", mutate: func(c *Config) { c.Storage.PruneSchedule = "every tuesday" }, want: "storage.prune_schedule"},
		{name: "ttl", mutate: func(c *Config) { c.Menu.CacheTTL = "-1m" }, want: "menu.cache_ttl"},
		{name: "rate", mutate: func(c *Config) { c.RateLimit.PerSec = -1 }, want: "rate_limit.per_sec"},
		{name: "log chat", mutate: func(c *Config) { c.Logging.Telegram.Enabled = true }, want: "logging.telegram.chat_id"},
	}
	for _, tt := range tests {
		c := base()
		tt.mutate(c)
		err := Validate(c)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: err = %v, want ErrInvalid", tt.name, err)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: err = %v, want mention of %s", tt.name, err, tt.want)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "debug"}}
	changed, fields := SummarizeChange(oldCfg, newCfg)
	if len(changed) != 1 || changed[0] != "logging" {
		t.Fatalf("changed = %v, want [logging]", changed)
	}
	if len(fields) == 0 {
		t.Fatalf("expected log fields")
	}
	if RequiresRestart(oldCfg, newCfg) {
		t.Fatalf("logging change must not require restart")
	}
	newCfg.Storage.Retention = "24h"
	if RequiresRestart(oldCfg, newCfg) {
		t.Fatalf("retention change is applied live")
	}
	newCfg.Storage.Driver = "file"
	if !RequiresRestart(oldCfg, newCfg) {
		t.Fatalf("storage change must require restart")
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	path := writeFile(t, "config.json", `{"telegram":{"token":"a"},"logging":{"level":"info"}}`)
	m := NewManager(path)
	m.DisableEnv()
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"telegram":{"token":""}}`), 0o600); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"telegram":{"token":"a"},"logging":{"level":"debug"}}`), 0o600); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config published")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("committed level = %q", m.Get().Logging.Level)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}
