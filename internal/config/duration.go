package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// PollTimeoutOrDefault returns telegram.poll_timeout, or 10s when unset.
func (t TelegramConfig) PollTimeoutOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, 10*time.Second)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// CacheTTLOrDefault returns menu.cache_ttl, or 15m when unset.
func (m MenuConfig) CacheTTLOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("menu.cache_ttl", m.CacheTTL, 15*time.Minute)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// RetentionValue returns storage.retention; 0 disables pruning.
func (s StorageConfig) RetentionValue() time.Duration {
	d, err := ParseDurationField("storage.retention", s.Retention)
	if err != nil {
		return 0
	}
	return d
}

// BusyTimeoutValue returns storage.busy_timeout; 0 means driver default.
func (s StorageConfig) BusyTimeoutValue() time.Duration {
	d, _ := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	return d
}

// PruneScheduleOrDefault returns storage.prune_schedule, or "@hourly".
func (s StorageConfig) PruneScheduleOrDefault() string {
	if spec := strings.TrimSpace(s.PruneSchedule); spec != "" {
		return spec
	}
	return "@hourly"
}
