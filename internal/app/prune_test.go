package app

import (
	"context"
	"testing"
	"time"

	"menubot/internal/storage"
	logx "menubot/pkg/logx"
)

func TestPrunerRunOnce(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()
	if err := st.Write(ctx, "menu:menus:a", []byte(`{}`)); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	p := newPruner(st, logx.Nop())
	if n, err := p.RunOnce(ctx); err != nil || n != 0 {
		t.Fatalf("unscheduled prune = %d, %v", n, err)
	}

	if err := p.Apply("@hourly", time.Hour); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if n, err := p.RunOnce(ctx); err != nil || n != 0 {
		t.Fatalf("fresh record pruned: %d, %v", n, err)
	}

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := p.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("prune = %d, %v, want 1", n, err)
	}
	if _, ok, _ := st.Read(ctx, "menu:menus:a"); ok {
		t.Fatalf("record survived pruning")
	}
}

func TestPrunerApply(t *testing.T) {
	p := newPruner(nil, logx.Nop())
	if err := p.Apply("not a schedule", time.Hour); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	if err := p.Apply("*/5 * * * *", time.Hour); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	first := p.entry
	if err := p.Apply("*/5 * * * *", 2*time.Hour); err != nil || p.entry != first {
		t.Fatalf("same schedule must keep the entry: %v", err)
	}
	if p.retention != 2*time.Hour {
		t.Fatalf("retention = %v", p.retention)
	}
	if err := p.Apply("", 0); err != nil || p.entry != 0 {
		t.Fatalf("zero retention must unschedule: entry=%d err=%v", p.entry, err)
	}
	if len(p.c.Entries()) != 0 {
		t.Fatalf("cron entries left: %d", len(p.c.Entries()))
	}
}
