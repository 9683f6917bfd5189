package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"menubot/internal/storage"
	logx "menubot/pkg/logx"
)

var pruneParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// pruner deletes stored menus and histories older than the retention on a
// cron schedule.
type pruner struct {
	mu        sync.Mutex
	store     storage.Store
	log       logx.Logger
	c         *cron.Cron
	entry     cron.EntryID
	spec      string
	retention time.Duration
	now       func() time.Time
	timeout   time.Duration
}

func newPruner(store storage.Store, log logx.Logger) *pruner {
	cl := cronLogger{log: log}
	return &pruner{
		store: store,
		log:   log,
		c: cron.New(
			cron.WithParser(pruneParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		now:     time.Now,
		timeout: time.Minute,
	}
}

// Apply (re)schedules the job. A retention of 0 unschedules it.
func (p *pruner) Apply(spec string, retention time.Duration) error {
	spec = strings.TrimSpace(spec)
	p.mu.Lock()
	defer p.mu.Unlock()

	if retention <= 0 {
		if p.entry != 0 {
			p.c.Remove(p.entry)
			p.entry = 0
			p.spec = ""
			p.log.Info("storage pruning disabled")
		}
		p.retention = 0
		return nil
	}
	p.retention = retention
	if p.entry != 0 && p.spec == spec {
		return nil
	}
	sched, err := pruneParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("storage.prune_schedule %q: %w", spec, err)
	}
	if p.entry != 0 {
		p.c.Remove(p.entry)
	}
	p.entry = p.c.Schedule(sched, cron.FuncJob(p.run))
	p.spec = spec
	p.log.Info("storage pruning scheduled", logx.String("schedule", spec), logx.Duration("retention", retention))
	return nil
}

func (p *pruner) Start() { p.c.Start() }

func (p *pruner) Stop(ctx context.Context) error {
	select {
	case <-p.c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if _, err := p.RunOnce(ctx); err != nil {
		p.log.Warn("storage prune failed", logx.Err(err))
	}
}

// RunOnce prunes records last written before now minus the retention.
func (p *pruner) RunOnce(ctx context.Context) (int, error) {
	p.mu.Lock()
	retention := p.retention
	p.mu.Unlock()
	if retention <= 0 || p.store == nil {
		return 0, nil
	}
	start := p.now()
	n, err := p.store.Prune(ctx, start.Add(-retention))
	if err != nil {
		return n, err
	}
	lvl := p.log.Debug
	if n > 0 {
		lvl = p.log.Info
	}
	lvl("storage pruned", logx.Int("removed", n), logx.Duration("took", time.Since(start)))
	return n, nil
}

// cronLogger feeds cron's own messages into logx.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
