package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"menubot/internal/config"
	rtsup "menubot/internal/runtime/supervisor"
	"menubot/internal/storage"
	kit "menubot/internal/transport"
	telegram "menubot/internal/transport/telegram/adapter"
	"menubot/internal/transport/telegram/router"
	logx "menubot/pkg/logx"
	"menubot/pkg/menu"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	sender  kit.Sender

	nav     *menu.Navigator
	reg     *menu.Registry
	limiter *router.RateLimiter
	router  *router.Router
	prune   *pruner

	updates chan kit.Update
}

type options struct {
	adapter kit.Adapter
	noEnv   bool
}

type Option func(*options)

// WithAdapter replaces the Telegram adapter, e.g. with a fake in tests.
func WithAdapter(ad kit.Adapter) Option { return func(o *options) { o.adapter = ad } }

// WithoutEnv ignores MENUBOT_* environment overrides.
func WithoutEnv() Option { return func(o *options) { o.noEnv = true } }

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	if o.noEnv {
		cfgm.DisableEnv()
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The Telegram sink stays silent until the adapter exists.
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	ad := o.adapter
	if ad == nil {
		tg, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: cfg.Telegram.PollTimeoutOrDefault(),
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		ad = tg
	}
	logSvc.SetSender(ad)

	store, err := openStore(cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	nav := menu.NewNavigator(store,
		menu.WithPrefix(cfg.Menu.KeyPrefix),
		menu.WithNavLogger(log.With(logx.String("comp", "menu.nav"))),
	)
	cache := menu.NewRenderCache().
		WithTTL(cfg.Menu.CacheTTLOrDefault()).
		WithMax(cfg.Menu.CacheSize)
	reg := menu.NewRegistry(
		menu.WithResolver(nav),
		menu.WithRenderCache(cache),
		menu.WithLogger(log.With(logx.String("comp", "menu"))),
	)
	sender := nav.Wrap(ad)

	limiter := router.NewRateLimiter(cfg.RateLimit.PerSec, cfg.RateLimit.Burst, log.With(logx.String("comp", "ratelimit")))
	rt := router.New(ad, sender, log.With(logx.String("comp", "router")), router.Options{
		Limiter:  limiter,
		Callback: []router.Middleware{router.MWMenu(reg)},
	})

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		store:   store,
		adapter: ad,
		sender:  sender,
		nav:     nav,
		reg:     reg,
		limiter: limiter,
		router:  rt,
		prune:   newPruner(store, log.With(logx.String("comp", "prune"))),
		updates: make(chan kit.Update, 256),
	}, nil
}

// Registry holds the menu templates. Register before Start.
func (a *App) Registry() *menu.Registry { return a.reg }

func (a *App) Navigator() *menu.Navigator { return a.nav }

// Sender sends through the navigator so rendered menus are recorded.
func (a *App) Sender() kit.Sender { return a.sender }

func (a *App) Logger() logx.Logger { return a.log }

// Commands replaces the command table. /help is always present.
func (a *App) Commands(cmds ...router.Command) { a.router.SetCommands(cmds) }

// Back edits the message at ref to the menu shown before the current one.
// It reports false when there is nothing to go back to. The history keeps
// its top record unless the edit succeeds.
func (a *App) Back(ctx context.Context, ref kit.MessageRef) (bool, error) {
	prev, ok, err := a.nav.Back(ctx, ref)
	if err != nil || !ok {
		return false, err
	}
	m, err := a.reg.Rerender(prev.TemplateID, prev.RenderID)
	if err != nil {
		return false, err
	}
	// The raw adapter: an edit through a.sender would append prev on top.
	out := m.Outgoing()
	out.ReplyMarkup = m.Wire
	if _, err := a.adapter.Edit(ctx, ref, out); err != nil {
		return false, err
	}
	if err := a.nav.Pop(ctx, ref); err != nil {
		return false, err
	}
	// prev is the top again; this refreshes its timestamps.
	if err := a.nav.Record(ctx, ref, m); err != nil {
		return true, err
	}
	return true, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		rtsup.WithCancelOnError(true),
	)
	run := a.sup.Context()

	if err := a.adapter.Start(run, a.updates); err != nil {
		a.sup.Cancel()
		return err
	}

	a.sup.Go("router", func(c context.Context) error {
		return a.router.Serve(c, a.updates)
	})
	a.sup.Go0("commands.publish", func(c context.Context) {
		pctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.router.PublishCommands(pctx); err != nil {
			a.log.Warn("publishing command menu failed", logx.Err(err))
		}
	})

	cfg := a.cfgm.Get()
	if err := a.prune.Apply(cfg.Storage.PruneScheduleOrDefault(), cfg.Storage.RetentionValue()); err != nil {
		a.log.Warn("storage pruning not scheduled", logx.Err(err))
	}
	a.prune.Start()

	a.watchConfig()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started",
		logx.String("templates", strings.Join(a.reg.IDs(), ",")),
		logx.String("storage", strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		return a.logs.Close()
	}
	sdNotify(a.log, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	a.step(ctx, "prune", 2*time.Second, a.prune.Stop)
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	// router workers may still be recording; storage closes after them
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		return a.store.Close()
	})

	a.log.Info("stopped")
	return a.logs.Close()
}
