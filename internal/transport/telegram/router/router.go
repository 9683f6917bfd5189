package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	rtsup "menubot/internal/runtime/supervisor"
	kit "menubot/internal/transport"
	logx "menubot/pkg/logx"
)

type Command struct {
	// Name is the command word without the slash, e.g. "menu".
	Name        string
	Aliases     []string
	Description string
	Timeout     time.Duration // per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	// Sender sends and edits through the menu navigator.
	Sender  kit.Sender
	Adapter kit.Adapter
	Logger  logx.Logger

	answered atomic.Bool
}

// Ref is the message a pressed keyboard belongs to. Zero for messages.
func (r *Request) Ref() kit.MessageRef {
	return r.Update.Callback.Ref()
}

// Answer acknowledges the callback query once. Later calls are no-ops.
func (r *Request) Answer(ctx context.Context, text string) error {
	cb := r.Update.Callback
	if cb == nil || r.Adapter == nil || !r.answered.CompareAndSwap(false, true) {
		return nil
	}
	return r.Adapter.AnswerCallback(ctx, cb.ID, text)
}

// Reply sends plain text to the request chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Sender.Send(ctx, r.Chat, kit.Outgoing{Kind: kit.KindText, Text: text})
	return err
}

type Options struct {
	Workers   int
	QueueSize int
	// Timeout bounds each request unless the command overrides it.
	Timeout time.Duration
	// Callback is the chain applied to callback presses before the
	// fallback, typically MWMenu.
	Callback []Middleware
	// Limiter throttles both messages and presses per chat.
	Limiter *RateLimiter
}

// Router turns updates into requests and runs them on a bounded worker pool.
type Router struct {
	mu    sync.RWMutex
	cmds  map[string]*Command
	alias map[string]*Command

	adapter kit.Adapter
	sender  kit.Sender
	log     logx.Logger
	opts    Options

	jobs chan func()
}

// New builds a router. sender is used for replies; pass the navigator
// wrapped adapter so menus sent from commands are recorded.
func New(adapter kit.Adapter, sender kit.Sender, log logx.Logger, opts Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sender == nil {
		sender = adapter
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers < 2 {
			opts.Workers = 2
		}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Router{
		cmds:    map[string]*Command{},
		alias:   map[string]*Command{},
		adapter: adapter,
		sender:  sender,
		log:     log,
		opts:    opts,
		jobs:    make(chan func(), opts.QueueSize),
	}
}

// SetCommands replaces the command table. A help command is always added.
func (r *Router) SetCommands(cmds []Command) {
	cmds = append(cmds, Command{
		Name:        "help",
		Description: "list commands",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Sender.Send(ctx, req.Chat, kit.Outgoing{
				Kind:           kit.KindText,
				Text:           r.helpText(),
				ParseMode:      "HTML",
				DisablePreview: true,
			})
			return err
		},
	})

	table := map[string]*Command{}
	alias := map[string]*Command{}
	for i := range cmds {
		c := cmds[i]
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		table[name] = &c
		for _, a := range c.Aliases {
			if sa := sanitizeTelegramCommand(a); sa != "" && sa != name {
				alias[sa] = &c
			}
		}
	}

	r.mu.Lock()
	r.cmds = table
	r.alias = alias
	r.mu.Unlock()
}

// PublishCommands pushes the command table to the platform command menu
// when the adapter supports it.
func (r *Router) PublishCommands(ctx context.Context) error {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	r.mu.RLock()
	cmds := buildMenuCommands(r.cmds)
	r.mu.RUnlock()
	return up.UpdateMenuCommands(ctx, cmds)
}

func (r *Router) lookup(word string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.cmds[word]; ok {
		return c, true
	}
	c, ok := r.alias[word]
	return c, ok
}

// Serve consumes updates until ctx is done or the channel is closed.
func (r *Router) Serve(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	r.log.Info("router started", logx.Int("workers", r.opts.Workers), logx.Int("job_queue_cap", cap(r.jobs)))

	for i := 0; i < r.opts.Workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) tryEnqueue(fn func()) bool {
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		r.routeMessage(ctx, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, cmd string) *Request {
	rid := uuid.NewString()[:8]
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: cmd,
		ReqID:   rid,
		Sender:  r.sender,
		Adapter: r.adapter,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int("thread_id", chat.ThreadID),
			logx.Int64("from_id", from),
			logx.String("cmd", cmd),
		),
	}
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	parts := strings.Fields(msg.Text)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := r.lookup(word)
	if !ok {
		req := r.newRequest(up, chat, msg.FromID, word)
		if !r.tryEnqueue(func() { _ = req.Reply(ctx, "unknown command. try /help") }) {
			r.log.Warn("router queue full; unknown command reply dropped")
		}
		return
	}

	req := r.newRequest(up, chat, msg.FromID, cmd.Name)
	req.Args = parts[1:]
	timeout := r.opts.Timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWRateLimit(r.opts.Limiter),
		MWTimeout(timeout),
	)
	if !r.tryEnqueue(func() { _ = final(ctx, req) }) {
		_ = req.Reply(ctx, "busy, try again")
	}
}

func (r *Router) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	req := r.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, "callback")

	mws := []Middleware{
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWRateLimit(r.opts.Limiter),
		MWTimeout(r.opts.Timeout),
	}
	mws = append(mws, r.opts.Callback...)
	final := Chain(unsupportedAction, mws...)

	if !r.tryEnqueue(func() {
		err := final(ctx, req)
		// stop the client's loading indicator
		if err != nil {
			_ = req.Answer(ctx, "something went wrong")
			return
		}
		_ = req.Answer(ctx, "")
	}) {
		_ = req.Answer(ctx, "busy")
	}
}

// unsupportedAction ends the callback chain for presses nothing handled.
func unsupportedAction(ctx context.Context, req *Request) error {
	req.Logger.Debug("unhandled callback", logx.String("data", req.Update.Callback.Data))
	return req.Answer(ctx, "unsupported action")
}
