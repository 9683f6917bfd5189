package menu

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	kit "menubot/internal/transport"
	logx "menubot/pkg/logx"
)

// Resolver recovers the template id of a render that is no longer in memory.
// *Navigator implements it.
type Resolver interface {
	MenuData(ctx context.Context, renderID string) (RenderedMenuData, bool, error)
}

// CallbackNext is the continuation of a callback chain.
type CallbackNext func(ctx context.Context, cb *kit.Callback) error

// Registry maps template ids to templates and routes presses back to the
// handler that produced them. Registries are independent; nothing is global.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template

	cache    *RenderCache
	resolver Resolver
	newID    func() string
	log      logx.Logger
}

type RegistryOption func(*Registry)

// WithResolver enables the cold path for renders evicted from memory or
// issued before a restart.
func WithResolver(r Resolver) RegistryOption {
	return func(reg *Registry) { reg.resolver = r }
}

// WithRenderCache replaces the default render cache. A nil cache disables
// the in-memory path.
func WithRenderCache(c *RenderCache) RegistryOption {
	return func(reg *Registry) { reg.cache = c }
}

// WithIDGenerator overrides render id minting. Generated ids must be unique
// and must not contain ':'.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(reg *Registry) {
		if fn != nil {
			reg.newID = fn
		}
	}
}

func WithLogger(log logx.Logger) RegistryOption {
	return func(reg *Registry) { reg.log = log }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		templates: map[string]*Template{},
		cache:     NewRenderCache(),
		newID:     newRenderID,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	return r
}

// newRenderID returns a random 128-bit id in unpadded base64url (22 chars).
func newRenderID() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// Register stores a copy of t under id. Re-registering an id fails with
// ErrDuplicateTemplate.
func (r *Registry) Register(id string, t *Template) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyTemplateID
	}
	if t == nil {
		return ErrNilTemplate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTemplate, id)
	}
	r.templates[id] = t.Clone()
	return nil
}

func (r *Registry) MustRegister(id string, t *Template) {
	if err := r.Register(id, t); err != nil {
		panic(err)
	}
}

// Get returns a copy of the template registered under id.
func (r *Registry) Get(id string) (*Template, error) {
	t, ok := r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	return t.Clone(), nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// lookup normalizes id the way Register does.
func (r *Registry) lookup(id string) (*Template, bool) {
	id = strings.TrimSpace(id)
	r.mu.RLock()
	t, ok := r.templates[id]
	r.mu.RUnlock()
	return t, ok
}

// Render instantiates template id under a fresh render id.
func (r *Registry) Render(id string) (*RenderedMenu, error) {
	return r.render(id, r.newID())
}

// Rerender instantiates template id under an existing render id. Given an
// unchanged template, the result has the same addresses and handlers as the
// original render.
func (r *Registry) Rerender(templateID, renderID string) (*RenderedMenu, error) {
	return r.render(templateID, renderID)
}

func (r *Registry) render(templateID, renderID string) (*RenderedMenu, error) {
	templateID = strings.TrimSpace(templateID)
	t, ok := r.lookup(templateID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}
	m, err := Render(templateID, renderID, t)
	if err != nil {
		return nil, err
	}
	r.cache.Put(m)
	return m, nil
}

// Dispatch routes cb to the handler addressed by its callback data. Data that
// is not an address, renders that cannot be resolved and cells without a
// handler are passed to next. Storage failures and handler errors are
// returned.
func (r *Registry) Dispatch(ctx context.Context, cb *kit.Callback, next func(context.Context) error) error {
	pass := func() error {
		if next == nil {
			return nil
		}
		return next(ctx)
	}
	if cb == nil {
		return pass()
	}
	addr, ok := ParseAddress(cb.Data)
	if !ok {
		return pass()
	}

	m, cold, err := r.resolve(ctx, addr.RenderID)
	if err != nil {
		return err
	}
	if m == nil {
		r.log.Debug("menu render not resolvable", logx.String("render_id", addr.RenderID))
		return pass()
	}
	cell, ok := m.Cell(addr.Row, addr.Col)
	if !ok || cell.Handler == nil {
		return pass()
	}

	r.log.Debug("menu press",
		logx.String("template_id", m.TemplateID),
		logx.String("address", addr.String()),
		logx.Bool("cold", cold),
	)
	return cell.Handler(ctx, &Press{
		Callback:   cb,
		Address:    addr,
		TemplateID: m.TemplateID,
		Payload:    cell.Payload,
		Cold:       cold,
	})
}

// resolve finds the render in memory, or re-derives it from persisted
// metadata. A nil menu without error means the render is unknown.
func (r *Registry) resolve(ctx context.Context, renderID string) (*RenderedMenu, bool, error) {
	if m, ok := r.cache.Get(renderID); ok {
		return m, false, nil
	}
	if r.resolver == nil {
		return nil, false, nil
	}
	data, ok, err := r.resolver.MenuData(ctx, renderID)
	if err != nil {
		if errors.Is(err, ErrStorage) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !ok || data.TemplateID == "" {
		return nil, false, nil
	}
	m, err := r.render(data.TemplateID, renderID)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			r.log.Warn("persisted render references unregistered template",
				logx.String("render_id", renderID),
				logx.String("template_id", data.TemplateID),
			)
			return nil, false, nil
		}
		return nil, false, err
	}
	return m, true, nil
}

// Middleware exposes Dispatch as a chain unit.
func (r *Registry) Middleware() func(next CallbackNext) CallbackNext {
	return func(next CallbackNext) CallbackNext {
		return func(ctx context.Context, cb *kit.Callback) error {
			return r.Dispatch(ctx, cb, func(ctx context.Context) error {
				if next == nil {
					return nil
				}
				return next(ctx, cb)
			})
		}
	}
}
