package router

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "menubot/pkg/logx"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepLen = 4096
)

// RateLimiter throttles requests per chat with a token bucket each. The
// limit can be changed at runtime; a rate of 0 disables throttling.
type RateLimiter struct {
	mu       sync.Mutex
	perSec   float64
	burst    int
	limiters map[int64]*chatLimiter
	now      func() time.Time
	log      logx.Logger
}

type chatLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSec float64, burst int, log logx.Logger) *RateLimiter {
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &RateLimiter{limiters: map[int64]*chatLimiter{}, now: time.Now, log: log}
	l.SetLimit(perSec, burst)
	return l
}

// SetLimit replaces the rate. Existing buckets are dropped.
func (l *RateLimiter) SetLimit(perSec float64, burst int) {
	if burst <= 0 {
		burst = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perSec == perSec && l.burst == burst {
		return
	}
	l.perSec = perSec
	l.burst = burst
	l.limiters = map[int64]*chatLimiter{}
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perSec <= 0 {
		return true
	}
	now := l.now()
	cl, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= limiterSweepLen {
			l.sweepLocked(now)
		}
		cl = &chatLimiter{lim: rate.NewLimiter(rate.Limit(l.perSec), l.burst)}
		l.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.lim.AllowN(now, 1)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	for k, cl := range l.limiters {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(l.limiters, k)
		}
	}
}

// MWRateLimit drops requests over the limit. Callback presses are
// acknowledged so the client stops its spinner.
func MWRateLimit(l *RateLimiter) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if l == nil {
				return next(ctx, req)
			}
			// inline-mode presses have no chat; throttle by user
			key := req.Chat.ChatID
			if key == 0 {
				key = req.FromID
			}
			if l.Allow(key) {
				return next(ctx, req)
			}
			l.log.Warn("rate limit",
				logx.Int64("chat_id", req.Chat.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("kind", string(req.Update.Kind)),
			)
			if req.Update.Callback != nil {
				_ = req.Answer(ctx, "slow down")
			}
			return nil
		}
	}
}
