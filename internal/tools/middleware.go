package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/time/rate"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Middleware decorates a tool runner.
type Middleware func(next plan.ToolRunner) plan.ToolRunner

// Chain wraps runner so that mws[0] is the outermost layer.
func Chain(runner plan.ToolRunner, mws ...Middleware) plan.ToolRunner {
	for i := len(mws) - 1; i >= 0; i-- {
		runner = mws[i](runner)
	}
	return runner
}

// WithTimeout bounds every call by d.
func WithTimeout(d time.Duration) Middleware {
	return func(next plan.ToolRunner) plan.ToolRunner {
		return plan.ToolRunnerFunc(func(ctx context.Context, method string, params map[string]any) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			env := plan.NormalizeEnvelope(next.Call(ctx, method, params))
			if !env.Success && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return plan.Failure(plan.CodeTimeout, fmt.Sprintf("%s exceeded %s", method, d)), nil
			}
			return env, nil
		})
	}
}

// WithRateLimit makes every call wait for limiter. A call whose context
// ends first fails with rate_limited.
func WithRateLimit(limiter *rate.Limiter) Middleware {
	return func(next plan.ToolRunner) plan.ToolRunner {
		return plan.ToolRunnerFunc(func(ctx context.Context, method string, params map[string]any) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return plan.Failure(plan.CodeRateLimited, fmt.Sprintf("%s: %v", method, err)), nil
			}
			return next.Call(ctx, method, params)
		})
	}
}

// Cache keeps successful envelopes, JSON-encoded, keyed by method and
// params.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// NewCache creates a cache holding at most maxCostBytes of encoded
// envelopes.
func NewCache(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create tool cache: %w", err)
	}
	return &Cache{c: c}, nil
}

func (c *Cache) get(key string) ([]byte, bool) {
	return c.c.Get(key)
}

func (c *Cache) set(key string, value []byte, ttl time.Duration) {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
}

// Close releases the cache.
func (c *Cache) Close() {
	c.c.Close()
}

// cacheKey relies on encoding/json sorting map keys.
func cacheKey(method string, params map[string]any) (string, bool) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	return method + "|" + string(b), true
}

// WithCache serves repeated calls from cache. Hits are marked
// metadata.cached. Only successes are stored.
func WithCache(cache *Cache, ttl time.Duration) Middleware {
	return func(next plan.ToolRunner) plan.ToolRunner {
		return plan.ToolRunnerFunc(func(ctx context.Context, method string, params map[string]any) (any, error) {
			key, ok := cacheKey(method, params)
			if !ok {
				return next.Call(ctx, method, params)
			}
			if raw, hit := cache.get(key); hit {
				var decoded map[string]any
				if err := json.Unmarshal(raw, &decoded); err == nil {
					env := plan.NormalizeEnvelope(decoded, nil)
					env.Metadata.Cached = true
					return env, nil
				}
			}

			env := plan.NormalizeEnvelope(next.Call(ctx, method, params))
			if env.Success {
				if raw, err := json.Marshal(env); err == nil {
					cache.set(key, raw, ttl)
				}
			}
			return env, nil
		})
	}
}

// ErrCircuitOpen is the message of calls rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker opens after maxFailures consecutive failed envelopes and rejects
// calls until timeout has passed. Half-open admits a single probe; other
// calls are rejected until the probe reports.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	probing     bool
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{maxFailures: max(maxFailures, 1), timeout: timeout, now: time.Now}
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.state, b.probing = breakerHalfOpen, true
		return true
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *Breaker) report(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if ok {
		b.failures = 0
		b.state = breakerClosed
		return
	}
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// release frees the probe slot after an outcome that says nothing about the
// backend. State and failure count are unchanged.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// countsAgainst reports whether a failed envelope says something about the
// backend rather than about the request.
func countsAgainst(env plan.Envelope) bool {
	if env.Success || env.Error == nil {
		return !env.Success
	}
	switch env.Error.Code {
	case plan.CodeInvalidParams, plan.CodeUnknownMethod, plan.CodeRateLimited:
		return false
	}
	return true
}

// WithBreaker guards each method with its own breaker.
func WithBreaker(maxFailures int, timeout time.Duration) Middleware {
	return withBreakers(func() *Breaker { return NewBreaker(maxFailures, timeout) })
}

func withBreakers(newBreaker func() *Breaker) Middleware {
	return func(next plan.ToolRunner) plan.ToolRunner {
		var (
			mu       sync.Mutex
			breakers = map[string]*Breaker{}
		)
		get := func(method string) *Breaker {
			mu.Lock()
			defer mu.Unlock()
			b, ok := breakers[method]
			if !ok {
				b = newBreaker()
				breakers[method] = b
			}
			return b
		}
		return plan.ToolRunnerFunc(func(ctx context.Context, method string, params map[string]any) (any, error) {
			b := get(method)
			if !b.allow() {
				return plan.Failure(plan.CodeCircuitOpen, fmt.Sprintf("%s: %v", method, ErrCircuitOpen)), nil
			}
			env := plan.NormalizeEnvelope(next.Call(ctx, method, params))
			switch {
			case env.Success:
				b.report(true)
			case countsAgainst(env):
				b.report(false)
			default:
				b.release()
			}
			return env, nil
		})
	}
}
