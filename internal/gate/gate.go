// Package gate caches whether the embedding service and model are usable.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Not-ready reasons.
var (
	ErrServiceUnavailable = errors.New("embedding service is not reachable")
	ErrModelMissing       = errors.New("embedding model is not installed")
)

// State is the cached result of the last availability check.
type State int

const (
	StateUnknown State = iota
	StateReady
	StateNotReady
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// Checker is the subset of the embedding client used for availability checks.
// Endpoint reports the service URL and model the next Ping and Models calls use.
type Checker interface {
	Ping(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
	Endpoint() (serviceURL, model string)
}

// DefaultCheckTimeout bounds one availability check.
const DefaultCheckTimeout = 10 * time.Second

// Gate is a tri-state cache in front of Checker. The cached state belongs to the
// checker's endpoint at check time; reconfiguring the checker resets it to unknown.
type Gate struct {
	checker Checker
	logger  *zap.Logger
	timeout time.Duration
	group   singleflight.Group

	mu      sync.Mutex
	state   State
	reason  error
	checked string // endpoint key of the cached state
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets a logger for check results.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithCheckTimeout bounds each availability check.
func WithCheckTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// New creates a gate in the unknown state.
func New(checker Checker, opts ...Option) *Gate {
	g := &Gate{checker: checker, timeout: DefaultCheckTimeout}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.checked = g.endpointKey()
	return g
}

func (g *Gate) endpointKey() string {
	serviceURL, model := g.checker.Endpoint()
	return serviceURL + "\x00" + model
}

// syncLocked drops the cached state when the checker's endpoint changed since it was recorded.
func (g *Gate) syncLocked(key string) {
	if key == g.checked {
		return
	}
	g.checked = key
	g.state, g.reason = StateUnknown, nil
}

// EnsureReady reports whether the service and model are available.
// A cached ready result returns immediately. A cached not-ready result returns its
// reason without a network call unless force is set. When ctx ends first, ctx.Err()
// is returned and the cached state is left to the running check.
func (g *Gate) EnsureReady(ctx context.Context, force bool) (bool, error) {
	key := g.endpointKey()
	g.mu.Lock()
	g.syncLocked(key)
	state, reason := g.state, g.reason
	g.mu.Unlock()

	switch {
	case state == StateReady:
		return true, nil
	case state == StateNotReady && !force:
		return false, reason
	}

	ch := g.group.DoChan(key, func() (interface{}, error) {
		return nil, g.run(ctx, key)
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return true, nil
	}
}

// run performs a shared check detached from the caller's cancellation, so a caller
// that gives up cannot turn a healthy service into a cached failure.
func (g *Gate) run(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	_, model := g.checker.Endpoint()
	err := g.check(ctx, model)

	g.mu.Lock()
	defer g.mu.Unlock()
	// Settings changed while the check ran; its result belongs to the old settings.
	if g.checked != key || g.endpointKey() != key {
		return err
	}
	if err != nil {
		g.state, g.reason = StateNotReady, err
		g.logger.Warn("embedding service not ready", zap.String("model", model), zap.Error(err))
		return err
	}
	g.state, g.reason = StateReady, nil
	return nil
}

func (g *Gate) check(ctx context.Context, model string) error {
	if err := g.checker.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	models, err := g.checker.Models(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if !hasModel(models, model) {
		return fmt.Errorf("%w: %q", ErrModelMissing, model)
	}
	return nil
}

// hasModel matches verbatim; an untagged name also matches its ":latest" form.
func hasModel(installed []string, model string) bool {
	for _, name := range installed {
		if name == model {
			return true
		}
		if !strings.Contains(model, ":") && name == model+":latest" {
			return true
		}
	}
	return false
}

// Endpoint returns the service URL and model the gate checks.
func (g *Gate) Endpoint() (string, string) {
	return g.checker.Endpoint()
}

// Invalidate resets the cached state to unknown.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state, g.reason = StateUnknown, nil
}

// State returns the cached state and the last not-ready reason.
func (g *Gate) State() (State, error) {
	key := g.endpointKey()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncLocked(key)
	return g.state, g.reason
}
