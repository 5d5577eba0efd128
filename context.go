package tableau

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultSyncDelay is how long before the expected presentation a stage
// update is scheduled.
const DefaultSyncDelay = 2 * time.Millisecond

// Context owns a backend, the stages created on it and the master clock
// that drives them. It is constructed in that order and torn down in the
// reverse order by Close.
type Context struct {
	backend   Backend
	manager   *StageManager
	clock     *MasterClock
	now       func() time.Time
	syncDelay time.Duration
	closed    bool
}

// Option configures a Context.
type Option func(*Context)

// WithLogger installs l as the package logger (see [SetLogger]).
func WithLogger(l *slog.Logger) Option {
	return func(*Context) { SetLogger(l) }
}

// WithNow replaces the wall clock, mostly for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSyncDelay sets how long before the presentation time stage updates
// are scheduled.
func WithSyncDelay(d time.Duration) Option {
	return func(c *Context) {
		if d >= 0 {
			c.syncDelay = d
		}
	}
}

// NewContext creates a context on backend b.
func NewContext(b Backend, opts ...Option) (*Context, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	c := &Context{
		backend:   b,
		now:       time.Now,
		syncDelay: DefaultSyncDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.manager = &StageManager{}
	c.clock = newMasterClock(c)
	Logger().Info("backend selected", "backend", b.Name(), "multiple_stages", b.SupportsMultipleStages())
	return c, nil
}

// Backend returns the backend.
func (c *Context) Backend() Backend { return c.backend }

// Renderer returns the backend's renderer.
func (c *Context) Renderer() Renderer { return c.backend.Renderer() }

// Clock returns the master clock.
func (c *Context) Clock() *MasterClock { return c.clock }

// StageManager returns the registry of live stages.
func (c *Context) StageManager() *StageManager { return c.manager }

// Now returns the context's current time.
func (c *Context) Now() time.Time { return c.now() }

// SyncDelay returns the configured sync delay.
func (c *Context) SyncDelay() time.Duration { return c.syncDelay }

// NewStage creates and realizes a stage. Backends that support a single
// stage refuse a second one with ErrMultipleStagesUnsupported. A realize
// failure returns a *StageError wrapping ErrStageRealize; the context stays
// usable.
func (c *Context) NewStage(cfg StageConfig) (*Stage, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	if !c.backend.SupportsMultipleStages() && len(c.manager.stages) > 0 {
		return nil, fmt.Errorf("new stage on %s: %w", c.backend.Name(), ErrMultipleStagesUnsupported)
	}
	s, err := newStage(c, cfg)
	if err != nil {
		return nil, err
	}
	c.manager.add(s)
	return s, nil
}

// Close stops the clock, destroys every stage and closes the backend when
// it implements io.Closer. Calling Close twice is a no-op.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.clock.SetPaused(true)
	c.clock.timelines = nil
	c.clock.repaints = nil

	stages := c.manager.Stages()
	for _, s := range slices.Backward(stages) {
		s.Destroy()
	}

	var err error
	if cl, ok := c.backend.(io.Closer); ok {
		err = cl.Close()
	}
	c.clock.wake()
	return err
}

// --- Process-wide default ---

var defaultContext struct {
	mu  sync.Mutex
	ctx *Context
}

// Default returns the process-wide context, creating it on first use with
// the highest-priority backend that opens.
func Default() (*Context, error) {
	defaultContext.mu.Lock()
	defer defaultContext.mu.Unlock()
	if defaultContext.ctx != nil && !defaultContext.ctx.closed {
		return defaultContext.ctx, nil
	}
	b, err := OpenBackend("")
	if err != nil {
		return nil, err
	}
	ctx, err := NewContext(b)
	if err != nil {
		return nil, err
	}
	defaultContext.ctx = ctx
	return ctx, nil
}

// CloseDefault closes the process-wide context, if one was created.
func CloseDefault() error {
	defaultContext.mu.Lock()
	defer defaultContext.mu.Unlock()
	if defaultContext.ctx == nil {
		return nil
	}
	err := defaultContext.ctx.Close()
	defaultContext.ctx = nil
	if errors.Is(err, ErrContextClosed) {
		return nil
	}
	return err
}
