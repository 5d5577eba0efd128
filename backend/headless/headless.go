// Package headless is an offscreen tableau backend.
//
// Stage windows render into softrender framebuffers and "present" on a
// simulated display refresh, so the master clock sees the same
// presentation timing it would get from a real window. The backend is
// registered under the name "headless" at the lowest priority.
package headless

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
	"time"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
	"github.com/phanxgames/tableau/render/softrender"
)

// DefaultRefreshRate is the simulated display refresh rate in Hz.
const DefaultRefreshRate = 60

func init() {
	tableau.RegisterBackend("headless", 0, func() (tableau.Backend, error) {
		return New(), nil
	})
}

// Backend creates offscreen stage windows.
type Backend struct {
	renderer   *softrender.Renderer
	interval   time.Duration
	single     bool
	realizeErr error
	windows    []*Window
	closed     bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithRefreshRate sets the simulated refresh rate in Hz.
func WithRefreshRate(hz float64) Option {
	return func(b *Backend) {
		if hz > 0 {
			b.interval = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithSingleStage makes the backend refuse a second stage, like a
// fullscreen-only display.
func WithSingleStage() Option {
	return func(b *Backend) { b.single = true }
}

// WithRealizeError makes every window realize fail with err.
func WithRealizeError(err error) Option {
	return func(b *Backend) { b.realizeErr = err }
}

// New returns a headless backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		renderer: softrender.New(),
		interval: time.Second / DefaultRefreshRate,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements [tableau.Backend].
func (b *Backend) Name() string { return "headless" }

// Renderer implements [tableau.Backend].
func (b *Backend) Renderer() tableau.Renderer { return b.renderer }

// SoftRenderer returns the concrete renderer.
func (b *Backend) SoftRenderer() *softrender.Renderer { return b.renderer }

// SupportsMultipleStages implements [tableau.Backend].
func (b *Backend) SupportsMultipleStages() bool { return !b.single }

// RefreshInterval returns the simulated time between presentations.
func (b *Backend) RefreshInterval() time.Duration { return b.interval }

// Windows returns the live windows in creation order.
func (b *Backend) Windows() []*Window { return slices.Clone(b.windows) }

// CreateStageWindow implements [tableau.Backend].
func (b *Backend) CreateStageWindow(s *tableau.Stage, cfg tableau.StageConfig) (tableau.StageWindow, error) {
	if b.closed {
		return nil, errors.New("headless: backend closed")
	}
	w := &Window{
		backend: b,
		stage:   s,
		cfg:     cfg,
		width:   cfg.Width,
		height:  cfg.Height,
	}
	return w, nil
}

// Close unrealizes every window.
func (b *Backend) Close() error {
	for _, w := range slices.Clone(b.windows) {
		w.Unrealize()
	}
	b.closed = true
	return nil
}

// Window is an offscreen stage window.
type Window struct {
	backend *Backend
	stage   *tableau.Stage
	cfg     tableau.StageConfig

	title         string
	width, height int
	views         []*tableau.StageView
	defaultView   bool

	realized bool
	shown    bool

	lastPresentation time.Time
	updateTime       time.Time
	hasUpdate        bool
	presents         int
}

// Realize implements [tableau.StageWindow]. It allocates one framebuffer
// per configured view, or a single view covering the stage.
func (w *Window) Realize() error {
	if w.realized {
		return nil
	}
	if w.backend.realizeErr != nil {
		return fmt.Errorf("headless: %w", w.backend.realizeErr)
	}
	w.title = w.cfg.Title
	if len(w.cfg.Views) == 0 {
		w.defaultView = true
		w.cfg.Views = []tableau.ViewConfig{{
			Name:   "default",
			Layout: geom.Rect{Width: float64(w.width), Height: float64(w.height)},
			Scale:  1,
		}}
	}
	w.views = w.views[:0]
	for _, vc := range w.cfg.Views {
		v := tableau.NewStageView(vc.Name, vc.Layout, vc.Scale, nil)
		if err := w.allocateFramebuffer(v); err != nil {
			return err
		}
		w.views = append(w.views, v)
	}
	w.realized = true
	w.backend.windows = append(w.backend.windows, w)
	tableau.Logger().Debug("headless window realized", "title", w.title, "views", len(w.views))
	return nil
}

func (w *Window) allocateFramebuffer(v *tableau.StageView) error {
	r := v.FramebufferRect()
	fb, err := w.backend.renderer.NewFramebuffer(int(r.Width), int(r.Height))
	if err != nil {
		return fmt.Errorf("headless: view %q: %w", v.Name, err)
	}
	v.Framebuffer = fb
	return nil
}

// Unrealize implements [tableau.StageWindow].
func (w *Window) Unrealize() {
	if !w.realized {
		return
	}
	w.realized = false
	w.shown = false
	w.hasUpdate = false
	for _, v := range w.views {
		v.Framebuffer = nil
	}
	w.backend.windows = slices.DeleteFunc(w.backend.windows, func(x *Window) bool { return x == w })
}

// Show implements [tableau.StageWindow].
func (w *Window) Show(bool) { w.shown = true }

// Hide implements [tableau.StageWindow].
func (w *Window) Hide() { w.shown = false }

// IsShown reports whether the window is visible.
func (w *Window) IsShown() bool { return w.shown }

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) { w.title = title }

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// Resize implements [tableau.StageWindow]. The default view follows the
// window size; configured views keep their layout.
func (w *Window) Resize(width, height int) {
	if width <= 0 || height <= 0 || width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	if !w.defaultView || !w.realized || len(w.views) == 0 {
		return
	}
	v := w.views[0]
	v.Layout = geom.Rect{Width: float64(width), Height: float64(height)}
	if err := w.allocateFramebuffer(v); err != nil {
		tableau.Logger().Warn("headless resize failed", "err", err)
		v.Framebuffer = nil
	}
}

// SimulateResize resizes the window as if the user dragged its border,
// and notifies the stage.
func (w *Window) SimulateResize(width, height int) {
	w.Resize(width, height)
	w.stage.NotifyResize(float64(width), float64(height))
}

// Geometry implements [tableau.StageWindow].
func (w *Window) Geometry() image.Rectangle { return image.Rect(0, 0, w.width, w.height) }

// Views implements [tableau.StageWindow].
func (w *Window) Views() []*tableau.StageView { return w.views }

// --- Frame timing ---

func (w *Window) now() time.Time { return w.stage.Context().Now() }

// NextPresentationTime implements [tableau.StageWindow]. It is the first
// refresh boundary after now, counted from the last presentation. Before
// the first presentation nothing is known.
func (w *Window) NextPresentationTime() (time.Time, bool) {
	if w.lastPresentation.IsZero() {
		return time.Time{}, false
	}
	interval := w.backend.interval
	next := w.lastPresentation.Add(interval)
	if now := w.now(); next.Before(now) {
		n := math.Ceil(float64(now.Sub(w.lastPresentation)) / float64(interval))
		next = w.lastPresentation.Add(time.Duration(n) * interval)
	}
	return next, true
}

// ScheduleUpdate implements [tableau.StageWindow]. An update already
// scheduled is kept.
func (w *Window) ScheduleUpdate(syncDelay time.Duration) {
	if !w.realized || w.hasUpdate {
		return
	}
	now := w.now()
	ut := now
	if next, ok := w.NextPresentationTime(); ok {
		ut = next.Add(-syncDelay)
		if ut.Before(now) {
			ut = now
		}
	}
	w.updateTime = ut
	w.hasUpdate = true
}

// UpdateTime implements [tableau.StageWindow].
func (w *Window) UpdateTime() (time.Time, bool) {
	return w.updateTime, w.hasUpdate
}

// ClearUpdateTime implements [tableau.StageWindow].
func (w *Window) ClearUpdateTime() {
	w.hasUpdate = false
	w.updateTime = time.Time{}
}

// Present implements [tableau.StageWindow]. The frame counts as displayed
// at the next refresh boundary.
func (w *Window) Present() error {
	if !w.realized {
		return fmt.Errorf("headless: present: %w", tableau.ErrNoFramebuffer)
	}
	if next, ok := w.NextPresentationTime(); ok {
		w.lastPresentation = next
	} else {
		w.lastPresentation = w.now()
	}
	w.presents++
	return nil
}

// Presents returns the number of presented frames.
func (w *Window) Presents() int { return w.presents }

// LastPresentation returns when the last frame was displayed.
func (w *Window) LastPresentation() time.Time { return w.lastPresentation }

// Image returns the framebuffer of view i, or nil.
func (w *Window) Image(i int) *image.RGBA {
	if i < 0 || i >= len(w.views) {
		return nil
	}
	fb, ok := w.views[i].Framebuffer.(*softrender.Framebuffer)
	if !ok {
		return nil
	}
	return fb.Image()
}
