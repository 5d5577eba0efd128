package tableau

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/phanxgames/tableau/geom"
)

// StageWindow is the native surface behind a stage, supplied by a backend.
type StageWindow interface {
	// Realize creates the native resources.
	Realize() error
	Unrealize()
	Show(raise bool)
	Hide()
	Resize(width, height int)
	// Geometry returns the window rectangle in screen pixels.
	Geometry() image.Rectangle

	// ScheduleUpdate asks for an update at the next suitable time, at
	// least syncDelay before the expected presentation.
	ScheduleUpdate(syncDelay time.Duration)
	// NextPresentationTime estimates when the next frame will reach the
	// display.
	NextPresentationTime() (time.Time, bool)
	// UpdateTime returns when the scheduled update should run.
	UpdateTime() (time.Time, bool)
	ClearUpdateTime()

	// Views returns the output regions of the window.
	Views() []*StageView
	// Present finishes the frame after every view was submitted.
	Present() error
}

// Backend creates stage windows and supplies the renderer.
type Backend interface {
	Name() string
	CreateStageWindow(s *Stage, cfg StageConfig) (StageWindow, error)
	Renderer() Renderer
	SupportsMultipleStages() bool
}

// --- Backend registry ---

var backends struct {
	mu        sync.Mutex
	factories map[string]backendFactory
}

type backendFactory struct {
	priority int
	open     func() (Backend, error)
}

// RegisterBackend makes a backend available to OpenBackend. Higher
// priorities are tried first when no name is given.
func RegisterBackend(name string, priority int, open func() (Backend, error)) {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	if backends.factories == nil {
		backends.factories = make(map[string]backendFactory)
	}
	backends.factories[name] = backendFactory{priority: priority, open: open}
}

// Backends lists the registered backend names, highest priority first.
func Backends() []string {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	names := make([]string, 0, len(backends.factories))
	for name := range backends.factories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := backends.factories[names[i]].priority, backends.factories[names[j]].priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// OpenBackend opens the named backend, or the first registered backend
// that opens successfully when name is empty.
func OpenBackend(name string) (Backend, error) {
	if name != "" {
		backends.mu.Lock()
		f, ok := backends.factories[name]
		backends.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("backend %q: %w", name, ErrNoBackend)
		}
		return f.open()
	}
	var errs []error
	for _, n := range Backends() {
		backends.mu.Lock()
		f := backends.factories[n]
		backends.mu.Unlock()
		b, err := f.open()
		if err == nil {
			return b, nil
		}
		Logger().Info("backend unavailable", "backend", n, "err", err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, errs)
	}
	return nil, ErrNoBackend
}

// --- StageView ---

// StageView is one output of a stage: the stage rectangle Layout drawn at
// Scale into Framebuffer. It also accumulates the redraw clip of the
// output between updates.
type StageView struct {
	Name        string
	Layout      geom.Rect
	Scale       float64
	Framebuffer Framebuffer

	redrawClip geom.Rect // framebuffer pixels
	hasClip    bool
	fullRedraw bool

	lastClip    geom.Rect
	lastFull    bool
	lastPainted bool
}

// NewStageView returns a view covering layout. The first update of a new
// view repaints it fully.
func NewStageView(name string, layout geom.Rect, scale float64, fb Framebuffer) *StageView {
	if scale <= 0 {
		scale = 1
	}
	return &StageView{Name: name, Layout: layout, Scale: scale, Framebuffer: fb, fullRedraw: true}
}

// FramebufferRect returns the view's extent in framebuffer pixels.
func (v *StageView) FramebufferRect() geom.Rect {
	return geom.Rect{Width: math.Ceil(v.Layout.Width * v.Scale), Height: math.Ceil(v.Layout.Height * v.Scale)}
}

// viewportFor converts the stage window viewport into this view's
// framebuffer pixels.
func (v *StageView) viewportFor(stageVP geom.Viewport) geom.Viewport {
	return geom.Viewport{
		X:      (stageVP.X - v.Layout.X) * v.Scale,
		Y:      (stageVP.Y - v.Layout.Y) * v.Scale,
		Width:  stageVP.Width * v.Scale,
		Height: stageVP.Height * v.Scale,
	}
}

// stageToView maps a stage rectangle into framebuffer pixels, clipped to
// the view and rounded outwards.
func (v *StageView) stageToView(r geom.Rect) geom.Rect {
	r = r.Intersection(v.Layout)
	if r.IsEmpty() {
		return geom.Rect{}
	}
	x1 := math.Floor((r.X - v.Layout.X) * v.Scale)
	y1 := math.Floor((r.Y - v.Layout.Y) * v.Scale)
	x2 := math.Ceil((r.X + r.Width - v.Layout.X) * v.Scale)
	y2 := math.Ceil((r.Y + r.Height - v.Layout.Y) * v.Scale)
	return geom.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}.Intersection(v.FramebufferRect())
}

// viewToStage maps framebuffer pixels back into stage coordinates.
func (v *StageView) viewToStage(r geom.Rect) geom.Rect {
	return geom.Rect{
		X:      r.X/v.Scale + v.Layout.X,
		Y:      r.Y/v.Scale + v.Layout.Y,
		Width:  r.Width / v.Scale,
		Height: r.Height / v.Scale,
	}
}

// addRedrawRect unions a stage rectangle into the clip. Nothing is done
// once the view needs a full redraw.
func (v *StageView) addRedrawRect(r geom.Rect) {
	if v.fullRedraw {
		return
	}
	vr := v.stageToView(r)
	if vr.IsEmpty() {
		return
	}
	if v.hasClip {
		v.redrawClip = v.redrawClip.Union(vr)
	} else {
		v.redrawClip, v.hasClip = vr, true
	}
	if v.redrawClip.ContainsRect(v.FramebufferRect()) {
		v.addFullRedraw()
	}
}

func (v *StageView) addFullRedraw() {
	v.fullRedraw = true
	v.hasClip = false
	v.redrawClip = geom.Rect{}
}

// RedrawClip returns the pending redraw region in framebuffer pixels.
// full reports a full redraw; pending is false when nothing needs
// painting.
func (v *StageView) RedrawClip() (clip geom.Rect, full, pending bool) {
	if v.fullRedraw {
		return v.FramebufferRect(), true, true
	}
	return v.redrawClip, false, v.hasClip
}

// LastPaint returns the region painted by the most recent stage update.
// painted is false when that update left the view untouched.
func (v *StageView) LastPaint() (clip geom.Rect, full, painted bool) {
	return v.lastClip, v.lastFull, v.lastPainted
}

func (v *StageView) resetRedrawClip() {
	v.redrawClip = geom.Rect{}
	v.hasClip = false
	v.fullRedraw = false
}
