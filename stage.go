package tableau

import (
	"fmt"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/phanxgames/tableau/geom"
)

// ViewConfig describes one output of a stage: the stage rectangle it shows
// and its scale factor.
type ViewConfig struct {
	Name   string
	Layout geom.Rect
	Scale  float64
}

// StageConfig configures a new stage.
type StageConfig struct {
	Title         string
	Width, Height int

	// Color clears the stage before each paint. The zero value selects
	// opaque black; set UseAlpha to keep a transparent color.
	Color    Color
	UseAlpha bool

	// Perspective overrides the default camera. Its Aspect is recomputed
	// whenever the stage is resized.
	Perspective *geom.Perspective

	UserResizable bool

	// Views lists the outputs. Empty means one view covering the stage at
	// scale 1.
	Views []ViewConfig

	PickStrategy   PickStrategy
	DisableCulling bool

	// ScreenshotDir is where Screenshot writes PNG files.
	ScreenshotDir string
}

const (
	defaultStageWidth  = 640
	defaultStageHeight = 480
)

func (c StageConfig) withDefaults() StageConfig {
	if c.Width <= 0 {
		c.Width = defaultStageWidth
	}
	if c.Height <= 0 {
		c.Height = defaultStageHeight
	}
	if c.Color == (Color{}) && !c.UseAlpha {
		c.Color = ColorBlack
	}
	if !c.UseAlpha {
		c.Color.A = 255
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "screenshots"
	}
	return c
}

// Stage is the toplevel actor bound to one native window or offscreen
// surface. It owns the pending relayout and redraw queues, the input event
// queue, the pick caches and the views of its window.
//
// Create stages with [Context.NewStage]. The embedded [Actor] is the root
// of the scene; add children to the stage directly.
type Stage struct {
	*Actor

	ctx     *Context
	window  StageWindow
	backend Backend

	title         string
	color         Color
	userResizable bool
	shown         bool
	realized      bool
	destroyed     bool

	width, height float64
	perspective   geom.Perspective
	customPersp   bool
	projection    mgl64.Mat4
	projInverse   mgl64.Mat4
	view          mgl64.Mat4
	projView      mgl64.Mat4

	relayoutEntries []*relayoutEntry
	relayoutVersion uint64
	redrawEntries   []*redrawEntry
	needsUpdate     bool
	relaidOut       bool
	hasPainted      bool

	events      []*Event
	injectQueue []*Event

	pickStrategy PickStrategy
	pickCaches   [numPickModes]pickCache
	pickGen      uint64
	pickFB       Framebuffer
	culling      bool

	keyFocus     ActorHandle
	devices      map[deviceKey]*deviceState
	grabs        map[*InputDevice]ActorHandle
	handlers     handlerRegistry
	store        EntityStore
	devicesDirty bool

	beforePaint []stageHook
	afterPaint  []stageHook
	afterUpdate []statsHook
	nextHookID  uint32

	stats     FrameStats
	lastStats FrameStats
	frames    uint64

	// ScreenshotDir is where queued screenshots are written.
	ScreenshotDir   string
	screenshotQueue []string
	captureFB       Framebuffer
	testRunner      *TestRunner
}

// stageBehavior paints the clear color and the children. The stage has no
// background or content of its own and is never logged as a pick target:
// an empty pick falls back to the stage anyway.
type stageBehavior struct{ BaseBehavior }

func (stageBehavior) Paint(a *Actor, pc *PaintContext) {
	pc.Clear(a.stage.color)
	a.PaintChildren(pc)
}

func (stageBehavior) Pick(a *Actor, pc *PickContext) {
	a.PickChildren(pc)
}

func (stageBehavior) HasOverlaps(*Actor) bool { return true }

func newStage(ctx *Context, cfg StageConfig) (*Stage, error) {
	cfg = cfg.withDefaults()
	s := &Stage{
		ctx:           ctx,
		backend:       ctx.backend,
		title:         cfg.Title,
		color:         cfg.Color,
		userResizable: cfg.UserResizable,
		pickStrategy:  cfg.PickStrategy,
		culling:       !cfg.DisableCulling,
		devices:       make(map[deviceKey]*deviceState),
		grabs:         make(map[*InputDevice]ActorHandle),
		ScreenshotDir: cfg.ScreenshotDir,
	}
	s.Actor = NewActorWithBehavior("stage", stageBehavior{})
	s.Actor.stage = s
	s.Actor.flags |= flagToplevel | flagReactive
	s.Actor.flags &^= flagVisible
	if cfg.Perspective != nil {
		s.perspective = *cfg.Perspective
		s.customPersp = true
	}
	s.setSize(float64(cfg.Width), float64(cfg.Height))

	win, err := ctx.backend.CreateStageWindow(s, cfg)
	if err != nil {
		return nil, newStageError(s, "create window", fmt.Errorf("%w: %w", ErrStageRealize, err))
	}
	s.window = win
	if err := win.Realize(); err != nil {
		return nil, newStageError(s, "realize", fmt.Errorf("%w: %w", ErrStageRealize, err))
	}
	s.realized = true
	s.Actor.realize()
	Logger().Info("stage realized",
		"title", s.title, "backend", ctx.backend.Name(),
		"width", cfg.Width, "height", cfg.Height, "views", len(win.Views()))
	return s, nil
}

// Context returns the context that owns the stage.
func (s *Stage) Context() *Context { return s.ctx }

// Window returns the backend window.
func (s *Stage) Window() StageWindow { return s.window }

// Views returns the outputs of the stage window.
func (s *Stage) Views() []*StageView {
	if s.window == nil {
		return nil
	}
	return s.window.Views()
}

// Title returns the window title.
func (s *Stage) Title() string { return s.title }

// SetTitle sets the window title.
func (s *Stage) SetTitle(title string) {
	s.title = title
	if t, ok := s.window.(interface{ SetTitle(string) }); ok {
		t.SetTitle(title)
	}
}

// Color returns the clear color.
func (s *Stage) Color() Color { return s.color }

// SetColor changes the clear color and repaints the stage.
func (s *Stage) SetColor(c Color) {
	if s.color == c {
		return
	}
	s.color = c
	s.QueueFullRedraw()
}

// UserResizable reports whether the window may be resized by the user.
func (s *Stage) UserResizable() bool { return s.userResizable }

// IsShown reports whether Show was called more recently than Hide.
func (s *Stage) IsShown() bool { return s.shown }

// IsRealized reports whether the stage window exists.
func (s *Stage) IsRealized() bool { return s.realized }

// IsDestroyed reports whether the stage was destroyed.
func (s *Stage) IsDestroyed() bool { return s.destroyed }

// Show maps the stage and its visible children and schedules a full paint.
func (s *Stage) Show() {
	if s.shown || s.destroyed {
		return
	}
	if !s.realized {
		contractViolation("Show", s.Actor, "stage is not realized")
		return
	}
	s.window.Show(true)
	s.shown = true
	s.Actor.flags |= flagVisible
	s.Actor.updateMapState()
	s.Actor.QueueRelayout()
	s.QueueFullRedraw()
}

// Hide unmaps the stage. Pending queues are kept for the next Show.
func (s *Stage) Hide() {
	if !s.shown {
		return
	}
	s.shown = false
	s.Actor.flags &^= flagVisible
	s.Actor.updateMapState()
	if s.window != nil {
		s.window.Hide()
	}
}

// Destroy destroys every actor on the stage, releases the window and
// removes the stage from its context. Calling it twice is a no-op.
func (s *Stage) Destroy() {
	if s.destroyed {
		return
	}
	s.Hide()
	s.destroyed = true
	s.Actor.destroy()
	s.relayoutEntries = nil
	s.redrawEntries = nil
	s.events = nil
	s.injectQueue = nil
	s.devices = nil
	s.grabs = nil
	if s.window != nil {
		s.window.Unrealize()
	}
	s.realized = false
	s.ctx.manager.remove(s)
	Logger().Info("stage destroyed", "title", s.title)
}

// --- Size and camera ---

// SetSize resizes the stage and its window.
func (s *Stage) SetSize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	if s.window != nil {
		s.window.Resize(int(math.Ceil(width)), int(math.Ceil(height)))
	}
	s.NotifyResize(width, height)
}

// NotifyResize is called by backends when the window changed size.
func (s *Stage) NotifyResize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	if geom.FloatEqual(width, s.width) && geom.FloatEqual(height, s.height) {
		return
	}
	s.setSize(width, height)
	s.QueueFullRedraw()
}

func (s *Stage) setSize(width, height float64) {
	s.width, s.height = width, height
	s.Actor.minWidth, s.Actor.natWidth = width, width
	s.Actor.minHeight, s.Actor.natHeight = height, height
	s.Actor.minWidthSet, s.Actor.natWidthSet = true, true
	s.Actor.minHeightSet, s.Actor.natHeightSet = true, true
	s.updateProjection()
	s.Actor.clearSizeRequests()
	s.Actor.flags |= flagNeedsAllocation
	s.queueActorRelayout(s.Actor)
}

// Size returns the stage size in pixels.
func (s *Stage) Size() (width, height float64) { return s.width, s.height }

// Width returns the stage width in pixels.
func (s *Stage) Width() float64 { return s.width }

// Height returns the stage height in pixels.
func (s *Stage) Height() float64 { return s.height }

// Bounds returns the stage rectangle.
func (s *Stage) Bounds() geom.Rect { return geom.Rect{Width: s.width, Height: s.height} }

// SetPerspective replaces the camera. The aspect ratio keeps tracking the
// stage size.
func (s *Stage) SetPerspective(p geom.Perspective) {
	s.perspective = p
	s.customPersp = true
	s.updateProjection()
	s.invalidateAllModelviews()
	s.QueueFullRedraw()
}

// Perspective returns the current camera.
func (s *Stage) Perspective() geom.Perspective { return s.perspective }

// ProjectionMatrix returns the projection matrix.
func (s *Stage) ProjectionMatrix() mgl64.Mat4 { return s.projection }

// InverseProjectionMatrix returns the inverse of the projection matrix.
func (s *Stage) InverseProjectionMatrix() mgl64.Mat4 { return s.projInverse }

// ViewMatrix returns the view matrix that maps the z=0 plane to pixels.
func (s *Stage) ViewMatrix() mgl64.Mat4 { return s.view }

func (s *Stage) updateProjection() {
	if s.customPersp {
		if s.height > 0 {
			s.perspective.Aspect = s.width / s.height
		}
	} else {
		s.perspective = geom.DefaultPerspective(s.width, s.height)
	}
	s.projection = s.perspective.Matrix()
	s.projInverse = s.projection.Inv()
	s.view = geom.ViewMatrix2D(s.perspective, s.width, s.height)
	s.projView = s.projection.Mul4(s.view)
	s.invalidatePickCache()
}

func (s *Stage) invalidateAllModelviews() {
	var walk func(a *Actor)
	walk = func(a *Actor) {
		a.modelviewValid = false
		a.paintVolumeValid = false
		for c := a.firstChild; c != nil; c = c.nextSibling {
			walk(c)
		}
	}
	walk(s.Actor)
}

func (s *Stage) projectionView() mgl64.Mat4 { return s.projView }

func (s *Stage) viewport() geom.Viewport {
	return geom.Viewport{Width: s.width, Height: s.height}
}

// SetPickStrategy selects how GetActorAtPos resolves a point.
func (s *Stage) SetPickStrategy(ps PickStrategy) {
	s.pickStrategy = ps
	s.invalidatePickCache()
}

// PickStrategy returns the pick strategy.
func (s *Stage) PickStrategy() PickStrategy { return s.pickStrategy }

// SetCulling toggles culling of actors outside the redraw clip.
func (s *Stage) SetCulling(enabled bool) { s.culling = enabled }

// Culling reports whether culling is enabled.
func (s *Stage) Culling() bool { return s.culling }

// SetEntityStore sets the ECS store that receives interaction events.
func (s *Stage) SetEntityStore(store EntityStore) { s.store = store }

// LastFrameStats returns the statistics of the last completed update.
func (s *Stage) LastFrameStats() FrameStats { return s.lastStats }

// Frames returns the number of updates that painted at least one view.
func (s *Stage) Frames() uint64 { return s.frames }

// --- Hooks ---

type stageHook struct {
	id uint32
	fn func(s *Stage)
}

type statsHook struct {
	id uint32
	fn func(s *Stage, st FrameStats)
}

// HookHandle removes a stage hook.
type HookHandle struct {
	stage *Stage
	id    uint32
}

// Remove unregisters the hook. Safe to call more than once.
func (h HookHandle) Remove() {
	if h.stage == nil {
		return
	}
	s := h.stage
	s.beforePaint = removeStageHook(s.beforePaint, h.id)
	s.afterPaint = removeStageHook(s.afterPaint, h.id)
	for i, hk := range s.afterUpdate {
		if hk.id == h.id {
			s.afterUpdate = append(s.afterUpdate[:i:i], s.afterUpdate[i+1:]...)
			break
		}
	}
}

func removeStageHook(hooks []stageHook, id uint32) []stageHook {
	for i, hk := range hooks {
		if hk.id == id {
			return append(hooks[:i:i], hooks[i+1:]...)
		}
	}
	return hooks
}

// OnBeforePaint runs fn after relayout and event dispatch, before the
// queued redraws are turned into view damage. Redraws queued by fn are
// painted in the same update.
func (s *Stage) OnBeforePaint(fn func(s *Stage)) HookHandle {
	s.nextHookID++
	s.beforePaint = append(s.beforePaint, stageHook{id: s.nextHookID, fn: fn})
	return HookHandle{stage: s, id: s.nextHookID}
}

// OnAfterPaint runs fn after every pending view was painted.
func (s *Stage) OnAfterPaint(fn func(s *Stage)) HookHandle {
	s.nextHookID++
	s.afterPaint = append(s.afterPaint, stageHook{id: s.nextHookID, fn: fn})
	return HookHandle{stage: s, id: s.nextHookID}
}

// OnAfterUpdate runs fn at the end of each update with its statistics.
func (s *Stage) OnAfterUpdate(fn func(s *Stage, st FrameStats)) HookHandle {
	s.nextHookID++
	s.afterUpdate = append(s.afterUpdate, statsHook{id: s.nextHookID, fn: fn})
	return HookHandle{stage: s, id: s.nextHookID}
}

func runStageHooks(s *Stage, hooks []stageHook) {
	for _, hk := range append([]stageHook(nil), hooks...) {
		hk.fn(s)
	}
}

// --- Capture ---

// Capture lays out the stage if needed, paints it into an offscreen
// framebuffer and reads back r, in stage pixels.
func (s *Stage) Capture(r image.Rectangle) (*image.RGBA, error) {
	if !s.realized {
		return nil, newStageError(s, "capture", ErrStageRealize)
	}
	r = r.Intersect(image.Rect(0, 0, int(math.Ceil(s.width)), int(math.Ceil(s.height))))
	if r.Empty() {
		return nil, newStageError(s, "capture", fmt.Errorf("%w: empty rectangle", ErrReadPixels))
	}
	s.maybeRelayout()
	if s.Actor.flags&flagHasAllocation == 0 {
		s.allocateToplevel()
	}

	renderer := s.backend.Renderer()
	w, h := int(math.Ceil(s.width)), int(math.Ceil(s.height))
	if s.captureFB == nil || !fbSizeIs(s.captureFB, w, h) {
		fb, err := renderer.NewFramebuffer(w, h)
		if err != nil {
			return nil, newStageError(s, "capture", err)
		}
		s.captureFB = fb
	}

	pc := newPaintContext(s, nil, nil)
	s.paintOffscreen(pc)
	if err := renderer.Submit(s.captureFB, pc.ops); err != nil {
		return nil, newStageError(s, "capture", err)
	}
	img, err := renderer.ReadPixels(s.captureFB, r)
	if err != nil {
		return nil, newStageError(s, "capture", fmt.Errorf("%w: %w", ErrReadPixels, err))
	}
	return img, nil
}

// paintOffscreen paints the whole stage, shown or not, without touching
// the redraw state of the views or actors.
func (s *Stage) paintOffscreen(pc *PaintContext) {
	pc.offscreen = true
	s.Actor.Paint(pc)
}

func fbSizeIs(fb Framebuffer, w, h int) bool {
	fw, fh := fb.Size()
	return fw == w && fh == h
}
