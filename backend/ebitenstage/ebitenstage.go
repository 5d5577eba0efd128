// Package ebitenstage runs tableau stages in an Ebitengine window.
//
// Ebitengine owns the event loop and supports a single window, so the
// backend supports a single stage. Each ebiten Update translates input
// into stage events and runs one master clock iteration; Draw presents the
// last painted framebuffer.
//
//	ctx, _ := tableau.NewContext(ebitenstage.New())
//	stage, _ := ctx.NewStage(tableau.StageConfig{Title: "demo", Width: 640, Height: 480})
//	stage.Show()
//	err := ebitenstage.Run(stage)
package ebitenstage

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/geom"
)

func init() {
	tableau.RegisterBackend("ebiten", 10, func() (tableau.Backend, error) {
		return New(), nil
	})
}

// ErrNotEbitenStage is returned by Run for a stage of another backend.
var ErrNotEbitenStage = errors.New("ebitenstage: stage does not belong to an ebiten backend")

// Backend creates the ebiten window.
type Backend struct {
	renderer *Renderer
	window   *Window
}

// New returns an ebiten backend.
func New() *Backend {
	return &Backend{renderer: NewRenderer()}
}

// Name implements [tableau.Backend].
func (b *Backend) Name() string { return "ebiten" }

// Renderer implements [tableau.Backend].
func (b *Backend) Renderer() tableau.Renderer { return b.renderer }

// SupportsMultipleStages implements [tableau.Backend].
func (b *Backend) SupportsMultipleStages() bool { return false }

// CreateStageWindow implements [tableau.Backend].
func (b *Backend) CreateStageWindow(s *tableau.Stage, cfg tableau.StageConfig) (tableau.StageWindow, error) {
	if b.window != nil && b.window.realized {
		return nil, tableau.ErrMultipleStagesUnsupported
	}
	w := &Window{backend: b, stage: s, title: cfg.Title, width: cfg.Width, height: cfg.Height, resizable: cfg.UserResizable}
	b.window = w
	return w, nil
}

// Close releases GPU resources held by the renderer.
func (b *Backend) Close() error {
	b.renderer.Dispose()
	return nil
}

// Window is the ebiten game driving one stage. It implements
// [tableau.StageWindow] and [ebiten.Game].
type Window struct {
	backend   *Backend
	stage     *tableau.Stage
	title     string
	width     int
	height    int
	resizable bool

	view     *tableau.StageView
	realized bool
	shown    bool
	quit     bool

	lastPresent time.Time
	updateTime  time.Time
	hasUpdate   bool

	input inputState
}

// Realize implements [tableau.StageWindow].
func (w *Window) Realize() error {
	if w.realized {
		return nil
	}
	fb, err := w.backend.renderer.NewFramebuffer(w.width, w.height)
	if err != nil {
		return err
	}
	w.view = tableau.NewStageView("window", geom.Rect{Width: float64(w.width), Height: float64(w.height)}, 1, fb)
	w.realized = true
	return nil
}

// Unrealize implements [tableau.StageWindow]. The game loop ends at the
// next update.
func (w *Window) Unrealize() {
	if !w.realized {
		return
	}
	w.realized = false
	w.quit = true
	if fb, ok := w.view.Framebuffer.(*Framebuffer); ok {
		fb.img.Deallocate()
	}
	w.view.Framebuffer = nil
}

// Show implements [tableau.StageWindow].
func (w *Window) Show(bool) { w.shown = true }

// Hide implements [tableau.StageWindow]. Ebiten windows cannot be hidden
// while running; the stage simply stops painting.
func (w *Window) Hide() { w.shown = false }

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

// Resize implements [tableau.StageWindow].
func (w *Window) Resize(width, height int) {
	if width <= 0 || height <= 0 || width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	ebiten.SetWindowSize(width, height)
	w.reallocate()
}

func (w *Window) reallocate() {
	if !w.realized {
		return
	}
	if fb, ok := w.view.Framebuffer.(*Framebuffer); ok {
		fb.img.Deallocate()
	}
	fb, err := w.backend.renderer.NewFramebuffer(w.width, w.height)
	if err != nil {
		tableau.Logger().Warn("ebiten resize failed", "err", err)
		w.view.Framebuffer = nil
		return
	}
	w.view.Layout = geom.Rect{Width: float64(w.width), Height: float64(w.height)}
	w.view.Framebuffer = fb
}

// Geometry implements [tableau.StageWindow].
func (w *Window) Geometry() image.Rectangle {
	x, y := ebiten.WindowPosition()
	return image.Rect(x, y, x+w.width, y+w.height)
}

// Views implements [tableau.StageWindow].
func (w *Window) Views() []*tableau.StageView {
	if w.view == nil {
		return nil
	}
	return []*tableau.StageView{w.view}
}

// --- Frame timing ---

func (w *Window) now() time.Time { return w.stage.Context().Now() }

func (w *Window) interval() time.Duration {
	tps := ebiten.TPS()
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	return time.Second / time.Duration(tps)
}

// NextPresentationTime implements [tableau.StageWindow]. Ebiten paces
// Update and Draw itself, so this is one tick after the last present.
func (w *Window) NextPresentationTime() (time.Time, bool) {
	if w.lastPresent.IsZero() {
		return time.Time{}, false
	}
	return w.lastPresent.Add(w.interval()), true
}

// ScheduleUpdate implements [tableau.StageWindow]. The update runs on the
// next ebiten Update.
func (w *Window) ScheduleUpdate(time.Duration) {
	if !w.realized || w.hasUpdate {
		return
	}
	w.updateTime = w.now()
	w.hasUpdate = true
}

// UpdateTime implements [tableau.StageWindow].
func (w *Window) UpdateTime() (time.Time, bool) { return w.updateTime, w.hasUpdate }

// ClearUpdateTime implements [tableau.StageWindow].
func (w *Window) ClearUpdateTime() {
	w.hasUpdate = false
	w.updateTime = time.Time{}
}

// Present implements [tableau.StageWindow]. The framebuffer is copied to
// the screen by the next Draw.
func (w *Window) Present() error {
	if !w.realized {
		return fmt.Errorf("ebitenstage: present: %w", tableau.ErrNoFramebuffer)
	}
	w.lastPresent = w.now()
	return nil
}

// --- ebiten.Game ---

// Update implements [ebiten.Game].
func (w *Window) Update() error {
	if w.quit || w.stage.IsDestroyed() {
		return ebiten.Termination
	}
	clock := w.stage.Context().Clock()
	clock.Invoke(func() { w.input.poll(w.stage) })
	clock.Iterate()
	return nil
}

// Draw implements [ebiten.Game].
func (w *Window) Draw(screen *ebiten.Image) {
	if !w.shown || w.view == nil {
		return
	}
	if fb, ok := w.view.Framebuffer.(*Framebuffer); ok {
		screen.DrawImage(fb.img, nil)
	}
}

// Layout implements [ebiten.Game]. A user-resizable stage follows the
// window; otherwise the framebuffer is scaled to fit.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	if w.resizable && outsideWidth > 0 && outsideHeight > 0 &&
		(outsideWidth != w.width || outsideHeight != w.height) {
		w.stage.Context().Clock().Invoke(func() {
			w.width, w.height = outsideWidth, outsideHeight
			w.reallocate()
			w.stage.NotifyResize(float64(outsideWidth), float64(outsideHeight))
		})
	}
	return w.width, w.height
}

// Run opens the window of s and blocks until it is closed or the stage is
// destroyed. It must be called from the main goroutine.
func Run(s *tableau.Stage) error {
	w, ok := s.Window().(*Window)
	if !ok {
		return ErrNotEbitenStage
	}
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowSize(w.width, w.height)
	if w.resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	if !s.IsShown() {
		s.Show()
	}
	tableau.Logger().Info("ebiten loop starting", "title", w.title, "width", w.width, "height", w.height)
	err := ebiten.RunGame(w)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}
