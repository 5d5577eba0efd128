package timeline

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/tableau"
)

// Transition animates up to four properties of an actor over a timeline.
// Every property gets its own tween, evaluated at the timeline's elapsed
// time on each new frame. If the target actor is destroyed the transition
// stops at the next frame without writing.
type Transition struct {
	*Timeline

	target *tableau.Actor
	tweens [4]*gween.Tween
	count  int
	apply  func(v [4]float64)
}

func newTransition(clock *tableau.MasterClock, target *tableau.Actor, duration time.Duration, fn ease.TweenFunc, from, to []float64, apply func(v [4]float64)) *Transition {
	tr := &Transition{Timeline: New(clock, duration), target: target, count: len(from), apply: apply}
	tr.SetEasing(fn)
	fn = tr.Easing()
	secs := float32(duration.Seconds())
	for i := range tr.count {
		tr.tweens[i] = gween.New(float32(from[i]), float32(to[i]), secs, fn)
	}
	tr.OnNewFrame(func(*Timeline) { tr.step() })
	return tr
}

func (tr *Transition) step() {
	if tr.target.IsDestroyed() {
		tr.Pause()
		return
	}
	var v [4]float64
	t := float32(tr.Elapsed().Seconds())
	if tr.Duration() == 0 {
		t = 1 // zero-length tweens only reach their end past 0
	}
	for i := range tr.count {
		cur, _ := tr.tweens[i].Set(t)
		v[i] = float64(cur)
	}
	tr.apply(v)
}

// Target returns the animated actor.
func (tr *Transition) Target() *tableau.Actor { return tr.target }

// TweenPosition moves the actor from its current position to (toX, toY).
func TweenPosition(clock *tableau.MasterClock, a *tableau.Actor, toX, toY float64, duration time.Duration, fn ease.TweenFunc) *Transition {
	x, y := a.Position()
	return newTransition(clock, a, duration, fn, []float64{x, y}, []float64{toX, toY}, func(v [4]float64) {
		a.SetPosition(v[0], v[1])
	})
}

// TweenScale animates the actor's x and y scale.
func TweenScale(clock *tableau.MasterClock, a *tableau.Actor, toSX, toSY float64, duration time.Duration, fn ease.TweenFunc) *Transition {
	sx, sy := a.Scale()
	return newTransition(clock, a, duration, fn, []float64{sx, sy}, []float64{toSX, toSY}, func(v [4]float64) {
		a.SetScale(v[0], v[1])
	})
}

// TweenOpacity animates the actor's opacity.
func TweenOpacity(clock *tableau.MasterClock, a *tableau.Actor, to uint8, duration time.Duration, fn ease.TweenFunc) *Transition {
	return newTransition(clock, a, duration, fn, []float64{float64(a.Opacity())}, []float64{float64(to)}, func(v [4]float64) {
		a.SetOpacity(clampByte(v[0]))
	})
}

// TweenRotation animates the rotation around axis, in degrees.
func TweenRotation(clock *tableau.MasterClock, a *tableau.Actor, axis tableau.RotateAxis, to float64, duration time.Duration, fn ease.TweenFunc) *Transition {
	return newTransition(clock, a, duration, fn, []float64{a.RotationAngle(axis)}, []float64{to}, func(v [4]float64) {
		a.SetRotationAngle(axis, v[0])
	})
}

// TweenBackgroundColor animates all four channels of the background color.
// An actor without a background starts from transparent.
func TweenBackgroundColor(clock *tableau.MasterClock, a *tableau.Actor, to tableau.Color, duration time.Duration, fn ease.TweenFunc) *Transition {
	c, _ := a.BackgroundColor()
	from := []float64{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
	dst := []float64{float64(to.R), float64(to.G), float64(to.B), float64(to.A)}
	return newTransition(clock, a, duration, fn, from, dst, func(v [4]float64) {
		a.SetBackgroundColor(tableau.Color{R: clampByte(v[0]), G: clampByte(v[1]), B: clampByte(v[2]), A: clampByte(v[3])})
	})
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
