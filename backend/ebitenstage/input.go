package ebitenstage

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/phanxgames/tableau"
)

var mouseButtons = [...]struct {
	eb ebiten.MouseButton
	tb tableau.MouseButton
}{
	{ebiten.MouseButtonLeft, tableau.MouseButtonLeft},
	{ebiten.MouseButtonRight, tableau.MouseButtonRight},
	{ebiten.MouseButtonMiddle, tableau.MouseButtonMiddle},
}

// inputState turns ebiten's polled input into stage events.
type inputState struct {
	hasCursor bool
	cursorX   int
	cursorY   int
	keys      []ebiten.Key
	chars     []rune
	touches   []ebiten.TouchID
	touchPos  map[ebiten.TouchID][2]int
}

// readModifiers reads the current keyboard modifier state.
func readModifiers() tableau.KeyModifiers {
	var mods tableau.KeyModifiers
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		mods |= tableau.ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		mods |= tableau.ModCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		mods |= tableau.ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) {
		mods |= tableau.ModMeta
	}
	return mods
}

// poll queues the events of the current ebiten tick on s.
func (in *inputState) poll(s *tableau.Stage) {
	mods := readModifiers()
	in.pollPointer(s, mods)
	in.pollKeys(s, mods)
	in.pollTouches(s, mods)
}

func (in *inputState) pollPointer(s *tableau.Stage, mods tableau.KeyModifiers) {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)
	if !in.hasCursor || mx != in.cursorX || my != in.cursorY {
		in.hasCursor, in.cursorX, in.cursorY = true, mx, my
		s.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: x, Y: y, Modifiers: mods})
	}
	for _, b := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(b.eb) {
			s.QueueEvent(tableau.Event{Type: tableau.EventButtonPress, X: x, Y: y, Button: b.tb, Modifiers: mods})
		}
		if inpututil.IsMouseButtonJustReleased(b.eb) {
			s.QueueEvent(tableau.Event{Type: tableau.EventButtonRelease, X: x, Y: y, Button: b.tb, Modifiers: mods})
		}
	}
	if dx, dy := ebiten.Wheel(); dx != 0 || dy != 0 {
		s.QueueEvent(tableau.Event{Type: tableau.EventScroll, X: x, Y: y, ScrollDX: dx, ScrollDY: dy, Modifiers: mods})
	}
}

func (in *inputState) pollKeys(s *tableau.Stage, mods tableau.KeyModifiers) {
	in.keys = inpututil.AppendJustPressedKeys(in.keys[:0])
	for _, k := range in.keys {
		s.QueueEvent(tableau.Event{Type: tableau.EventKeyPress, Key: int(k), Modifiers: mods})
	}
	in.keys = inpututil.AppendJustReleasedKeys(in.keys[:0])
	for _, k := range in.keys {
		s.QueueEvent(tableau.Event{Type: tableau.EventKeyRelease, Key: int(k), Modifiers: mods})
	}
	// Text input arrives as key presses that carry only a rune.
	in.chars = ebiten.AppendInputChars(in.chars[:0])
	for _, r := range in.chars {
		s.QueueEvent(tableau.Event{Type: tableau.EventKeyPress, Key: -1, Rune: r, Modifiers: mods})
	}
}

func (in *inputState) pollTouches(s *tableau.Stage, mods tableau.KeyModifiers) {
	if in.touchPos == nil {
		in.touchPos = make(map[ebiten.TouchID][2]int)
	}
	in.touches = inpututil.AppendJustPressedTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		tx, ty := ebiten.TouchPosition(id)
		in.touchPos[id] = [2]int{tx, ty}
		s.QueueEvent(touchEvent(tableau.EventTouchBegin, id, tx, ty, mods))
	}
	in.touches = ebiten.AppendTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		tx, ty := ebiten.TouchPosition(id)
		if prev, ok := in.touchPos[id]; ok && prev == [2]int{tx, ty} {
			continue
		}
		in.touchPos[id] = [2]int{tx, ty}
		s.QueueEvent(touchEvent(tableau.EventTouchUpdate, id, tx, ty, mods))
	}
	in.touches = inpututil.AppendJustReleasedTouchIDs(in.touches[:0])
	for _, id := range in.touches {
		tx, ty := inpututil.TouchPositionInPreviousTick(id)
		delete(in.touchPos, id)
		s.QueueEvent(touchEvent(tableau.EventTouchEnd, id, tx, ty, mods))
	}
}

func touchEvent(t tableau.EventType, id ebiten.TouchID, x, y int, mods tableau.KeyModifiers) tableau.Event {
	return tableau.Event{
		Type:      t,
		Device:    tableau.CoreTouchscreen,
		Sequence:  int(id),
		X:         float64(x),
		Y:         float64(y),
		Button:    tableau.MouseButtonLeft,
		Modifiers: mods,
	}
}
