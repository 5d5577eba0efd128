package tableau_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/phanxgames/tableau"
)

// eventLog records deliveries as "actor:phase:type".
type eventLog struct {
	entries []string
	events  []tableau.Event
}

func (l *eventLog) watch(a *tableau.Actor, types ...tableau.EventType) {
	keep := func(e *tableau.Event) bool {
		return len(types) == 0 || slices.Contains(types, e.Type)
	}
	a.OnCapturedEvent = func(e *tableau.Event) bool {
		if keep(e) {
			l.entries = append(l.entries, fmt.Sprintf("%s:capture:%s", a.Name, e.Type))
		}
		return false
	}
	a.OnEvent = func(e *tableau.Event) bool {
		if keep(e) {
			l.entries = append(l.entries, fmt.Sprintf("%s:bubble:%s", a.Name, e.Type))
			l.events = append(l.events, *e)
		}
		return false
	}
}

func (l *eventLog) reset() {
	l.entries = nil
	l.events = nil
}

func expectEntries(t *testing.T, l *eventLog, want ...string) {
	t.Helper()
	if !slices.Equal(l.entries, want) {
		t.Errorf("events = %v, want %v", l.entries, want)
	}
}

// pressTree builds stage > parent (0,0 60x60) > child (10,10 20x20) with
// the child reactive, and paints it.
func pressTree(t *testing.T) (*harness, *tableau.Actor, *tableau.Actor) {
	t.Helper()
	h := newHarness(t, tableau.StageConfig{})
	h.stage.Name = "stage"
	parent := rect("parent", 0, 0, 60, 60, tableau.ColorBlue)
	child := reactiveRect("child", 10, 10, 20, 20)
	parent.AddChild(child)
	h.stage.AddChild(parent)
	h.frame()
	return h, parent, child
}

func press(x, y float64) tableau.Event {
	return tableau.Event{Type: tableau.EventButtonPress, X: x, Y: y}
}

// --- Propagation ---

func TestCaptureThenBubble(t *testing.T) {
	h, parent, child := pressTree(t)
	var l eventLog
	for _, a := range []*tableau.Actor{h.stage.Actor, parent, child} {
		l.watch(a, tableau.EventButtonPress)
	}

	h.stage.QueueEvent(press(15, 15))
	h.frame()
	expectEntries(t, &l,
		"stage:capture:button-press",
		"parent:capture:button-press",
		"child:capture:button-press",
		"child:bubble:button-press",
		"parent:bubble:button-press",
		"stage:bubble:button-press",
	)
	if len(l.events) == 0 || l.events[0].Source != child {
		t.Error("Source should be the picked actor")
	}
}

func TestCaptureHandlerStopsEvent(t *testing.T) {
	h, parent, child := pressTree(t)
	var l eventLog
	l.watch(child, tableau.EventButtonPress)
	parent.OnCapturedEvent = func(e *tableau.Event) bool {
		return e.Type == tableau.EventButtonPress
	}

	h.stage.QueueEvent(press(15, 15))
	h.frame()
	expectEntries(t, &l)
}

func TestBubbleHandlerStopsEvent(t *testing.T) {
	h, parent, child := pressTree(t)
	var l eventLog
	l.watch(h.stage.Actor, tableau.EventButtonPress)
	l.watch(parent, tableau.EventButtonPress)
	child.OnEvent = func(e *tableau.Event) bool {
		return e.Type == tableau.EventButtonPress
	}

	h.stage.QueueEvent(press(15, 15))
	h.frame()
	expectEntries(t, &l, "stage:capture:button-press", "parent:capture:button-press")
}

func TestStageHandlers(t *testing.T) {
	h, _, child := pressTree(t)
	var l eventLog
	l.watch(child, tableau.EventButtonPress)

	var order []string
	h.stage.On(tableau.EventButtonPress, func(e *tableau.Event) bool {
		order = append(order, "on")
		return true
	})
	anyHandle := h.stage.OnAny(func(e *tableau.Event) bool {
		if e.Type == tableau.EventButtonPress {
			order = append(order, "any")
		}
		return false
	})

	h.stage.QueueEvent(press(15, 15))
	h.frame()
	if !slices.Equal(order, []string{"any", "on"}) {
		t.Errorf("handler order = %v", order)
	}
	expectEntries(t, &l)

	anyHandle.Remove()
	order = nil
	h.stage.QueueEvent(press(15, 15))
	h.frame()
	if !slices.Equal(order, []string{"on"}) {
		t.Errorf("after Remove = %v", order)
	}
}

func TestStageHandlerRemoveByType(t *testing.T) {
	h, _, child := pressTree(t)
	var l eventLog
	l.watch(child, tableau.EventButtonPress)
	stop := h.stage.On(tableau.EventButtonPress, func(*tableau.Event) bool { return true })
	stop.Remove()
	stop.Remove()

	h.stage.QueueEvent(press(15, 15))
	h.frame()
	expectEntries(t, &l, "child:capture:button-press", "child:bubble:button-press")
}

// --- Crossing ---

func TestEnterAndLeave(t *testing.T) {
	h, _, child := pressTree(t)
	var l eventLog
	l.watch(child, tableau.EventEnter, tableau.EventLeave)
	l.watch(h.stage.Actor, tableau.EventEnter, tableau.EventLeave)

	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 15, Y: 15})
	h.frame()
	expectEntries(t, &l,
		"stage:capture:enter",
		"child:capture:enter",
		"child:bubble:enter",
		"stage:bubble:enter",
	)
	if e := l.events[0]; !e.Synthetic || e.Related != nil || e.Source != child {
		t.Errorf("enter = %+v", e)
	}
	if got := h.stage.DeviceActor(tableau.CorePointer, 0); got != child {
		t.Errorf("DeviceActor = %v", got)
	}

	l.reset()
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 15, Y: 16})
	h.frame()
	expectEntries(t, &l)

	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 90, Y: 90})
	h.frame()
	expectEntries(t, &l,
		"stage:capture:leave",
		"child:capture:leave",
		"child:bubble:leave",
		"stage:bubble:leave",
		"stage:capture:enter",
		"stage:bubble:enter",
	)
	if leave := l.events[0]; leave.Related != h.stage.Actor {
		t.Errorf("leave.Related = %v", leave.Related)
	}
	if enter := l.events[2]; enter.Related != child {
		t.Errorf("enter.Related = %v", enter.Related)
	}
}

func TestTouchEndLeavesActor(t *testing.T) {
	h, _, child := pressTree(t)
	var l eventLog
	l.watch(child)

	h.stage.QueueEvent(tableau.Event{Type: tableau.EventTouchBegin, X: 15, Y: 15, Sequence: 4})
	h.frame()
	if got := h.stage.DeviceActor(tableau.CoreTouchscreen, 4); got != child {
		t.Fatalf("DeviceActor = %v", got)
	}

	l.reset()
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventTouchEnd, X: 15, Y: 15, Sequence: 4})
	h.frame()
	expectEntries(t, &l,
		"child:capture:touch-end",
		"child:bubble:touch-end",
		"child:capture:leave",
		"child:bubble:leave",
	)
	if h.stage.DeviceActor(tableau.CoreTouchscreen, 4) != nil {
		t.Error("ended touch point should be forgotten")
	}
}

func TestHidingActorUnderPointerMovesIt(t *testing.T) {
	h, _, child := pressTree(t)
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 15, Y: 15})
	h.frame()

	child.Hide()
	h.frame()
	if got := h.stage.DeviceActor(tableau.CorePointer, 0); got != h.stage.Actor {
		t.Errorf("pointer should move to the stage, got %v", got)
	}
}

// --- Key focus and grabs ---

func TestKeyFocus(t *testing.T) {
	h, parent, child := pressTree(t)
	var l eventLog
	l.watch(h.stage.Actor, tableau.EventKeyPress)
	l.watch(child, tableau.EventKeyPress)

	if h.stage.KeyFocus() != h.stage.Actor {
		t.Fatal("key focus should default to the stage")
	}
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventKeyPress, Key: 32, Rune: ' '})
	h.frame()
	expectEntries(t, &l, "stage:capture:key-press", "stage:bubble:key-press")
	if l.events[0].Device != tableau.CoreKeyboard || l.events[0].Rune != ' ' {
		t.Errorf("key event = %+v", l.events[0])
	}

	h.stage.SetKeyFocus(child)
	l.reset()
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventKeyPress, Key: 32})
	h.frame()
	expectEntries(t, &l,
		"stage:capture:key-press",
		"child:capture:key-press",
		"child:bubble:key-press",
		"stage:bubble:key-press",
	)

	parent.Hide()
	if h.stage.KeyFocus() != h.stage.Actor {
		t.Error("unmapping the focus should return it to the stage")
	}
}

func TestKeyFocusFromOtherStageIgnored(t *testing.T) {
	h := newHarness(t, tableau.StageConfig{})
	other, err := h.ctx.NewStage(tableau.StageConfig{Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	foreign := tableau.NewActor("foreign")
	other.AddChild(foreign)
	h.stage.SetKeyFocus(foreign)
	if h.stage.KeyFocus() != h.stage.Actor {
		t.Error("actor of another stage must not take focus")
	}
}

func TestDeviceGrab(t *testing.T) {
	h, parent, child := pressTree(t)
	var l eventLog
	l.watch(child, tableau.EventButtonPress)

	h.stage.GrabDevice(tableau.CorePointer, child)
	if h.stage.DeviceGrab(tableau.CorePointer) != child {
		t.Fatal("DeviceGrab should return the grabbing actor")
	}
	h.stage.QueueEvent(press(90, 90))
	h.frame()
	expectEntries(t, &l, "child:capture:button-press", "child:bubble:button-press")

	h.stage.UngrabDevice(tableau.CorePointer)
	l.reset()
	h.stage.QueueEvent(press(90, 90))
	h.frame()
	expectEntries(t, &l)

	h.stage.GrabDevice(tableau.CorePointer, child)
	parent.Hide()
	if h.stage.DeviceGrab(tableau.CorePointer) != nil {
		t.Error("unmapping should release the grab")
	}
}

// --- Queueing ---

func TestQueueEventFillsDefaults(t *testing.T) {
	h, _, child := pressTree(t)
	var got *tableau.Event
	h.stage.On(tableau.EventButtonPress, func(e *tableau.Event) bool {
		c := *e
		got = &c
		return false
	})
	queuedAt := h.now
	h.stage.QueueEvent(press(17, 19))
	if h.stage.NumQueuedEvents() != 1 {
		t.Fatalf("NumQueuedEvents = %d", h.stage.NumQueuedEvents())
	}
	h.frame()

	if got == nil {
		t.Fatal("press not delivered")
	}
	if !got.Time.Equal(queuedAt) || got.Device != tableau.CorePointer || got.Stage != h.stage || got.Synthetic {
		t.Errorf("event = %+v", got)
	}
	if x, y, ok := got.LocalPosition(child); !ok || !near(x, 7) || !near(y, 9) {
		t.Errorf("LocalPosition = (%v, %v, %v)", x, y, ok)
	}
	if h.stage.NumQueuedEvents() != 0 {
		t.Error("queue should be drained")
	}
}

func TestMotionIsCoalesced(t *testing.T) {
	h, _, _ := pressTree(t)
	var xs []float64
	h.stage.On(tableau.EventMotion, func(e *tableau.Event) bool {
		xs = append(xs, e.X)
		return false
	})
	for _, x := range []float64{1, 2, 3} {
		h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: x, Y: 1})
	}
	h.frame()
	if !slices.Equal(xs, []float64{3}) {
		t.Errorf("motions = %v, want only the last", xs)
	}
	if st := h.stage.LastFrameStats(); st.Events == 0 {
		t.Error("frame stats should count dispatched events")
	}
}

func TestPrecisionMotionIsNotCoalesced(t *testing.T) {
	h, _, _ := pressTree(t)
	pen := &tableau.InputDevice{ID: 9, Name: "pen", Type: tableau.DevicePen}
	var xs []float64
	h.stage.On(tableau.EventMotion, func(e *tableau.Event) bool {
		xs = append(xs, e.X)
		return false
	})
	for _, x := range []float64{1, 2, 3} {
		h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: x, Y: 1, Device: pen})
	}
	h.frame()
	if !slices.Equal(xs, []float64{1, 2, 3}) {
		t.Errorf("motions = %v, want every sample", xs)
	}
}

func TestMotionSeparatedByPressIsKept(t *testing.T) {
	h, _, _ := pressTree(t)
	var types []tableau.EventType
	h.stage.OnAny(func(e *tableau.Event) bool {
		if e.Type == tableau.EventMotion || e.Type == tableau.EventButtonPress {
			types = append(types, e.Type)
		}
		return false
	})
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 1, Y: 1})
	h.stage.QueueEvent(press(2, 2))
	h.stage.QueueEvent(tableau.Event{Type: tableau.EventMotion, X: 3, Y: 3})
	h.frame()
	want := []tableau.EventType{tableau.EventMotion, tableau.EventButtonPress, tableau.EventMotion}
	if !slices.Equal(types, want) {
		t.Errorf("types = %v, want %v", types, want)
	}
}

func TestEventTypeString(t *testing.T) {
	if tableau.EventTouchCancel.String() != "touch-cancel" {
		t.Errorf("String = %q", tableau.EventTouchCancel.String())
	}
	if got := tableau.EventType(200).String(); got != "EventType(200)" {
		t.Errorf("String = %q", got)
	}
}

// --- ECS bridge ---

type recordingStore struct {
	events []tableau.InteractionEvent
}

func (r *recordingStore) EmitEvent(e tableau.InteractionEvent) {
	r.events = append(r.events, e)
}

func TestEntityStoreReceivesInteractions(t *testing.T) {
	h, _, child := pressTree(t)
	store := &recordingStore{}
	h.stage.SetEntityStore(store)
	child.EntityID = 7

	h.stage.QueueEvent(press(15, 18))
	h.stage.QueueEvent(press(50, 50)) // parent is not reactive: stage
	h.frame()

	var presses []tableau.InteractionEvent
	for _, e := range store.events {
		if e.Type == tableau.EventButtonPress {
			presses = append(presses, e)
		}
	}
	if len(presses) != 1 {
		t.Fatalf("got %d presses, want 1", len(presses))
	}
	e := presses[0]
	if e.EntityID != 7 || e.GlobalX != 15 || !near(e.LocalX, 5) || !near(e.LocalY, 8) {
		t.Errorf("interaction = %+v", e)
	}
}
