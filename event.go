package tableau

import (
	"strconv"
	"time"
)

// EventType identifies a kind of input event.
type EventType uint8

const (
	EventNothing       EventType = iota
	EventMotion                  // pointer moved
	EventButtonPress             // pointer button pressed
	EventButtonRelease           // pointer button released
	EventScroll                  // scroll wheel or touchpad scroll
	EventKeyPress                // key pressed; delivered to the key focus
	EventKeyRelease              // key released; delivered to the key focus
	EventTouchBegin              // a touch point went down
	EventTouchUpdate             // a touch point moved
	EventTouchEnd                // a touch point was lifted
	EventTouchCancel             // a touch sequence was cancelled
	EventEnter                   // the device entered an actor (synthesized)
	EventLeave                   // the device left an actor (synthesized)
)

var eventTypeNames = [...]string{
	EventNothing:       "nothing",
	EventMotion:        "motion",
	EventButtonPress:   "button-press",
	EventButtonRelease: "button-release",
	EventScroll:        "scroll",
	EventKeyPress:      "key-press",
	EventKeyRelease:    "key-release",
	EventTouchBegin:    "touch-begin",
	EventTouchUpdate:   "touch-update",
	EventTouchEnd:      "touch-end",
	EventTouchCancel:   "touch-cancel",
	EventEnter:         "enter",
	EventLeave:         "leave",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "EventType(" + strconv.Itoa(int(t)) + ")"
}

// MouseButton identifies a mouse button.
type MouseButton uint8

const (
	MouseButtonLeft   MouseButton = iota // primary (left) mouse button
	MouseButtonRight                     // secondary (right) mouse button
	MouseButtonMiddle                    // middle mouse button (scroll wheel click)
)

// KeyModifiers is a bitmask of keyboard modifier keys.
// Values can be combined with bitwise OR (e.g. ModShift | ModCtrl).
type KeyModifiers uint8

const (
	ModShift KeyModifiers = 1 << iota // Shift key
	ModCtrl                           // Control key
	ModAlt                            // Alt / Option key
	ModMeta                           // Meta / Command / Windows key
)

// InputDeviceType classifies input devices.
type InputDeviceType uint8

const (
	DevicePointer InputDeviceType = iota
	DeviceKeyboard
	DeviceTouchscreen
	DeviceTouchpad
	DeviceTablet
	DevicePen
	DeviceEraser
)

// InputDevice is a source of events. Devices are compared by pointer.
type InputDevice struct {
	ID   int
	Name string
	Type InputDeviceType
}

// IsPrecision reports whether the device reports every sample, so its
// motion must never be coalesced.
func (d *InputDevice) IsPrecision() bool {
	switch d.Type {
	case DeviceTablet, DevicePen, DeviceEraser:
		return true
	}
	return false
}

// Default devices used when an event carries none.
var (
	CorePointer     = &InputDevice{ID: 1, Name: "core pointer", Type: DevicePointer}
	CoreKeyboard    = &InputDevice{ID: 2, Name: "core keyboard", Type: DeviceKeyboard}
	CoreTouchscreen = &InputDevice{ID: 3, Name: "core touchscreen", Type: DeviceTouchscreen}
)

// Event is an input event. Coordinates are stage pixels.
type Event struct {
	Type     EventType
	Time     time.Time
	Device   *InputDevice
	Sequence int // touch point id; 0 for pointers

	X, Y      float64
	Button    MouseButton
	Modifiers KeyModifiers

	ScrollDX, ScrollDY float64

	Key  int
	Rune rune

	// Source is the actor the event is delivered to.
	Source *Actor
	// Related is the other actor of an enter or leave event.
	Related *Actor
	Stage   *Stage

	Synthetic bool
}

// IsPointer reports whether the event carries a position and is routed by
// picking.
func (e *Event) IsPointer() bool {
	switch e.Type {
	case EventMotion, EventButtonPress, EventButtonRelease, EventScroll,
		EventTouchBegin, EventTouchUpdate, EventTouchEnd, EventTouchCancel:
		return true
	}
	return false
}

// LocalPosition maps the event position into a's local coordinates.
func (e *Event) LocalPosition(a *Actor) (x, y float64, ok bool) {
	return a.TransformStagePoint(e.X, e.Y)
}

func defaultDevice(t EventType) *InputDevice {
	switch t {
	case EventKeyPress, EventKeyRelease:
		return CoreKeyboard
	case EventTouchBegin, EventTouchUpdate, EventTouchEnd, EventTouchCancel:
		return CoreTouchscreen
	}
	return CorePointer
}

// coalesces reports whether a can be dropped because b, which follows it,
// supersedes it.
func coalesces(a, b *Event) bool {
	if a.Type != b.Type || a.Device != b.Device || a.Sequence != b.Sequence {
		return false
	}
	if a.Type != EventMotion && a.Type != EventTouchUpdate {
		return false
	}
	return a.Device == nil || !a.Device.IsPrecision()
}

// QueueEvent appends a copy of e to the stage's event queue. Events are
// dispatched in order on the next clock tick. Like every stage method it
// must run on the clock goroutine or under [MasterClock.Invoke].
func (s *Stage) QueueEvent(e Event) {
	if s.destroyed {
		return
	}
	if e.Time.IsZero() {
		e.Time = s.ctx.now()
	}
	if e.Device == nil {
		e.Device = defaultDevice(e.Type)
	}
	e.Stage = s
	s.events = append(s.events, &e)
	s.scheduleUpdate()
}

// NumQueuedEvents returns the number of events waiting for dispatch.
func (s *Stage) NumQueuedEvents() int { return len(s.events) }

// processFrameInput runs once per tick before the timelines advance: it
// steps the test runner, releases one injected event and dispatches the
// queue.
func (s *Stage) processFrameInput() int {
	if s.testRunner != nil {
		s.testRunner.step(s)
	}
	s.popInjected()
	return s.processEvents()
}

// processEvents dispatches the queued events in order. Consecutive motion
// or touch updates of the same stream collapse to the last one, except for
// precision devices.
func (s *Stage) processEvents() int {
	if len(s.events) == 0 {
		return 0
	}
	events := s.events
	s.events = nil
	n := 0
	for i, e := range events {
		if s.destroyed {
			break
		}
		if i+1 < len(events) && coalesces(e, events[i+1]) {
			continue
		}
		s.dispatchEvent(e)
		n++
	}
	s.stats.Events += n
	return n
}

// --- ECS bridge ---

// EntityStore is the interface for optional ECS integration.
// When set on a Stage, events delivered to actors with an EntityID are
// forwarded to the store.
type EntityStore interface {
	EmitEvent(event InteractionEvent)
}

// InteractionEvent carries interaction data for the ECS bridge.
type InteractionEvent struct {
	Type      EventType
	EntityID  uint32
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	Button    MouseButton
	Modifiers KeyModifiers
	Key       int
	ScrollDX  float64
	ScrollDY  float64
}

func (s *Stage) emitInteraction(target *Actor, e *Event) {
	if s.store == nil || target == nil || target.EntityID == 0 {
		return
	}
	lx, ly, _ := target.TransformStagePoint(e.X, e.Y)
	s.store.EmitEvent(InteractionEvent{
		Type:      e.Type,
		EntityID:  target.EntityID,
		GlobalX:   e.X,
		GlobalY:   e.Y,
		LocalX:    lx,
		LocalY:    ly,
		Button:    e.Button,
		Modifiers: e.Modifiers,
		Key:       e.Key,
		ScrollDX:  e.ScrollDX,
		ScrollDY:  e.ScrollDY,
	})
}
