package tableau

// Injected events are released one per tick, like real input arriving
// frame by frame, and are marked Synthetic.

func (s *Stage) inject(e Event) {
	if s.destroyed {
		return
	}
	e.Synthetic = true
	if e.Device == nil {
		e.Device = defaultDevice(e.Type)
	}
	s.injectQueue = append(s.injectQueue, &e)
	s.scheduleUpdate()
}

// InjectMotion queues a pointer motion to (x, y), in stage pixels.
func (s *Stage) InjectMotion(x, y float64) {
	s.inject(Event{Type: EventMotion, X: x, Y: y})
}

// InjectPress queues a left button press at (x, y).
func (s *Stage) InjectPress(x, y float64) {
	s.inject(Event{Type: EventButtonPress, X: x, Y: y, Button: MouseButtonLeft})
}

// InjectRelease queues a left button release at (x, y).
func (s *Stage) InjectRelease(x, y float64) {
	s.inject(Event{Type: EventButtonRelease, X: x, Y: y, Button: MouseButtonLeft})
}

// InjectClick is a convenience that queues a press followed by a release
// at the same coordinates. Consumes two ticks.
func (s *Stage) InjectClick(x, y float64) {
	s.InjectPress(x, y)
	s.InjectRelease(x, y)
}

// InjectDrag queues a full drag sequence: press at (fromX, fromY),
// linearly interpolated motions over frames-2 intermediate ticks, and
// release at (toX, toY). The total sequence consumes frames ticks.
// Minimum frames is 2 (press + release).
func (s *Stage) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	s.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		x := fromX + (toX-fromX)*t
		y := fromY + (toY-fromY)*t
		s.InjectMotion(x, y)
	}
	s.InjectRelease(toX, toY)
}

// InjectKey queues a key press or release for the key focus.
func (s *Stage) InjectKey(key int, r rune, pressed bool) {
	t := EventKeyRelease
	if pressed {
		t = EventKeyPress
	}
	s.inject(Event{Type: t, Key: key, Rune: r})
}

// NumInjected returns the number of injected events not yet released.
func (s *Stage) NumInjected() int { return len(s.injectQueue) }

// popInjected moves the oldest injected event to the event queue.
func (s *Stage) popInjected() bool {
	if len(s.injectQueue) == 0 {
		return false
	}
	e := s.injectQueue[0]
	copy(s.injectQueue, s.injectQueue[1:])
	s.injectQueue[len(s.injectQueue)-1] = nil
	s.injectQueue = s.injectQueue[:len(s.injectQueue)-1]
	if e.Time.IsZero() {
		e.Time = s.ctx.now()
	}
	s.events = append(s.events, e)
	return true
}
