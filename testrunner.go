package tableau

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// scriptAction is one compiled script step. It returns how many extra
// ticks to hold before the next step runs.
type scriptAction func(s *Stage) (hold int)

// stepSpec is the JSON form of a script step.
type stepSpec struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	FromX  float64 `json:"fromX,omitempty"`
	FromY  float64 `json:"fromY,omitempty"`
	ToX    float64 `json:"toX,omitempty"`
	ToY    float64 `json:"toY,omitempty"`
	Frames int     `json:"frames,omitempty"`
	Key    int     `json:"key,omitempty"`
	Char   string  `json:"char,omitempty"`
}

func (sp stepSpec) compile() (scriptAction, error) {
	switch sp.Action {
	case "click":
		return func(s *Stage) int {
			s.InjectClick(sp.X, sp.Y)
			return 0
		}, nil
	case "motion":
		return func(s *Stage) int {
			s.InjectMotion(sp.X, sp.Y)
			return 0
		}, nil
	case "drag":
		return func(s *Stage) int {
			s.InjectDrag(sp.FromX, sp.FromY, sp.ToX, sp.ToY, sp.Frames)
			return 0
		}, nil
	case "key":
		r, _ := utf8.DecodeRuneInString(sp.Char)
		if r == utf8.RuneError {
			r = 0
		}
		return func(s *Stage) int {
			s.InjectKey(sp.Key, r, true)
			s.InjectKey(sp.Key, r, false)
			return 0
		}, nil
	case "screenshot":
		return func(s *Stage) int {
			s.Screenshot(sp.Label)
			return 0
		}, nil
	case "wait":
		if sp.Frames < 0 {
			return nil, errors.New("wait needs a non-negative frame count")
		}
		// the tick that runs the step counts as the first waited frame
		hold := max(sp.Frames-1, 0)
		return func(*Stage) int { return hold }, nil
	}
	return nil, fmt.Errorf("unknown action %q", sp.Action)
}

// TestRunner plays a script of injected input, waits and screenshots, one
// step per tick. Attach it with Stage.SetTestRunner.
type TestRunner struct {
	actions []scriptAction
	next    int
	hold    int
	done    bool
}

// LoadTestScript compiles a JSON test script:
//
//	{"steps": [
//	  {"action": "click", "x": 20, "y": 20},
//	  {"action": "wait", "frames": 3},
//	  {"action": "drag", "fromX": 0, "fromY": 0, "toX": 40, "toY": 0, "frames": 5},
//	  {"action": "key", "key": 13, "char": "\r"},
//	  {"action": "screenshot", "label": "after-click"}
//	]}
func LoadTestScript(jsonData []byte) (*TestRunner, error) {
	var script struct {
		Steps []stepSpec `json:"steps"`
	}
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errors.New("parse test script: no steps")
	}
	r := &TestRunner{actions: make([]scriptAction, 0, len(script.Steps))}
	for i, sp := range script.Steps {
		act, err := sp.compile()
		if err != nil {
			return nil, fmt.Errorf("parse test script: step %d: %w", i, err)
		}
		r.actions = append(r.actions, act)
	}
	return r, nil
}

// SetTestRunner attaches a runner. It advances once per tick, before the
// stage's events are dispatched.
func (s *Stage) SetTestRunner(runner *TestRunner) {
	s.testRunner = runner
	s.scheduleUpdate()
}

// Done reports whether every step has run and its input was delivered.
func (r *TestRunner) Done() bool { return r.done }

// Remaining returns the number of steps not yet started.
func (r *TestRunner) Remaining() int { return len(r.actions) - r.next }

func (r *TestRunner) step(s *Stage) {
	switch {
	case r.done, len(s.injectQueue) > 0:
		return
	case r.hold > 0:
		r.hold--
		return
	case r.next >= len(r.actions):
		r.done = true
		return
	}

	r.hold = r.actions[r.next](s)
	r.next++
	if r.next == len(r.actions) && r.hold == 0 && len(s.injectQueue) == 0 {
		r.done = true
	}
}
