package tableau

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (usually wrapped) by setup calls.
var (
	ErrNoBackend                 = errors.New("tableau: no backend available")
	ErrStageRealize              = errors.New("tableau: stage realize failed")
	ErrMultipleStagesUnsupported = errors.New("tableau: backend supports a single stage")
	ErrContextClosed             = errors.New("tableau: context closed")
	ErrNoFramebuffer             = errors.New("tableau: view has no framebuffer")
	ErrReadPixels                = errors.New("tableau: read pixels failed")
)

// StageError reports a backend failure that affects a single stage.
type StageError struct {
	Stage string // stage title, or "stage" when untitled
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("tableau: %s %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newStageError(s *Stage, op string, err error) *StageError {
	name := "stage"
	if s != nil && s.title != "" {
		name = fmt.Sprintf("stage %q", s.title)
	}
	return &StageError{Stage: name, Op: op, Err: err}
}
