package tableau

import "slices"

// StageManager lists the live stages of a context. The first stage
// created becomes the default stage.
type StageManager struct {
	stages       []*Stage
	defaultStage *Stage
}

// Stages returns a snapshot of the live stages in creation order.
func (m *StageManager) Stages() []*Stage {
	return slices.Clone(m.stages)
}

// Len returns the number of live stages.
func (m *StageManager) Len() int { return len(m.stages) }

// DefaultStage returns the default stage, or nil.
func (m *StageManager) DefaultStage() *Stage { return m.defaultStage }

// SetDefaultStage makes s the default. Stages not managed here are ignored.
func (m *StageManager) SetDefaultStage(s *Stage) {
	if slices.Contains(m.stages, s) {
		m.defaultStage = s
	}
}

func (m *StageManager) add(s *Stage) {
	m.stages = append(m.stages, s)
	if m.defaultStage == nil {
		m.defaultStage = s
	}
}

func (m *StageManager) remove(s *Stage) {
	m.stages = slices.DeleteFunc(m.stages, func(x *Stage) bool { return x == s })
	if m.defaultStage == s {
		m.defaultStage = nil
		if len(m.stages) > 0 {
			m.defaultStage = m.stages[0]
		}
	}
}
