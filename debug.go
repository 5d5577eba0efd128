package tableau

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

var globalDebug atomic.Bool

// SetDebugMode enables or disables debug mode. When enabled, contract
// violations (painting an unallocated actor, allocating a detached one,
// using a destroyed actor) panic, and tree depth and child count warnings
// are logged. When disabled the same violations are logged at warn level
// and the offending call is skipped.
func SetDebugMode(enabled bool) {
	globalDebug.Store(enabled)
}

// DebugMode reports whether debug mode is on.
func DebugMode() bool {
	return globalDebug.Load()
}

// contractViolation reports misuse of the API. It panics in debug mode and
// otherwise logs and lets the caller degrade.
func contractViolation(op string, a *Actor, detail string) {
	msg := fmt.Sprintf("tableau debug: %s on %s", op, a.describe())
	if detail != "" {
		msg += ": " + detail
	}
	if globalDebug.Load() {
		panic(msg)
	}
	Logger().Warn("contract violation", "op", op, "actor", a.describe(), "detail", detail)
}

// debugCheckDestroyed panics when a destroyed actor is used in a tree
// operation. Only called in debug mode.
func debugCheckDestroyed(a *Actor, op string) {
	if a.IsDestroyed() {
		panic(fmt.Sprintf("tableau debug: %s on destroyed actor %q (ID was %d)", op, a.Name, a.lastID))
	}
}

const debugMaxTreeDepth = 32

func debugCheckTreeDepth(a *Actor) {
	depth := a.depth()
	if depth > debugMaxTreeDepth {
		Logger().Warn("tree depth exceeds threshold",
			"depth", depth, "threshold", debugMaxTreeDepth, "actor", a.Name)
	}
}

const debugMaxChildCount = 1000

func debugCheckChildCount(a *Actor) {
	if a.nChildren > debugMaxChildCount {
		Logger().Warn("child count exceeds threshold",
			"actor", a.Name, "children", a.nChildren, "threshold", debugMaxChildCount)
	}
}

// FrameStats holds the metrics of one stage update.
type FrameStats struct {
	Relayouts     int
	Events        int
	PaintedActors int
	CulledActors  int
	DrawOps       int
	PickRecords   int
	Views         int

	LayoutTime time.Duration
	EventTime  time.Duration
	PaintTime  time.Duration
	SubmitTime time.Duration
}

// Total is the sum of the measured phases.
func (st FrameStats) Total() time.Duration {
	return st.LayoutTime + st.EventTime + st.PaintTime + st.SubmitTime
}

// LogValue implements [slog.LogValuer].
func (st FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("relayouts", st.Relayouts),
		slog.Int("events", st.Events),
		slog.Int("painted", st.PaintedActors),
		slog.Int("culled", st.CulledActors),
		slog.Int("ops", st.DrawOps),
		slog.Int("views", st.Views),
		slog.Duration("layout", st.LayoutTime),
		slog.Duration("events_time", st.EventTime),
		slog.Duration("paint", st.PaintTime),
		slog.Duration("submit", st.SubmitTime),
		slog.Duration("total", st.Total()),
	)
}
