package tableau

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLog routes the package logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func withDebugMode(t *testing.T) {
	t.Helper()
	SetDebugMode(true)
	t.Cleanup(func() { SetDebugMode(false) })
}

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic containing %q", contains)
		}
		if msg := fmt.Sprint(r); !strings.Contains(msg, contains) {
			t.Errorf("panic = %q, want it to contain %q", msg, contains)
		}
	}()
	fn()
}

// --- Debug mode ---

func TestDebugModeToggle(t *testing.T) {
	if DebugMode() {
		t.Fatal("debug mode should be off by default")
	}
	withDebugMode(t)
	if !DebugMode() {
		t.Error("SetDebugMode(true) should enable it")
	}
}

func TestDebugModeDestroyedChildPanics(t *testing.T) {
	withDebugMode(t)
	parent := NewActor("parent")
	child := NewActor("child")
	child.Destroy()
	expectPanic(t, `AddChild (child) on destroyed actor "child"`, func() {
		parent.AddChild(child)
	})
}

func TestDebugModeDestroyedParentPanics(t *testing.T) {
	withDebugMode(t)
	parent := NewActor("parent")
	parent.Destroy()
	expectPanic(t, "AddChild (parent) on destroyed actor", func() {
		parent.AddChild(NewActor("child"))
	})
}

func TestDebugModeContractViolationPanics(t *testing.T) {
	withDebugMode(t)
	parent := NewActor("parent")
	stranger := NewActor("stranger")
	expectPanic(t, "tableau debug: RemoveChild on actor \"parent\"", func() {
		parent.RemoveChild(stranger)
	})
}

func TestContractViolationLogsOutsideDebugMode(t *testing.T) {
	buf := captureLog(t)
	parent := NewActor("parent")
	child := NewActor("child")
	child.Destroy()

	parent.AddChild(child)
	if parent.NumChildren() != 0 {
		t.Error("the violating call should be skipped")
	}
	out := buf.String()
	if !strings.Contains(out, "contract violation") || !strings.Contains(out, "op=AddChild") {
		t.Errorf("log = %q", out)
	}
}

func TestInsertAboveForeignSiblingIsSkipped(t *testing.T) {
	captureLog(t)
	parent := NewActor("parent")
	other := NewActor("other")
	child := NewActor("child")
	parent.InsertChildAbove(child, other)
	if parent.NumChildren() != 0 || child.Parent() != nil {
		t.Error("insert next to a foreign sibling should be skipped")
	}
}

func TestDebugTreeDepthWarning(t *testing.T) {
	withDebugMode(t)
	buf := captureLog(t)
	root := NewActor("root")
	cur := root
	for i := 0; i <= debugMaxTreeDepth; i++ {
		next := NewActor(fmt.Sprintf("n%d", i))
		cur.AddChild(next)
		cur = next
	}
	if !strings.Contains(buf.String(), "tree depth exceeds threshold") {
		t.Error("deep trees should be reported in debug mode")
	}
}

// --- Logger ---

func TestDefaultLoggerIsSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("the default logger should discard everything")
	}
}

// --- FrameStats ---

func TestFrameStatsTotal(t *testing.T) {
	st := FrameStats{
		LayoutTime: time.Millisecond,
		EventTime:  2 * time.Millisecond,
		PaintTime:  3 * time.Millisecond,
		SubmitTime: 4 * time.Millisecond,
	}
	if st.Total() != 10*time.Millisecond {
		t.Errorf("Total = %v", st.Total())
	}
}

func TestFrameStatsLogValue(t *testing.T) {
	buf := captureLog(t)
	Logger().Debug("frame", "stats", FrameStats{Relayouts: 2, DrawOps: 7})
	out := buf.String()
	for _, want := range []string{"stats.relayouts=2", "stats.ops=7", "stats.total=0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
