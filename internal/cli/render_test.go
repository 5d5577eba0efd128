package cli

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phanxgames/tableau"
)

func TestRenderSceneRunsAnimations(t *testing.T) {
	cfg, err := parseConfig(demoScene)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	img, stats, err := renderScene(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("renderScene: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Fatalf("image bounds = %v, want 100x80", b)
	}
	if stats.frames != 10 || stats.ticks == 0 || stats.presents == 0 {
		t.Errorf("stats = %+v", stats)
	}

	bg := color.RGBA{0x10, 0x20, 0x30, 255}
	if got := img.RGBAAt(15, 25); got != bg {
		t.Errorf("old box position = %v, want background %v", got, bg)
	}
	if got := img.RGBAAt(75, 25); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("box at its target = %v, want red", got)
	}
	if got := img.RGBAAt(66, 16); got.G < 100 || got.R < 100 {
		t.Errorf("half-transparent child = %v, want a red/green blend", got)
	}
}

func TestRenderSceneHonoursCancellation(t *testing.T) {
	cfg, err := parseConfig(demoScene)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := renderScene(ctx, cfg, ""); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRenderSceneWithScript(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(demoScene)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Stage.ScreenshotDir = filepath.Join(dir, "shots")
	script := filepath.Join(dir, "script.json")
	data := `{"steps": [{"action": "wait", "frames": 2}, {"action": "screenshot", "label": "scripted"}]}`
	if err := os.WriteFile(script, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := renderScene(context.Background(), cfg, script); err != nil {
		t.Fatalf("renderScene: %v", err)
	}
	shots, _ := filepath.Glob(filepath.Join(dir, "shots", "*_scripted.png"))
	if len(shots) != 1 {
		t.Errorf("screenshots = %v, want one", shots)
	}

	if err := os.WriteFile(script, []byte(`{"steps": [{"action": "dance"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := renderScene(context.Background(), cfg, script); err == nil {
		t.Error("invalid script should fail")
	}
}

func TestRenderCommand(t *testing.T) {
	t.Cleanup(func() { tableau.SetLogger(nil) })
	dir := t.TempDir()
	scenePath := filepath.Join(dir, "scene.toml")
	if err := os.WriteFile(scenePath, []byte(demoScene), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out", "frame.png")

	var stderr bytes.Buffer
	root := NewRootCommand()
	root.SetErr(&stderr)
	root.SetArgs([]string{"render", scenePath, "-o", out, "-n", "3", "-v"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("render: %v\n%s", err, stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("bounds = %v", b)
	}
	if !strings.Contains(stderr.String(), "Rendered 3 frames") {
		t.Errorf("progress line missing from log:\n%s", stderr.String())
	}
}

func TestRenderCommandRequiresScene(t *testing.T) {
	root := NewRootCommand()
	root.SetErr(&bytes.Buffer{})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"render"})
	if err := root.Execute(); err == nil {
		t.Error("render without a scene should fail")
	}
}
