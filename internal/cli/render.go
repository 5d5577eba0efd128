package cli

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/backend/headless"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	output string // PNG path
	frames int    // overrides [clock] frames when > 0
	script string // optional JSON test script
}

func newRenderCmd() *cobra.Command {
	var opts renderOpts
	cmd := &cobra.Command{
		Use:   "render <scene.toml>",
		Short: "Paint a scene offscreen and write a PNG",
		Long: `Render builds the scene, advances a simulated clock at the configured
refresh rate for the requested number of frames and writes the final
stage contents as a PNG. Animations progress by one refresh interval per
frame, so output is reproducible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			if opts.frames > 0 {
				cfg.Clock.Frames = opts.frames
			}
			if opts.output == "" {
				base := filepath.Base(args[0])
				opts.output = base[:len(base)-len(filepath.Ext(base))] + ".png"
			}
			return runRender(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output PNG path (default: <scene>.png)")
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 0, "frames to paint before capturing")
	cmd.Flags().StringVar(&opts.script, "script", "", "JSON test script to drive input")
	return cmd
}

func runRender(ctx context.Context, cfg *Config, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	img, stats, err := renderScene(ctx, cfg, opts.script)
	if err != nil {
		return err
	}
	if err := writePNG(opts.output, img); err != nil {
		return err
	}
	logger.Debug("render stats", "frames", stats.frames, "ticks", stats.ticks, "presents", stats.presents)
	prog.done(fmt.Sprintf("Rendered %d frames to %s", stats.frames, opts.output))
	return nil
}

type renderStats struct {
	frames   int
	ticks    int
	presents int
}

// renderScene paints cfg on a headless backend and captures the stage.
func renderScene(ctx context.Context, cfg *Config, script string) (*image.RGBA, renderStats, error) {
	var stats renderStats
	b := headless.New(headless.WithRefreshRate(cfg.Clock.RefreshRate))
	now := time.Unix(0, 0)
	opts := append(cfg.contextOptions(), tableau.WithNow(func() time.Time { return now }))
	tctx, err := tableau.NewContext(b, opts...)
	if err != nil {
		return nil, stats, err
	}
	defer tctx.Close()

	stage, err := tctx.NewStage(cfg.stageConfig())
	if err != nil {
		return nil, stats, err
	}
	if _, err := buildScene(tctx.Clock(), stage, cfg.Actors); err != nil {
		return nil, stats, err
	}
	if script != "" {
		data, err := os.ReadFile(script)
		if err != nil {
			return nil, stats, fmt.Errorf("read script: %w", err)
		}
		runner, err := tableau.LoadTestScript(data)
		if err != nil {
			return nil, stats, err
		}
		stage.SetTestRunner(runner)
	}
	stage.Show()

	win := stage.Window().(*headless.Window)
	for range cfg.Clock.Frames {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		now = now.Add(b.RefreshInterval())
		if tctx.Clock().Iterate() {
			stats.ticks++
		}
		stats.frames++
	}
	stats.presents = win.Presents()

	w, h := stage.Size()
	img, err := stage.Capture(image.Rect(0, 0, int(w), int(h)))
	if err != nil {
		return nil, stats, fmt.Errorf("capture: %w", err)
	}
	return img, stats, nil
}

func writePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
