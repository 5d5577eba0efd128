package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/tableau"
	"github.com/phanxgames/tableau/timeline"
)

// Config is a scene file:
//
//	[clock]
//	refresh_rate = 60
//	frames = 30
//
//	[stage]
//	title = "demo"
//	width = 320
//	height = 240
//	color = "#202020"
//
//	[[actor]]
//	name = "box"
//	x = 10
//	y = 10
//	width = 50
//	height = 50
//	color = "red"
//
//	  [[actor.animate]]
//	  property = "position"
//	  to = [200, 10]
//	  duration = "1s"
//	  easing = "InOutQuad"
type Config struct {
	Clock  ClockConfig   `toml:"clock"`
	Stage  StageSection  `toml:"stage"`
	Actors []ActorConfig `toml:"actor"`
}

// ClockConfig drives the master clock.
type ClockConfig struct {
	// RefreshRate is the simulated refresh rate of offscreen rendering.
	RefreshRate float64  `toml:"refresh_rate"`
	SyncDelay   Duration `toml:"sync_delay"`
	// Frames is how many frames render paints before capturing.
	Frames int `toml:"frames"`
}

// StageSection configures the stage.
type StageSection struct {
	Title         string `toml:"title"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	Color         string `toml:"color"`
	Resizable     bool   `toml:"resizable"`
	Pick          string `toml:"pick"`
	ScreenshotDir string `toml:"screenshot_dir"`
}

// ActorConfig describes one actor. Actors are added to the stage, or to
// the earlier actor named by Parent.
type ActorConfig struct {
	Name     string   `toml:"name"`
	Parent   string   `toml:"parent"`
	X        float64  `toml:"x"`
	Y        float64  `toml:"y"`
	Width    float64  `toml:"width"`
	Height   float64  `toml:"height"`
	Color    string   `toml:"color"`
	Opacity  *int     `toml:"opacity"`
	Scale    *float64 `toml:"scale"`
	Rotation float64  `toml:"rotation"`
	Reactive bool     `toml:"reactive"`
	Hidden   bool     `toml:"hidden"`

	Animate []AnimationConfig `toml:"animate"`
}

// AnimationConfig describes a transition started when the scene loads.
type AnimationConfig struct {
	// Property is one of position, scale, opacity, rotation or color.
	Property    string    `toml:"property"`
	To          []float64 `toml:"to"`
	ToColor     string    `toml:"to_color"`
	Duration    Duration  `toml:"duration"`
	Delay       Duration  `toml:"delay"`
	Repeat      int       `toml:"repeat"`
	AutoReverse bool      `toml:"auto_reverse"`
	Easing      string    `toml:"easing"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

const (
	defaultRefreshRate = 60
	defaultFrames      = 30
)

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"inquad":       ease.InQuad,
	"outquad":      ease.OutQuad,
	"inoutquad":    ease.InOutQuad,
	"incubic":      ease.InCubic,
	"outcubic":     ease.OutCubic,
	"inoutcubic":   ease.InOutCubic,
	"insine":       ease.InSine,
	"outsine":      ease.OutSine,
	"inoutsine":    ease.InOutSine,
	"inbounce":     ease.InBounce,
	"outbounce":    ease.OutBounce,
	"inoutbounce":  ease.InOutBounce,
	"inelastic":    ease.InElastic,
	"outelastic":   ease.OutElastic,
	"inoutelastic": ease.InOutElastic,
}

// loadConfig decodes and validates the scene file at path.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	cfg, err := parseConfig(string(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig decodes a scene from TOML text. Unknown keys are errors.
func parseConfig(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Clock.RefreshRate <= 0 {
		c.Clock.RefreshRate = defaultRefreshRate
	}
	if c.Clock.Frames <= 0 {
		c.Clock.Frames = defaultFrames
	}
	if c.Stage.Title == "" {
		c.Stage.Title = "tableau"
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Stage.Color != "" {
		if _, err := tableau.ParseColor(c.Stage.Color); err != nil {
			errs = append(errs, fmt.Errorf("stage: %w", err))
		}
	}
	switch c.Stage.Pick {
	case "", "analytic", "color":
	default:
		errs = append(errs, fmt.Errorf("stage: unknown pick strategy %q", c.Stage.Pick))
	}
	seen := make(map[string]bool)
	for i, a := range c.Actors {
		where := fmt.Sprintf("actor %d", i)
		if a.Name != "" {
			where = fmt.Sprintf("actor %q", a.Name)
		}
		if a.Parent != "" && !seen[a.Parent] {
			errs = append(errs, fmt.Errorf("%s: parent %q is not defined before it", where, a.Parent))
		}
		if a.Name != "" {
			if seen[a.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[a.Name] = true
		}
		if a.Color != "" {
			if _, err := tableau.ParseColor(a.Color); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", where, err))
			}
		}
		if a.Opacity != nil && (*a.Opacity < 0 || *a.Opacity > 255) {
			errs = append(errs, fmt.Errorf("%s: opacity %d out of range", where, *a.Opacity))
		}
		for j, an := range a.Animate {
			if err := an.validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: animation %d: %w", where, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (an AnimationConfig) validate() error {
	want := 0
	switch an.Property {
	case "position", "scale":
		want = 2
	case "opacity", "rotation":
		want = 1
	case "color":
		if _, err := tableau.ParseColor(an.ToColor); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown property %q", an.Property)
	}
	if len(an.To) != want {
		return fmt.Errorf("%s needs %d target values, got %d", an.Property, want, len(an.To))
	}
	if an.Easing != "" {
		if _, ok := easings[strings.ToLower(an.Easing)]; !ok {
			return fmt.Errorf("unknown easing %q", an.Easing)
		}
	}
	return nil
}

// stageConfig converts the [stage] table.
func (c *Config) stageConfig() tableau.StageConfig {
	sc := tableau.StageConfig{
		Title:         c.Stage.Title,
		Width:         c.Stage.Width,
		Height:        c.Stage.Height,
		UserResizable: c.Stage.Resizable,
		ScreenshotDir: c.Stage.ScreenshotDir,
	}
	if c.Stage.Color != "" {
		sc.Color, _ = tableau.ParseColor(c.Stage.Color)
	}
	if c.Stage.Pick == "color" {
		sc.PickStrategy = tableau.PickColorBuffer
	}
	return sc
}

// contextOptions converts the [clock] table. An unset sync delay keeps the
// library default.
func (c *Config) contextOptions() []tableau.Option {
	var opts []tableau.Option
	if c.Clock.SyncDelay.Duration > 0 {
		opts = append(opts, tableau.WithSyncDelay(c.Clock.SyncDelay.Duration))
	}
	return opts
}

// scene holds what buildScene created.
type scene struct {
	actors      map[string]*tableau.Actor
	transitions []*timeline.Transition
}

// buildScene adds the configured actors to stage and starts their
// animations on clock.
func buildScene(clock *tableau.MasterClock, stage *tableau.Stage, actors []ActorConfig) (*scene, error) {
	sc := &scene{actors: make(map[string]*tableau.Actor)}
	for i, ac := range actors {
		name := ac.Name
		if name == "" {
			name = fmt.Sprintf("actor-%d", i)
		}
		a := tableau.NewActor(name)
		a.SetPosition(ac.X, ac.Y)
		a.SetSize(ac.Width, ac.Height)
		if ac.Color != "" {
			c, err := tableau.ParseColor(ac.Color)
			if err != nil {
				return nil, fmt.Errorf("actor %q: %w", name, err)
			}
			a.SetBackgroundColor(c)
		}
		if ac.Opacity != nil {
			a.SetOpacity(uint8(*ac.Opacity))
		}
		if ac.Scale != nil {
			a.SetScale(*ac.Scale, *ac.Scale)
		}
		if ac.Rotation != 0 {
			a.SetPivotPoint(0.5, 0.5)
			a.SetRotationAngle(tableau.ZAxis, ac.Rotation)
		}
		a.SetReactive(ac.Reactive)

		parent := stage.Actor
		if ac.Parent != "" {
			p, ok := sc.actors[ac.Parent]
			if !ok {
				return nil, fmt.Errorf("actor %q: unknown parent %q", name, ac.Parent)
			}
			parent = p
		}
		parent.AddChild(a)
		if ac.Hidden {
			a.Hide()
		}
		sc.actors[name] = a

		for _, an := range ac.Animate {
			tr, err := newAnimation(clock, a, an)
			if err != nil {
				return nil, fmt.Errorf("actor %q: %w", name, err)
			}
			sc.transitions = append(sc.transitions, tr)
		}
	}
	for _, tr := range sc.transitions {
		tr.Start()
	}
	return sc, nil
}

func newAnimation(clock *tableau.MasterClock, a *tableau.Actor, an AnimationConfig) (*timeline.Transition, error) {
	if err := an.validate(); err != nil {
		return nil, err
	}
	fn := ease.Linear
	if an.Easing != "" {
		fn = easings[strings.ToLower(an.Easing)]
	}
	d := an.Duration.Duration
	var tr *timeline.Transition
	switch an.Property {
	case "position":
		tr = timeline.TweenPosition(clock, a, an.To[0], an.To[1], d, fn)
	case "scale":
		tr = timeline.TweenScale(clock, a, an.To[0], an.To[1], d, fn)
	case "opacity":
		tr = timeline.TweenOpacity(clock, a, uint8(max(0, min(255, an.To[0]))), d, fn)
	case "rotation":
		a.SetPivotPoint(0.5, 0.5)
		tr = timeline.TweenRotation(clock, a, tableau.ZAxis, an.To[0], d, fn)
	case "color":
		c, _ := tableau.ParseColor(an.ToColor)
		tr = timeline.TweenBackgroundColor(clock, a, c, d, fn)
	}
	tr.SetDelay(an.Delay.Duration)
	tr.SetRepeatCount(an.Repeat)
	tr.SetAutoReverse(an.AutoReverse)
	return tr, nil
}
