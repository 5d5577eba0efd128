package tableau

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Color is a non-premultiplied 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	ColorTransparent = Color{0, 0, 0, 0}
	ColorBlack       = Color{0, 0, 0, 255}
	ColorWhite       = Color{255, 255, 255, 255}
	ColorRed         = Color{255, 0, 0, 255}
	ColorGreen       = Color{0, 255, 0, 255}
	ColorBlue        = Color{0, 0, 255, 255}
	ColorGray        = Color{128, 128, 128, 255}
)

// RGBA implements [color.Color].
func (c Color) RGBA() (r, g, b, a uint32) {
	return c.NRGBA().RGBA()
}

// NRGBA converts c to the standard library's straight-alpha color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// WithOpacity scales the alpha channel by opacity/255.
func (c Color) WithOpacity(opacity uint8) Color {
	c.A = mulOpacity(c.A, opacity)
	return c
}

// Interpolate blends c towards to by progress in [0, 1].
func (c Color) Interpolate(to Color, progress float64) Color {
	lerp := func(a, b uint8) uint8 {
		v := float64(a) + (float64(b)-float64(a))*progress
		return uint8(math.Round(math.Max(0, math.Min(255, v))))
	}
	return Color{lerp(c.R, to.R), lerp(c.G, to.G), lerp(c.B, to.B), lerp(c.A, to.A)}
}

// String formats the color as #rrggbbaa.
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor parses "#rgb", "#rgba", "#rrggbb" or "#rrggbbaa", or one of a
// handful of names ("black", "white", "red", "green", "blue", "gray",
// "transparent").
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "transparent":
		return ColorTransparent, nil
	case "black":
		return ColorBlack, nil
	case "white":
		return ColorWhite, nil
	case "red":
		return ColorRed, nil
	case "green":
		return ColorGreen, nil
	case "blue":
		return ColorBlue, nil
	case "gray", "grey":
		return ColorGray, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return Color{}, fmt.Errorf("parse color %q: missing '#'", s)
	}
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return Color{}, fmt.Errorf("parse color %q: bad length", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// mulOpacity returns a*b/255 rounded to nearest.
func mulOpacity(a, b uint8) uint8 {
	return uint8((uint32(a)*uint32(b) + 127) / 255)
}

// RequestMode selects which axis an actor negotiates first.
type RequestMode uint8

const (
	RequestWidthForHeight RequestMode = iota // height is queried first, width depends on it
	RequestHeightForWidth                    // width is queried first, height depends on it
	RequestContentSize                       // the content's preferred size wins
)

// ActorAlign positions an actor inside the space its parent allocates.
type ActorAlign uint8

const (
	AlignFill ActorAlign = iota
	AlignStart
	AlignCenter
	AlignEnd
)

// Orientation is a layout axis.
type Orientation uint8

const (
	Horizontal Orientation = iota
	Vertical
)

// ContentGravity anchors content inside an actor's allocation.
type ContentGravity uint8

const (
	GravityResizeFill ContentGravity = iota // stretch to the allocation
	GravityResizeAspect                     // scale keeping aspect ratio, centered
	GravityTopLeft
	GravityTop
	GravityTopRight
	GravityLeft
	GravityCenter
	GravityRight
	GravityBottomLeft
	GravityBottom
	GravityBottomRight
)

// ContentRepeat tiles content along an axis.
type ContentRepeat uint8

const (
	RepeatNone ContentRepeat = 0
	RepeatX    ContentRepeat = 1 << 0
	RepeatY    ContentRepeat = 1 << 1
	RepeatBoth               = RepeatX | RepeatY
)

// ScalingFilter selects texture sampling when content is scaled.
type ScalingFilter uint8

const (
	FilterLinear ScalingFilter = iota
	FilterNearest
	FilterTrilinear
)

// OffscreenRedirect controls when an actor is painted into a group layer
// before being composited.
type OffscreenRedirect uint8

const (
	// RedirectAutomaticForOpacity redirects when the paint opacity is below
	// 255 and the actor reports overlapping primitives.
	RedirectAutomaticForOpacity OffscreenRedirect = iota
	RedirectAlways
	RedirectNever
)

// PickMode selects which actors take part in a pick.
type PickMode uint8

const (
	PickNone     PickMode = iota // no picking; always the stage
	PickReactive                 // only reactive actors
	PickAll                      // every mapped actor
)

const numPickModes = 3

func (m PickMode) String() string {
	switch m {
	case PickNone:
		return "none"
	case PickReactive:
		return "reactive"
	case PickAll:
		return "all"
	}
	return "PickMode(" + strconv.Itoa(int(m)) + ")"
}

// PickStrategy selects how the stage resolves a pick.
type PickStrategy uint8

const (
	// PickAnalytic tests the point against the projected quads recorded by
	// the pick traversal.
	PickAnalytic PickStrategy = iota
	// PickColorBuffer renders every pick record in a unique flat color into
	// an offscreen framebuffer and reads back the pixel under the point.
	PickColorBuffer
)

// Margin is the extra space around an actor, in its parent's units.
type Margin struct {
	Left, Right, Top, Bottom float64
}
