// Package tableau is a retained-mode scene graph for interactive 2D and 3D
// user interfaces.
//
// Every visual element is an [Actor]. Actors form a tree rooted at a
// [Stage], which is bound to one native window or offscreen surface through
// a [Backend]. A single [MasterClock] per [Context] drives every stage and
// every registered [Timeline], once per display refresh.
//
// # Quick start
//
//	ctx, err := tableau.NewContext(headless.New())
//	if err != nil { ... }
//	defer ctx.Close()
//
//	stage, err := ctx.NewStage(tableau.StageConfig{Width: 640, Height: 480})
//	if err != nil { ... }
//
//	box := tableau.NewActor("box")
//	box.SetPosition(10, 10)
//	box.SetSize(50, 50)
//	box.SetBackgroundColor(tableau.ColorRed)
//	stage.AddChild(box)
//	stage.Show()
//
//	ctx.Clock().Run(context.Background())
//
// # Frame cycle
//
// Mutating an actor never draws anything directly. Geometric changes queue a
// relayout; visual changes queue a redraw clip that bubbles to the stage. On
// the next clock tick the stage relays out the queued subtrees, dispatches
// queued input, converts the accumulated redraw clips into one damage
// rectangle per view, and paints only that region.
//
// # Layout
//
// Size negotiation is two-pass: [Actor.GetPreferredWidth] and
// [Actor.GetPreferredHeight] are queried first, then [Actor.Allocate] fixes
// the box. Containers delegate both passes to a [LayoutManager]
// ([FixedLayout], [BinLayout], [BoxLayout]).
//
// # Behaviors
//
// Custom actor types implement [Behavior] (usually by embedding
// [BaseBehavior]) instead of subclassing. Optional capabilities such as
// [PaintVolumeProvider], [OverlapReporter] and [RedrawClipper] are detected
// by type assertion.
//
// Rendering backends live in sub-packages: backend/headless paints on the CPU
// through render/softrender, backend/ebitenstage opens a window with
// [Ebitengine]. Animation timelines and property transitions live in the
// timeline package and use [gween] easing.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package tableau
