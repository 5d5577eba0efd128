package tableau

import (
	"fmt"
	"image"
)

// pickCache holds the records of the last pick traversal for one mode.
// It is valid while gen matches the stage's pick generation.
type pickCache struct {
	valid bool
	gen   uint64
	pc    *PickContext
}

// invalidatePickCache drops every cached pick traversal. Called
// synchronously from any change that can move, hide or restack an actor.
func (s *Stage) invalidatePickCache() {
	s.pickGen++
	for i := range s.pickCaches {
		s.pickCaches[i].valid = false
		s.pickCaches[i].pc = nil
	}
}

func (s *Stage) pickRecords(mode PickMode) *PickContext {
	c := &s.pickCaches[mode]
	if c.valid && c.gen == s.pickGen {
		return c.pc
	}
	pc := newPickContext(s, mode)
	s.Actor.Pick(pc)
	s.stats.PickRecords += len(pc.records)
	c.pc, c.gen, c.valid = pc, s.pickGen, true
	return pc
}

// GetActorAtPos returns the topmost actor at (x, y), in stage pixels, that
// takes part in mode. It never returns nil: the stage itself is returned
// when nothing else is hit, when mode is PickNone, and before the stage
// was realized and painted.
func (s *Stage) GetActorAtPos(mode PickMode, x, y float64) *Actor {
	if mode == PickNone || int(mode) >= numPickModes {
		return s.Actor
	}
	if !s.realized || s.destroyed || !s.hasPainted || s.Actor.flags&flagHasAllocation == 0 {
		return s.Actor
	}
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return s.Actor
	}

	pc := s.pickRecords(mode)
	var hit *Actor
	if s.pickStrategy == PickColorBuffer {
		a, err := s.colorPick(pc, x, y)
		if err != nil {
			Logger().Debug("color pick failed, using analytic pick", "stage", s.title, "err", err)
			a = pc.hitTest(x, y)
		}
		hit = a
	} else {
		hit = pc.hitTest(x, y)
	}
	if hit == nil {
		return s.Actor
	}
	return hit
}

// hitTest returns the last recorded actor whose quad, clip chain and hit
// shape contain (x, y). Records are in paint order, so later ones are on
// top.
func (pc *PickContext) hitTest(x, y float64) *Actor {
	for i := len(pc.records) - 1; i >= 0; i-- {
		r := &pc.records[i]
		if !r.hit(pc.clips, pc.vp, x, y) {
			continue
		}
		if a := r.actor.Get(); a != nil {
			return a
		}
	}
	return nil
}

// colorPick draws every record in a flat id color into a 1x1 framebuffer
// centered on (x, y) and decodes the pixel. Records with a hit shape are
// confirmed analytically, falling back to the records below them.
func (s *Stage) colorPick(pc *PickContext, x, y float64) (*Actor, error) {
	n := len(pc.records)
	if n == 0 {
		return nil, nil
	}
	if n > maxColorPickRecords {
		return nil, fmt.Errorf("%d pick records exceed the color id space", n)
	}
	renderer := s.backend.Renderer()
	if s.pickFB == nil {
		fb, err := renderer.NewFramebuffer(1, 1)
		if err != nil {
			return nil, err
		}
		s.pickFB = fb
	}

	dx, dy := 0.5-x, 0.5-y
	ops := make([]DrawOp, 0, n+1)
	ops = append(ops, DrawOp{Kind: OpClear, Color: ColorTransparent})
	var chain []int
	for i := range pc.records {
		r := &pc.records[i]
		chain = chain[:0]
		for c := r.clip; c >= 0; c = pc.clips[c].parent {
			chain = append(chain, c)
		}
		for j := len(chain) - 1; j >= 0; j-- {
			ops = append(ops, DrawOp{Kind: OpPushClip, Quad: translateQuad(pc.clips[chain[j]].quad, dx, dy)})
		}
		ops = append(ops, DrawOp{Kind: OpColorQuad, Quad: translateQuad(r.quad, dx, dy), Color: pickIDColor(i + 1)})
		for range chain {
			ops = append(ops, DrawOp{Kind: OpPopClip})
		}
	}
	if err := renderer.Submit(s.pickFB, ops); err != nil {
		return nil, err
	}
	img, err := renderer.ReadPixels(s.pickFB, image.Rect(0, 0, 1, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadPixels, err)
	}
	px := img.RGBAAt(0, 0)
	if px.A == 0 {
		return nil, nil
	}
	if px.A != 255 {
		return nil, fmt.Errorf("blended pick pixel %v", px)
	}
	id := pickIDFromColor(px.R, px.G, px.B) - 1
	if id < 0 || id >= n {
		return nil, fmt.Errorf("pick id %d out of range", id)
	}

	r := &pc.records[id]
	if r.shape != nil && !r.hit(pc.clips, pc.vp, x, y) {
		below := &PickContext{records: pc.records[:id], clips: pc.clips, vp: pc.vp}
		return below.hitTest(x, y), nil
	}
	if a := r.actor.Get(); a != nil {
		return a, nil
	}
	return nil, nil
}
