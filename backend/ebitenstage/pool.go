package ebitenstage

import (
	"image"
	"math/bits"

	"github.com/hajimehoshi/ebiten/v2"
)

// layerPool recycles offscreen images used for group layers, keyed by
// power-of-two dimensions. After warmup, acquire and release do not
// allocate.
type layerPool struct {
	buckets map[uint64][]*ebiten.Image
}

func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// acquire returns a cleared image with at least w by h pixels.
func (p *layerPool) acquire(w, h int) *ebiten.Image {
	pw, ph := nextPowerOfTwo(w), nextPowerOfTwo(h)
	key := poolKey(pw, ph)
	if stack := p.buckets[key]; len(stack) > 0 {
		img := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		img.Clear()
		return img
	}
	return ebiten.NewImageWithOptions(image.Rect(0, 0, pw, ph), &ebiten.NewImageOptions{Unmanaged: true})
}

// release hands img back. It is cleared on the next acquire.
func (p *layerPool) release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	key := poolKey(b.Dx(), b.Dy())
	p.buckets[key] = append(p.buckets[key], img)
}

// len returns the number of idle images.
func (p *layerPool) len() int {
	n := 0
	for _, s := range p.buckets {
		n += len(s)
	}
	return n
}

// dispose frees every idle image.
func (p *layerPool) dispose() {
	for key, s := range p.buckets {
		for _, img := range s {
			img.Deallocate()
		}
		delete(p.buckets, key)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n, at least 1.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
