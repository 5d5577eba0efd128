package geom

import "github.com/go-gl/mathgl/mgl64"

// Plane is an oriented plane through V0 with normal N. Points on the side
// N points towards have a positive distance.
type Plane struct {
	V0 mgl64.Vec3
	N  mgl64.Vec3
}

// Distance returns the signed distance from p to the plane, scaled by the
// length of N.
func (pl Plane) Distance(p mgl64.Vec3) float64 {
	return pl.N.Dot(p.Sub(pl.V0))
}

// CullResult classifies a set of vertices against a convex region.
type CullResult uint8

const (
	CullIn      CullResult = iota // every vertex inside every plane
	CullOut                       // every vertex outside one plane
	CullPartial                   // straddles at least one plane
)

func (r CullResult) String() string {
	switch r {
	case CullIn:
		return "in"
	case CullOut:
		return "out"
	default:
		return "partial"
	}
}

// PlanesForRect returns the four inward-facing planes bounding the window
// rectangle r. The planes are perpendicular to the screen, so only x and y
// of tested vertices matter.
func PlanesForRect(r Rect) [4]Plane {
	return [4]Plane{
		{V0: mgl64.Vec3{r.X, 0, 0}, N: mgl64.Vec3{1, 0, 0}},
		{V0: mgl64.Vec3{r.X + r.Width, 0, 0}, N: mgl64.Vec3{-1, 0, 0}},
		{V0: mgl64.Vec3{0, r.Y, 0}, N: mgl64.Vec3{0, 1, 0}},
		{V0: mgl64.Vec3{0, r.Y + r.Height, 0}, N: mgl64.Vec3{0, -1, 0}},
	}
}

// CullVertices tests a convex hull given by its vertices against the region
// bounded by planes. A hull is only reported as out when all of its vertices
// lie behind a single plane; hulls that merely miss the region diagonally
// are conservatively reported as partial.
func CullVertices(planes []Plane, verts []mgl64.Vec3) CullResult {
	if len(verts) == 0 {
		return CullOut
	}
	partial := false
	for _, pl := range planes {
		outside := 0
		for _, v := range verts {
			if pl.Distance(v) < 0 {
				outside++
			}
		}
		if outside == len(verts) {
			return CullOut
		}
		if outside > 0 {
			partial = true
		}
	}
	if partial {
		return CullPartial
	}
	return CullIn
}
