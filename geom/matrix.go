package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Viewport maps normalized device coordinates to window pixels.
type Viewport struct {
	X, Y, Width, Height float64
}

// Identity is the 4x4 identity matrix.
var Identity = mgl64.Ident4()

// IsIdentity reports whether m is the identity within Epsilon.
func IsIdentity(m mgl64.Mat4) bool {
	return m.ApproxEqualThreshold(Identity, Epsilon)
}

// Is2D reports whether m only applies a 2D affine transform: no z
// contribution, no perspective row.
func Is2D(m mgl64.Mat4) bool {
	// Column-major: m[col*4+row].
	return FloatEqual(m[2], 0) && FloatEqual(m[6], 0) &&
		FloatEqual(m[8], 0) && FloatEqual(m[9], 0) && FloatEqual(m[10], 1) &&
		FloatEqual(m[11], 0) && FloatEqual(m[14], 0) &&
		FloatEqual(m[3], 0) && FloatEqual(m[7], 0) && FloatEqual(m[15], 1)
}

// TransformPoint applies m to p and returns the homogeneous result.
func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec4 {
	return m.Mul4x1(p.Vec4(1))
}

// TransformPoint3 applies m to p and divides by w.
func TransformPoint3(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	w := v.W()
	if w == 0 || w == 1 {
		return v.Vec3()
	}
	return mgl64.Vec3{v.X() / w, v.Y() / w, v.Z() / w}
}

// ProjectPoint runs p through the model-view-projection matrix mvp and maps
// the result into viewport pixels. Window y grows downward.
func ProjectPoint(mvp mgl64.Mat4, vp Viewport, p mgl64.Vec3) mgl64.Vec3 {
	v := mvp.Mul4x1(p.Vec4(1))
	w := v.W()
	if w == 0 {
		w = Epsilon
	}
	nx, ny, nz := v.X()/w, v.Y()/w, v.Z()/w
	return mgl64.Vec3{
		vp.X + (nx+1)/2*vp.Width,
		vp.Y + (1-ny)/2*vp.Height,
		(nz + 1) / 2,
	}
}

// ProjectBox projects the four corners of box (at z=0) through mvp.
func ProjectBox(mvp mgl64.Mat4, vp Viewport, box Box) Quad {
	var q Quad
	for i, v := range box.Vertices() {
		w := ProjectPoint(mvp, vp, v)
		q.V[i] = Point{w.X(), w.Y()}
	}
	return q
}

// UnprojectToPlane maps the window point (x, y) back through the inverse of
// mvp and intersects the resulting eye ray with the z=0 plane of the
// source space. It returns false when the ray is parallel to the plane or
// the matrix is singular.
func UnprojectToPlane(mvp mgl64.Mat4, vp Viewport, x, y float64) (mgl64.Vec3, bool) {
	if vp.Width == 0 || vp.Height == 0 {
		return mgl64.Vec3{}, false
	}
	if math.Abs(mvp.Det()) < 1e-12 {
		return mgl64.Vec3{}, false
	}
	inv := mvp.Inv()
	nx := (x-vp.X)/vp.Width*2 - 1
	ny := 1 - (y-vp.Y)/vp.Height*2

	near := inv.Mul4x1(mgl64.Vec4{nx, ny, -1, 1})
	far := inv.Mul4x1(mgl64.Vec4{nx, ny, 1, 1})
	if near.W() == 0 || far.W() == 0 {
		return mgl64.Vec3{}, false
	}
	n := near.Vec3().Mul(1 / near.W())
	f := far.Vec3().Mul(1 / far.W())

	dz := n.Z() - f.Z()
	if math.Abs(dz) < 1e-12 {
		return mgl64.Vec3{}, false
	}
	t := n.Z() / dz
	return n.Add(f.Sub(n).Mul(t)), true
}

// Perspective describes the stage camera.
type Perspective struct {
	FovY   float64 // vertical field of view in degrees
	Aspect float64
	ZNear  float64
	ZFar   float64
}

// DefaultFovY is the vertical field of view used for new stages.
const DefaultFovY = 60.0

// ZTranslation returns the eye-space depth of the 2D plane for the given
// near plane.
func ZTranslation(zNear float64) float64 {
	return 50 * zNear
}

// DefaultPerspective returns the stage perspective for a viewport of the
// given size.
func DefaultPerspective(width, height float64) Perspective {
	aspect := 1.0
	if height > 0 {
		aspect = width / height
	}
	zNear := 1.0
	z2d := ZTranslation(zNear)
	return Perspective{FovY: DefaultFovY, Aspect: aspect, ZNear: zNear, ZFar: z2d + z2d}
}

// Matrix returns the projection matrix for p.
func (p Perspective) Matrix() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(p.FovY), p.Aspect, p.ZNear, p.ZFar)
}

// ViewMatrix2D returns the view matrix that places the z=0 plane of a
// width x height stage so that one unit maps to one pixel, with y growing
// downward, under the perspective p.
func ViewMatrix2D(p Perspective, width, height float64) mgl64.Mat4 {
	if width <= 0 || height <= 0 {
		return Identity
	}
	z2d := ZTranslation(p.ZNear)
	top := p.ZNear * math.Tan(mgl64.DegToRad(p.FovY)/2)
	bottom := -top
	left := -top * p.Aspect
	right := top * p.Aspect

	left2d := left / p.ZNear * z2d
	right2d := right / p.ZNear * z2d
	bottom2d := bottom / p.ZNear * z2d
	top2d := top / p.ZNear * z2d

	ws := (right2d - left2d) / width
	hs := (top2d - bottom2d) / height

	return mgl64.Translate3D(left2d, top2d, -z2d).Mul4(mgl64.Scale3D(ws, -hs, ws))
}
