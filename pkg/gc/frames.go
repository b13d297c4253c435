// Package gc implements generalized cylinders: a spine curve carrying a
// sequence of rotation-minimizing frames and one circular cross-section
// per frame.
package gc

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// eps guards normalisations of nearly zero vectors.
const eps = 1e-12

// Frame is a local orthonormal coordinate system attached to a spine
// point. T is the tangent, R the normal and S = T × R the binormal.
type Frame struct {
	Point r3.Vec
	T     r3.Vec
	R     r3.Vec
	S     r3.Vec
}

// ToWorld maps local coordinates (along T, R, S) to world space.
func (f Frame) ToWorld(l r3.Vec) r3.Vec {
	p := r3.Add(f.Point, r3.Scale(l.X, f.T))
	p = r3.Add(p, r3.Scale(l.Y, f.R))
	return r3.Add(p, r3.Scale(l.Z, f.S))
}

// ToLocal expresses the world point p in the frame's coordinates.
func (f Frame) ToLocal(p r3.Vec) r3.Vec {
	d := r3.Sub(p, f.Point)
	return r3.Vec{X: r3.Dot(d, f.T), Y: r3.Dot(d, f.R), Z: r3.Dot(d, f.S)}
}

// Tangents estimates unit tangents by central differences, one-sided at
// the ends. Points whose neighbours coincide borrow the nearest valid
// tangent; a fully degenerate curve gets +Z.
func Tangents(pts []r3.Vec) []r3.Vec {
	n := len(pts)
	out := make([]r3.Vec, n)
	valid := make([]bool, n)
	first := -1
	for i := range pts {
		d := r3.Sub(pts[min(n-1, i+1)], pts[max(0, i-1)])
		if r3.Norm(d) < eps {
			continue
		}
		out[i] = r3.Unit(d)
		valid[i] = true
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		for i := range out {
			out[i] = r3.Vec{Z: 1}
		}
		return out
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	for i := first + 1; i < n; i++ {
		if !valid[i] {
			out[i] = out[i-1]
		}
	}
	return out
}

// ComputeFrames builds rotation-minimizing frames along pts using the
// double reflection method. The first normal is hint projected onto the
// plane orthogonal to the first tangent; a zero or parallel hint falls
// back to the world axis least aligned with that tangent.
func ComputeFrames(pts []r3.Vec, hint r3.Vec) []Frame {
	n := len(pts)
	if n == 0 {
		return nil
	}
	t := Tangents(pts)
	frames := make([]Frame, n)

	r := initialNormal(t[0], hint)
	frames[0] = Frame{Point: pts[0], T: t[0], R: r, S: r3.Cross(t[0], r)}

	for i := 0; i+1 < n; i++ {
		ri, ti := frames[i].R, frames[i].T
		v1 := r3.Sub(pts[i+1], pts[i])
		c1 := r3.Dot(v1, v1)
		rL, tL := ri, ti
		if c1 > eps {
			rL = r3.Sub(ri, r3.Scale(2/c1*r3.Dot(v1, ri), v1))
			tL = r3.Sub(ti, r3.Scale(2/c1*r3.Dot(v1, ti), v1))
		}
		v2 := r3.Sub(t[i+1], tL)
		c2 := r3.Dot(v2, v2)
		next := rL
		if c2 > eps {
			next = r3.Sub(rL, r3.Scale(2/c2*r3.Dot(v2, rL), v2))
		}
		next = orthonormal(next, t[i+1])
		frames[i+1] = Frame{Point: pts[i+1], T: t[i+1], R: next, S: r3.Cross(t[i+1], next)}
	}
	return frames
}

func initialNormal(t, hint r3.Vec) r3.Vec {
	r := r3.Sub(hint, r3.Scale(r3.Dot(hint, t), t))
	if r3.Norm(r) > 1e-8 {
		return r3.Unit(r)
	}
	return orthonormal(leastAligned(t), t)
}

// orthonormal removes the t component from r and normalises it.
func orthonormal(r, t r3.Vec) r3.Vec {
	r = r3.Sub(r, r3.Scale(r3.Dot(r, t), t))
	if r3.Norm(r) < eps {
		r = r3.Sub(leastAligned(t), r3.Scale(r3.Dot(leastAligned(t), t), t))
	}
	return r3.Unit(r)
}

// leastAligned returns the world axis with the smallest component along t.
func leastAligned(t r3.Vec) r3.Vec {
	ax, ay, az := math.Abs(t.X), math.Abs(t.Y), math.Abs(t.Z)
	switch {
	case ax <= ay && ax <= az:
		return r3.Vec{X: 1}
	case ay <= az:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}
