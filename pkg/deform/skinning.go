package deform

import (
	"math"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// SkinningDeformer binds each point to the two frames bounding its
// nearest spine segment. A coordinate of a cylinder with N sections holds
// N blend weights followed by the point's local coordinates in each of
// the N frames.
type SkinningDeformer struct {
	binding
	cyl   *gc.Cylinder
	orig  []gc.Frame
	radii []float64
}

var _ Deformer = (*SkinningDeformer)(nil)

// NewSkinning binds every vertex of target to c in its current state.
func NewSkinning(c *gc.Cylinder, target *mesh.Mesh, workers int) *SkinningDeformer {
	s := &SkinningDeformer{
		binding: binding{target: target, workers: workers},
		cyl:     c,
		orig:    c.Frames(),
		radii:   c.Radii(),
	}
	s.bind(s.Coordinate)
	return s
}

// Mode returns Skinning.
func (s *SkinningDeformer) Mode() Mode { return Skinning }

// Coordinate binds p against the frames captured at creation.
func (s *SkinningDeformer) Coordinate(p r3.Vec) Coordinate {
	return skinCoordinate(s.orig, p, func(int) float64 { return 1 })
}

// CurrentCoordinate binds p against the cylinder as it is now. Lateral
// offsets are divided by the radius change so that Reconstruct returns p
// until the cylinder moves again.
func (s *SkinningDeformer) CurrentCoordinate(p r3.Vec) Coordinate {
	return skinCoordinate(s.cyl.Frames(), p, func(i int) float64 {
		r := s.cyl.Sections[i].Circle.Radius
		if s.radii[i] <= 0 || r <= 0 {
			return 1
		}
		return r / s.radii[i]
	})
}

func skinCoordinate(frames []gc.Frame, p r3.Vec, ratio func(i int) float64) Coordinate {
	n := len(frames)
	out := make(Coordinate, 4*n)
	seg, t := nearestSegment(frames, p)
	out[seg] = 1 - t
	out[seg+1] = t
	for i, f := range frames {
		l := f.ToLocal(p)
		k := ratio(i)
		out[n+3*i], out[n+3*i+1], out[n+3*i+2] = l.X, l.Y/k, l.Z/k
	}
	return out
}

// Reconstruct blends the local coordinates through the current frames.
// Lateral offsets follow the change of each cross-section radius.
func (s *SkinningDeformer) Reconstruct(c Coordinate) r3.Vec {
	n := len(s.orig)
	var p r3.Vec
	for i := 0; i < n; i++ {
		w := c[i]
		if w == 0 {
			continue
		}
		sec := s.cyl.Sections[i]
		ratio := 1.0
		if s.radii[i] > 0 {
			ratio = sec.Circle.Radius / s.radii[i]
		}
		f := sec.Frame
		q := r3.Add(f.Point, r3.Scale(c[n+3*i], f.T))
		q = r3.Add(q, r3.Scale(ratio*c[n+3*i+1], f.R))
		q = r3.Add(q, r3.Scale(ratio*c[n+3*i+2], f.S))
		p = r3.Add(p, r3.Scale(w, q))
	}
	return p
}

// Deform moves every bound vertex to follow the cylinder.
func (s *SkinningDeformer) Deform() {
	s.apply(s.Reconstruct)
}

// nearestSegment returns the spine segment closest to p and the clamped
// parameter of p's projection onto it. The first segment wins ties.
func nearestSegment(frames []gc.Frame, p r3.Vec) (int, float64) {
	best, bestT, bestD := 0, 0.0, math.Inf(1)
	for j := 0; j+1 < len(frames); j++ {
		a, b := frames[j].Point, frames[j+1].Point
		ab := r3.Sub(b, a)
		var t float64
		if l2 := r3.Dot(ab, ab); l2 > 0 {
			t = math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, a), ab)/l2))
		}
		if d := r3.Norm(r3.Sub(p, r3.Add(a, r3.Scale(t, ab)))); d < bestD {
			best, bestT, bestD = j, t, d
		}
	}
	return best, bestT
}
