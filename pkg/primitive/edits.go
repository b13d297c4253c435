package primitive

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MoveCurveCenter moves the spine by delta, weighted by a Gaussian
// centred on cross-section cid and spanning the whole spine. A negative
// cid uses the selection.
func (g *GCylinder) MoveCurveCenter(cid int, delta r3.Vec) {
	g.MoveCurveCenterRanged(cid, delta, 0, -1)
}

// MoveCurveCenterRanged is MoveCurveCenter restricted to the half-open
// index range [start, finish). A negative finish means the full spine;
// otherwise the falloff is measured against the range length. An empty
// range changes nothing.
func (g *GCylinder) MoveCurveCenterRanged(cid int, delta r3.Vec, start, finish int) {
	if cid < 0 {
		cid = g.selected
	}
	total := g.cyl.Len()
	n := total
	if finish < 0 {
		finish = total
	} else {
		n = finish - start
	}
	if start >= finish {
		Logger().Debug("empty move range ignored", "primitive", g.id, "cid", cid, "start", start, "finish", finish)
		return
	}

	decay := float64(n) / float64(total) * moveDecay
	for i := max(start, 0); i < min(finish, total); i++ {
		w := gaussian(math.Abs(float64(cid-i)) / (float64(n) * decay))
		s := &g.cyl.Sections[i]
		s.Frame.Point = r3.Add(s.Frame.Point, r3.Scale(w, delta))
	}
	g.refresh()
}

// ScaleCurve multiplies the scale accumulator of cross-section cid by
// factor and re-derives every radius from the accumulators. A negative
// cid uses the selection.
func (g *GCylinder) ScaleCurve(cid int, factor float64) {
	if cid < 0 {
		cid = g.selected
	}
	if cid >= g.cyl.Len() || factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		Logger().Debug("scale ignored", "primitive", g.id, "cid", cid, "factor", factor)
		return
	}
	g.cyl.Sections[cid].Scale *= factor
	for i := range g.cyl.Sections {
		s := &g.cyl.Sections[i]
		s.Circle.Radius = s.OrigRadius * g.scaleProduct(i)
	}
	g.refresh()
}

// scaleProduct is the combined influence of every scale accumulator on
// cross-section i.
func (g *GCylinder) scaleProduct(i int) float64 {
	n := float64(g.cyl.Len())
	p := 1.0
	for j, s := range g.cyl.Sections {
		dist := math.Abs(float64(i-j)) / (n * scaleDecay)
		p *= 1 + (s.Scale-1)*gaussian(dist)
	}
	return p
}

// Translate moves the whole primitive by delta.
func (g *GCylinder) Translate(delta r3.Vec) {
	for i := range g.cyl.Sections {
		s := &g.cyl.Sections[i]
		s.Frame.Point = r3.Add(s.Frame.Point, delta)
	}
	g.refresh()
}

// DeformRespectToJoint rotates the primitive about joint so that p turns
// towards p+delta, then scales it about joint by the change in distance.
func (g *GCylinder) DeformRespectToJoint(joint, p, delta r3.Vec) {
	v1 := r3.Sub(p, joint)
	v2 := r3.Sub(r3.Add(p, delta), joint)
	l1, l2 := r3.Norm(v1), r3.Norm(v2)
	if l1 < eps || l2 < eps {
		Logger().Debug("joint move through the joint ignored", "primitive", g.id)
		return
	}

	cos := math.Max(-1, math.Min(1, r3.Dot(v1, v2)/(l1*l2)))
	theta := math.Acos(cos)
	axis := r3.Cross(v1, v2)
	if r3.Norm(axis) < eps*l1*l2 {
		axis = perpendicular(v1)
		if cos > 0 {
			theta = 0
		}
	}
	if theta > 0 {
		rot := r3.NewRotation(theta, r3.Unit(axis))
		for i := range g.cyl.Sections {
			s := &g.cyl.Sections[i]
			s.Frame.Point = r3.Add(joint, rot.Rotate(r3.Sub(s.Frame.Point, joint)))
			s.Frame.T = rot.Rotate(s.Frame.T)
			s.Frame.R = rot.Rotate(s.Frame.R)
			s.Frame.S = rot.Rotate(s.Frame.S)
			s.Circle.Normal = rot.Rotate(s.Circle.Normal)
		}
	}

	k := l2 / l1
	for i := range g.cyl.Sections {
		s := &g.cyl.Sections[i]
		s.Frame.Point = r3.Add(joint, r3.Scale(k, r3.Sub(s.Frame.Point, joint)))
	}
	g.refresh()
}

// perpendicular returns a unit vector orthogonal to v.
func perpendicular(v r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	switch {
	case math.Abs(v.Y) <= math.Abs(v.X) && math.Abs(v.Y) <= math.Abs(v.Z):
		axis = r3.Vec{Y: 1}
	case math.Abs(v.Z) <= math.Abs(v.X):
		axis = r3.Vec{Z: 1}
	}
	return r3.Unit(r3.Cross(v, axis))
}

// MovePoint drags the surface point p by delta. What moves depends on
// the constraints:
//   - with symmetry planes, the cross-section under p is scaled;
//   - with no fixed points, the primitive translates;
//   - with one fixed point, it rotates and stretches about that point;
//   - otherwise only the span between the neighbouring pins moves, and a
//     drag on a pinned cross-section is ignored.
func (g *GCylinder) MovePoint(p, delta r3.Vec) {
	switch {
	case len(g.planes) > 0:
		g.moveSymmetric(p, delta)
	case len(g.fixed) == 0:
		g.Translate(delta)
	case len(g.fixed) == 1:
		g.DeformRespectToJoint(g.fixed[0], p, delta)
	default:
		g.moveBetweenPins(p, delta)
	}
}

func (g *GCylinder) moveSymmetric(p, delta r3.Vec) {
	hot := g.DetectHotCurvePoint(p)
	c := g.cyl.Sections[hot].Circle
	plane := Plane{Normal: c.Normal, Point: c.Center}
	from, to := plane.Project(p), plane.Project(r3.Add(p, delta))
	r1 := r3.Norm(r3.Sub(from, c.Center))
	r2 := r3.Norm(r3.Sub(to, c.Center))
	if r1 < eps {
		Logger().Debug("symmetric drag from the axis ignored", "primitive", g.id, "cid", hot)
		return
	}
	g.ScaleCurve(hot, r2/r1)
}

func (g *GCylinder) moveBetweenPins(p, delta r3.Vec) {
	n := g.cyl.Len()
	pinned := make([]bool, n)
	for _, fp := range g.fixed {
		pinned[g.nearestSection(fp)] = true
	}
	hot := g.DetectHotCurvePoint(p)
	if pinned[hot] {
		Logger().Debug("drag on pinned cross-section ignored", "primitive", g.id, "cid", hot)
		return
	}
	start, finish := 0, n
	for i := 0; i < n; i++ {
		if !pinned[i] {
			continue
		}
		if i < hot {
			start = max(start, i+1)
		}
		if i > hot {
			finish = min(finish, i)
		}
	}
	g.MoveCurveCenterRanged(hot, delta, start, finish)
}

// ReshapeFromPoints rebuilds the cross-sections from a full set of cage
// points: each ring's centroid becomes the section center and its first
// sample fixes the radius. The scale accumulators are kept, so OrigRadius
// is re-derived from the new radius.
func (g *GCylinder) ReshapeFromPoints(pts []r3.Vec) error {
	sides := g.cfg.CageSides
	if want := 2 + g.cyl.Len()*sides; len(pts) != want {
		return mismatch("points", want, len(pts))
	}
	for i := range g.cyl.Sections {
		ring := pts[1+i*sides : 1+(i+1)*sides]
		var c r3.Vec
		for _, q := range ring {
			c = r3.Add(c, q)
		}
		c = r3.Scale(1/float64(sides), c)

		s := &g.cyl.Sections[i]
		s.Frame.Point = c
		s.Circle.Radius = r3.Norm(r3.Sub(ring[0], c)) / g.cfg.CageScale
	}
	for i := range g.cyl.Sections {
		s := &g.cyl.Sections[i]
		if prod := g.scaleProduct(i); prod > 0 {
			s.OrigRadius = s.Circle.Radius / prod
		}
	}
	g.refresh()
	return nil
}
