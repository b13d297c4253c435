package gc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultRadius is the cross-section radius used when no estimator is
// supplied.
const DefaultRadius = 1.0

// ErrTooFewPoints is returned when a spine has fewer than two points.
var ErrTooFewPoints = errors.New("gc: spine needs at least 2 points")

// Circle is a cross-section of the cylinder. Center and Normal follow
// the owning frame; Radius is edited independently.
type Circle struct {
	Index  int
	Center r3.Vec
	Radius float64
	Normal r3.Vec
}

// ToSegments samples the circle, inflated by scale, as a closed polygon
// of n points in the frame's R/S plane. Point k sits at angle 2πk/n
// measured from R towards S.
func (c Circle) ToSegments(n int, f Frame, scale float64) []r3.Vec {
	pts := make([]r3.Vec, n)
	rad := c.Radius * scale
	for k := 0; k < n; k++ {
		theta := 2 * math.Pi * float64(k) / float64(n)
		off := r3.Add(r3.Scale(math.Cos(theta), f.R), r3.Scale(math.Sin(theta), f.S))
		pts[k] = r3.Add(c.Center, r3.Scale(rad, off))
	}
	return pts
}

// Section is the per-index record of a cylinder. Keeping the frame, the
// circle, the fitted radius and the scale accumulator together means the
// four can never be resized independently.
type Section struct {
	Frame      Frame
	Circle     Circle
	OrigRadius float64
	Scale      float64
}

// RadiusSource supplies the initial radius of cross-section i.
type RadiusSource func(i int, f Frame) float64

// Constant returns a RadiusSource yielding r everywhere.
func Constant(r float64) RadiusSource {
	return func(int, Frame) float64 { return r }
}

// Radii returns a RadiusSource reading from rs. Indices past the end
// use DefaultRadius.
func Radii(rs []float64) RadiusSource {
	return func(i int, _ Frame) float64 {
		if i < len(rs) {
			return rs[i]
		}
		return DefaultRadius
	}
}

// Cylinder is a generalized cylinder: one Section per spine point.
type Cylinder struct {
	Sections []Section
}

// New builds a cylinder along spine. A nil radius source uses
// DefaultRadius.
func New(spine []r3.Vec, radius RadiusSource) (*Cylinder, error) {
	if len(spine) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(spine))
	}
	if radius == nil {
		radius = Constant(DefaultRadius)
	}
	frames := ComputeFrames(spine, r3.Vec{})
	c := &Cylinder{Sections: make([]Section, len(frames))}
	for i, f := range frames {
		r := radius(i, f)
		c.Sections[i] = Section{
			Frame:      f,
			Circle:     Circle{Index: i, Center: f.Point, Radius: r, Normal: f.T},
			OrigRadius: r,
			Scale:      1,
		}
	}
	return c, nil
}

// Len returns the number of frames, which always equals the number of
// cross-sections.
func (c *Cylinder) Len() int {
	return len(c.Sections)
}

// Points returns the spine points.
func (c *Cylinder) Points() []r3.Vec {
	out := make([]r3.Vec, len(c.Sections))
	for i, s := range c.Sections {
		out[i] = s.Frame.Point
	}
	return out
}

// Frames returns a copy of the frame sequence.
func (c *Cylinder) Frames() []Frame {
	out := make([]Frame, len(c.Sections))
	for i, s := range c.Sections {
		out[i] = s.Frame
	}
	return out
}

// Circles returns a copy of the cross-sections.
func (c *Cylinder) Circles() []Circle {
	out := make([]Circle, len(c.Sections))
	for i, s := range c.Sections {
		out[i] = s.Circle
	}
	return out
}

// Radii returns the current cross-section radii.
func (c *Cylinder) Radii() []float64 {
	out := make([]float64, len(c.Sections))
	for i, s := range c.Sections {
		out[i] = s.Circle.Radius
	}
	return out
}

// RecomputeFrames rebuilds every frame from the current spine points.
// The previous first normal seeds the new sequence so the frames do not
// spin between edits.
func (c *Cylinder) RecomputeFrames() {
	if len(c.Sections) == 0 {
		return
	}
	frames := ComputeFrames(c.Points(), c.Sections[0].Frame.R)
	for i := range c.Sections {
		c.Sections[i].Frame = frames[i]
	}
}

// RealignCrossSections re-projects each circle onto its frame.
func (c *Cylinder) RealignCrossSections() {
	for i := range c.Sections {
		s := &c.Sections[i]
		s.Circle.Index = i
		s.Circle.Center = s.Frame.Point
		s.Circle.Normal = s.Frame.T
	}
}

// Update recomputes the frames and realigns the cross-sections.
func (c *Cylinder) Update() {
	c.RecomputeFrames()
	c.RealignCrossSections()
}

// Ring samples cross-section i inflated by scale.
func (c *Cylinder) Ring(i, sides int, scale float64) []r3.Vec {
	s := c.Sections[i]
	return s.Circle.ToSegments(sides, s.Frame, scale)
}

// Curves samples every cross-section.
func (c *Cylinder) Curves(sides int, scale float64) [][]r3.Vec {
	out := make([][]r3.Vec, len(c.Sections))
	for i := range c.Sections {
		out[i] = c.Ring(i, sides, scale)
	}
	return out
}

// Length returns the arc length of the spine.
func (c *Cylinder) Length() float64 {
	var l float64
	for i := 1; i < len(c.Sections); i++ {
		l += r3.Norm(r3.Sub(c.Sections[i].Frame.Point, c.Sections[i-1].Frame.Point))
	}
	return l
}

// Volume sums the conical frustums between consecutive cross-sections.
func (c *Cylinder) Volume() float64 {
	var v float64
	for i := 1; i < len(c.Sections); i++ {
		a, b := c.Sections[i-1], c.Sections[i]
		h := r3.Norm(r3.Sub(b.Frame.Point, a.Frame.Point))
		r1, r2 := a.Circle.Radius, b.Circle.Radius
		v += math.Pi / 3 * h * (r1*r1 + r1*r2 + r2*r2)
	}
	return v
}

// Clone returns a deep copy.
func (c *Cylinder) Clone() *Cylinder {
	out := &Cylinder{Sections: make([]Section, len(c.Sections))}
	copy(out.Sections, c.Sections)
	return out
}
