// Package primitive turns mesh segments into deformable primitives. A
// primitive is fitted to its segment, wrapped in a cage, and binds the
// segment's vertices so that every edit to the primitive carries the
// surface along.
package primitive

import (
	"fmt"

	"github.com/chazu/gcdeform/pkg/deform"
	"github.com/chazu/gcdeform/pkg/gc"
	"gonum.org/v1/gonum/spatial/r3"
)

// NoHotCurve is returned by DetectHotCurve when there is nothing to
// select.
const NoHotCurve = -1

// Kind identifies a primitive variant.
type Kind int

const (
	KindGCylinder Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindGCylinder:
		return "gcylinder"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Plane is a symmetry plane through Point with unit Normal.
type Plane struct {
	Normal r3.Vec
	Point  r3.Vec
}

// Project returns the orthogonal projection of p onto the plane.
func (pl Plane) Project(p r3.Vec) r3.Vec {
	d := r3.Dot(r3.Sub(p, pl.Point), pl.Normal)
	return r3.Sub(p, r3.Scale(d, pl.Normal))
}

// GeometryState is a snapshot of a primitive's shape.
type GeometryState struct {
	Sections []gc.Section
}

// Clone returns a deep copy.
func (s GeometryState) Clone() GeometryState {
	return GeometryState{Sections: append([]gc.Section(nil), s.Sections...)}
}

// Primitive is the capability set shared by all primitive variants.
type Primitive interface {
	ID() string
	Kind() Kind

	Fit() error
	DeformMesh()
	Volume() float64

	Points() []r3.Vec
	Curves() [][]r3.Vec
	MajorAxis() []r3.Vec
	SelectedPartPos() r3.Vec
	ClosestPoint(p r3.Vec) r3.Vec

	GetCoordinate(p r3.Vec) deform.Coordinate
	FromCoordinate(c deform.Coordinate) r3.Vec

	MovePoint(p, delta r3.Vec)
	MoveCurveCenter(cid int, delta r3.Vec)
	ScaleCurve(cid int, factor float64)
	ReshapeFromPoints(pts []r3.Vec) error
	DetectHotCurve(samples []r3.Vec) int

	AddFixedPoint(p r3.Vec)
	ClearFixedPoints()
	SetSymmetryPlanes(n int)

	GeometryState() GeometryState
	SetGeometryState(s GeometryState) error

	Frozen() bool
	SetFrozen(frozen bool)
}
