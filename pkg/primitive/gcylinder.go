package primitive

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/gcdeform/pkg/cage"
	"github.com/chazu/gcdeform/pkg/deform"
	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/skeleton"
	"gonum.org/v1/gonum/spatial/r3"
)

// eps guards divisions by near-zero lengths in the edit operators.
const eps = 1e-12

// Falloff widths of the Gaussian edit weights, as fractions of the range.
const (
	moveDecay  = 0.9
	scaleDecay = 0.6
)

// sigma is chosen so the Gaussian peaks at exactly 1.
var sigma = 1 / math.Sqrt(2*math.Pi)

func gaussian(x float64) float64 {
	return math.Exp(-x * x / (2 * sigma * sigma))
}

// GCylinder is a generalized-cylinder primitive.
type GCylinder struct {
	id   string
	cfg  Config
	mode deform.Mode
	mesh *mesh.Mesh

	cyl  *gc.Cylinder
	cage *cage.Cage
	def  deform.Deformer

	fitted   bool
	frozen   bool
	selected int
	fixed    []r3.Vec
	planes   []Plane
}

var _ Primitive = (*GCylinder)(nil)

// New returns an unfitted primitive over segment m. Call Fit before any
// other operation.
func New(id string, m *mesh.Mesh, cfg Config) (*GCylinder, error) {
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("primitive %q: invalid config: %w", id, err)
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	return &GCylinder{id: id, cfg: cfg, mode: mode, mesh: m}, nil
}

// NewFitted is New followed by Fit.
func NewFitted(id string, m *mesh.Mesh, cfg Config) (*GCylinder, error) {
	g, err := New(id, m, cfg)
	if err != nil {
		return nil, err
	}
	if err := g.Fit(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GCylinder) ID() string { return g.id }

func (g *GCylinder) Kind() Kind { return KindGCylinder }

// Config returns the settings the primitive was built with.
func (g *GCylinder) Config() Config { return g.cfg }

// Fitted reports whether the primitive has geometry.
func (g *GCylinder) Fitted() bool { return g.fitted }

// Mesh returns the bound segment.
func (g *GCylinder) Mesh() *mesh.Mesh { return g.mesh }

// Cylinder returns the live generalized cylinder.
func (g *GCylinder) Cylinder() *gc.Cylinder { return g.cyl }

// Cage returns the live cage.
func (g *GCylinder) Cage() *cage.Cage { return g.cage }

// Deformer returns the live deformer.
func (g *GCylinder) Deformer() deform.Deformer { return g.def }

// Fit extracts a spine from the segment and rebuilds the cylinder, cage
// and binding. The per-section scale accumulators restart at one.
func (g *GCylinder) Fit() error {
	if g.mesh == nil {
		return &FittingError{Segment: g.id, Reason: "no segment mesh"}
	}
	sp, err := skeleton.Fit(g.mesh, g.cfg.skeletonOptions())
	if err != nil {
		reason := "skeleton extraction failed"
		if errors.Is(err, skeleton.ErrDegenerate) {
			reason = "degenerate segment"
		}
		return &FittingError{Segment: g.id, Reason: reason, Err: err}
	}
	cyl, err := gc.New(sp.Points, gc.Radii(sp.Radii))
	if err != nil {
		return &FittingError{Segment: g.id, Reason: "spine too short", Err: err}
	}
	if err := g.bind(cyl); err != nil {
		return &FittingError{Segment: g.id, Reason: "cage construction failed", Err: err}
	}
	g.fitted = true
	Logger().Info("primitive fitted",
		"primitive", g.id,
		"sections", cyl.Len(),
		"length", cyl.Length(),
		"volume", cyl.Volume(),
		"deformer", g.mode.String())
	return nil
}

// bind installs cyl, builds the cage and binds the segment to it.
func (g *GCylinder) bind(cyl *gc.Cylinder) error {
	k, err := cage.Build(cyl, g.cfg.CageSides, g.cfg.CageScale)
	if err != nil {
		return err
	}
	g.cyl, g.cage = cyl, k
	switch g.mode {
	case deform.Green:
		g.def = deform.NewGreen(k, g.mesh, g.cfg.Workers)
	default:
		g.def = deform.NewSkinning(cyl, g.mesh, g.cfg.Workers)
	}
	g.selected = 0
	return nil
}

// DeformMesh moves the cage to follow the cylinder and re-evaluates every
// bound vertex.
func (g *GCylinder) DeformMesh() {
	if err := g.cage.Update(g.cyl); err != nil {
		Logger().Error("cage out of sync with cylinder", "primitive", g.id, "err", err)
		return
	}
	g.def.Deform()
}

// refresh runs the common tail of every edit.
func (g *GCylinder) refresh() {
	g.cyl.Update()
	g.DeformMesh()
}

// Volume returns the enclosed volume of the cage.
func (g *GCylinder) Volume() float64 {
	return g.cage.Volume()
}

// Points returns the cage vertices in cage layout.
func (g *GCylinder) Points() []r3.Vec {
	return g.cage.Points()
}

// SpinePoints returns the cylinder's spine.
func (g *GCylinder) SpinePoints() []r3.Vec {
	return g.cyl.Points()
}

// Curves returns the cage rings sampled from the current cross-sections.
func (g *GCylinder) Curves() [][]r3.Vec {
	return g.cyl.Curves(g.cfg.CageSides, g.cfg.CageScale)
}

// MajorAxis returns the normals of the first and last cross-sections.
func (g *GCylinder) MajorAxis() []r3.Vec {
	n := g.cyl.Len()
	return []r3.Vec{g.cyl.Sections[0].Circle.Normal, g.cyl.Sections[n-1].Circle.Normal}
}

// Selected returns the selected cross-section index.
func (g *GCylinder) Selected() int { return g.selected }

// SelectedPartPos returns the center of the selected cross-section.
func (g *GCylinder) SelectedPartPos() r3.Vec {
	if g.selected < 0 || g.selected >= g.cyl.Len() {
		return r3.Vec{}
	}
	return g.cyl.Sections[g.selected].Circle.Center
}

// ClosestPoint returns the cage vertex nearest p.
func (g *GCylinder) ClosestPoint(p r3.Vec) r3.Vec {
	return g.cage.Vertices[g.cage.ClosestVertex(p)]
}

// GetCoordinate binds p against the primitive's current shape. Later
// edits move FromCoordinate's result with the shape.
func (g *GCylinder) GetCoordinate(p r3.Vec) deform.Coordinate {
	return g.def.CurrentCoordinate(p)
}

// FromCoordinate evaluates a coordinate obtained from GetCoordinate
// against the current shape.
func (g *GCylinder) FromCoordinate(c deform.Coordinate) r3.Vec {
	return g.def.Reconstruct(c)
}

func (g *GCylinder) Frozen() bool { return g.frozen }

func (g *GCylinder) SetFrozen(frozen bool) { g.frozen = frozen }

// AddFixedPoint pins the cross-section nearest p for MovePoint.
func (g *GCylinder) AddFixedPoint(p r3.Vec) {
	g.fixed = append(g.fixed, p)
}

// ClearFixedPoints removes every pin.
func (g *GCylinder) ClearFixedPoints() {
	g.fixed = nil
}

// FixedPoints returns a copy of the pins.
func (g *GCylinder) FixedPoints() []r3.Vec {
	return append([]r3.Vec(nil), g.fixed...)
}

// SetSymmetryPlanes installs the symmetry plane through the first
// cross-section. The fold count only switches symmetry on or off: n <= 0
// clears the planes.
func (g *GCylinder) SetSymmetryPlanes(n int) {
	if n <= 0 {
		g.planes = nil
		return
	}
	first := g.cyl.Sections[0].Circle
	g.planes = []Plane{{Normal: first.Normal, Point: first.Center}}
}

// SymmetryPlanes returns a copy of the symmetry planes.
func (g *GCylinder) SymmetryPlanes() []Plane {
	return append([]Plane(nil), g.planes...)
}

// GeometryState snapshots the cross-section records.
func (g *GCylinder) GeometryState() GeometryState {
	return GeometryState{Sections: append([]gc.Section(nil), g.cyl.Sections...)}
}

// SetGeometryState restores a snapshot taken from this primitive.
func (g *GCylinder) SetGeometryState(s GeometryState) error {
	if len(s.Sections) != g.cyl.Len() {
		return mismatch("sections", g.cyl.Len(), len(s.Sections))
	}
	copy(g.cyl.Sections, s.Sections)
	g.DeformMesh()
	return nil
}

// nearestSection returns the index of the cross-section whose center is
// closest to p. Ties go to the lower index.
func (g *GCylinder) nearestSection(p r3.Vec) int {
	best, bestD := 0, math.Inf(1)
	for i, s := range g.cyl.Sections {
		if d := r3.Norm(r3.Sub(s.Circle.Center, p)); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// DetectHotCurve selects and returns the cross-section nearest the
// samples' centroid. With symmetry planes the first sample is used
// instead. An empty sample set returns NoHotCurve and keeps the current
// selection.
func (g *GCylinder) DetectHotCurve(samples []r3.Vec) int {
	if len(samples) == 0 {
		return NoHotCurve
	}
	center := samples[0]
	if len(g.planes) == 0 {
		var sum r3.Vec
		for _, p := range samples {
			sum = r3.Add(sum, p)
		}
		center = r3.Scale(1/float64(len(samples)), sum)
	}
	g.selected = g.nearestSection(center)
	return g.selected
}

// DetectHotCurvePoint is DetectHotCurve for a single sample.
func (g *GCylinder) DetectHotCurvePoint(p r3.Vec) int {
	return g.DetectHotCurve([]r3.Vec{p})
}

// Select sets the selected cross-section.
func (g *GCylinder) Select(cid int) error {
	if cid < 0 || cid >= g.cyl.Len() {
		return fmt.Errorf("primitive %q: cross-section %d out of range [0, %d)", g.id, cid, g.cyl.Len())
	}
	g.selected = cid
	return nil
}
