// Package session is the controller over a set of fitted primitives. It
// owns the selection, the joints between primitives and the propagation
// of edits across those joints, and snapshots the whole shape.
package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/gcdeform/pkg/joint"
	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/primitive"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotFound is returned for an unknown primitive id.
	ErrNotFound = errors.New("session: no such primitive")
	// ErrNoSelection is returned by selection edits when nothing is selected.
	ErrNoSelection = errors.New("session: no primitive selected")
)

// colorPalette assigns distinct colors to primitives in insertion order.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is the JSON-serializable form of a primitive's bound mesh.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// ShapeState is a snapshot of every primitive's geometry and frozen flag.
type ShapeState struct {
	Geometry map[string]primitive.GeometryState
	Frozen   map[string]bool
}

// meshed is implemented by primitives bound to a segment mesh.
type meshed interface {
	Mesh() *mesh.Mesh
}

// partSelector is implemented by primitives with selectable parts.
type partSelector interface {
	Select(cid int) error
}

// Session holds named primitives and the joints between them.
type Session struct {
	cfg      primitive.Config
	order    []string
	prims    map[string]primitive.Primitive
	groups   []*joint.Group
	selected string
}

// New returns an empty session whose primitives are fitted with cfg.
func New(cfg primitive.Config) *Session {
	return &Session{cfg: cfg, prims: make(map[string]primitive.Primitive)}
}

// Config returns the session's primitive settings.
func (s *Session) Config() primitive.Config { return s.cfg }

// Add registers p under its id.
func (s *Session) Add(p primitive.Primitive) error {
	id := p.ID()
	if _, ok := s.prims[id]; ok {
		return fmt.Errorf("session: duplicate primitive %q", id)
	}
	s.prims[id] = p
	s.order = append(s.order, id)
	return nil
}

// Fit fits a generalized cylinder to m and adds it as id.
func (s *Session) Fit(id string, m *mesh.Mesh) (*primitive.GCylinder, error) {
	if _, ok := s.prims[id]; ok {
		return nil, fmt.Errorf("session: duplicate primitive %q", id)
	}
	g, err := primitive.NewFitted(id, m, s.cfg)
	if err != nil {
		return nil, err
	}
	return g, s.Add(g)
}

// Primitive returns the primitive registered as id.
func (s *Session) Primitive(id string) (primitive.Primitive, error) {
	p, ok := s.prims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// IDs returns the primitive ids in insertion order.
func (s *Session) IDs() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of primitives.
func (s *Session) Len() int { return len(s.order) }

// Select makes id the selected primitive.
func (s *Session) Select(id string) error {
	if _, err := s.Primitive(id); err != nil {
		return err
	}
	s.selected = id
	return nil
}

// Selected returns the selected primitive.
func (s *Session) Selected() (primitive.Primitive, error) {
	if s.selected == "" {
		return nil, ErrNoSelection
	}
	return s.Primitive(s.selected)
}

// SelectPart selects cross-section cid of the selected primitive.
func (s *Session) SelectPart(cid int) error {
	p, err := s.Selected()
	if err != nil {
		return err
	}
	ps, ok := p.(partSelector)
	if !ok {
		return fmt.Errorf("session: primitive %q has no selectable parts", p.ID())
	}
	return ps.Select(cid)
}

// SelectedPartPos returns the center of the selected part.
func (s *Session) SelectedPartPos() (r3.Vec, error) {
	p, err := s.Selected()
	if err != nil {
		return r3.Vec{}, err
	}
	return p.SelectedPartPos(), nil
}

// MoveSelected drags the selected part to pos and propagates the edit
// through the joints. It returns the ids of the primitives that followed.
func (s *Session) MoveSelected(pos r3.Vec) ([]string, error) {
	p, err := s.Selected()
	if err != nil {
		return nil, err
	}
	s.SetFrozen(false)
	p.SetFrozen(true)
	p.MoveCurveCenter(-1, r3.Sub(pos, p.SelectedPartPos()))
	moved := s.Propagate()
	p.SetFrozen(false)
	return moved, nil
}

// ScaleSelected grows the selected part by the configured delta scale,
// or shrinks it when up is false.
func (s *Session) ScaleSelected(up bool) error {
	p, err := s.Selected()
	if err != nil {
		return err
	}
	f := s.cfg.DeltaScale
	if !up {
		f = 1 / f
	}
	p.ScaleCurve(-1, f)
	return nil
}

// SetFrozen sets the frozen flag of every primitive.
func (s *Session) SetFrozen(frozen bool) {
	for _, id := range s.order {
		s.prims[id].SetFrozen(frozen)
	}
}

// Join binds a and b at the shared point at.
func (s *Session) Join(a, b string, at r3.Vec) (*joint.Group, error) {
	pa, err := s.Primitive(a)
	if err != nil {
		return nil, err
	}
	pb, err := s.Primitive(b)
	if err != nil {
		return nil, err
	}
	if a == b {
		return nil, fmt.Errorf("session: cannot join %q to itself", a)
	}
	g := joint.New(pa, pb, at)
	s.groups = append(s.groups, g)
	return g, nil
}

// Groups returns the joints in creation order.
func (s *Session) Groups() []*joint.Group {
	return append([]*joint.Group(nil), s.groups...)
}

// FindJoints joins every pair of primitives whose meshes come within
// threshold of each other, at the midpoint of their closest vertex pair.
// It returns the number of joints created.
func (s *Session) FindJoints(threshold float64) int {
	found := 0
	for i, ida := range s.order {
		ma, ok := s.prims[ida].(meshed)
		if !ok || ma.Mesh() == nil {
			continue
		}
		for _, idb := range s.order[i+1:] {
			mb, ok := s.prims[idb].(meshed)
			if !ok || mb.Mesh() == nil {
				continue
			}
			pa, pb, d := closestPair(ma.Mesh(), mb.Mesh())
			if d >= threshold {
				continue
			}
			at := r3.Scale(0.5, r3.Add(pa, pb))
			if _, err := s.Join(ida, idb, at); err == nil {
				found++
				primitive.Logger().Debug("joint found", "a", ida, "b", idb, "gap", d)
			}
		}
	}
	return found
}

// closestPair returns the closest vertices of a and b and their distance.
// Ties keep the lowest vertex of a.
func closestPair(a, b *mesh.Mesh) (r3.Vec, r3.Vec, float64) {
	var pa, pb r3.Vec
	best := math.Inf(1)
	ix := b.Index()
	for _, v := range a.Vertices {
		j, q := ix.Nearest(v)
		if j < 0 {
			break
		}
		if d := r3.Norm(r3.Sub(v, q)); d < best {
			pa, pb, best = v, q, d
		}
	}
	return pa, pb, best
}

// Propagate regroups the joints until no frozen primitive pulls on a free
// one. Each primitive that moves is frozen for the rest of the pass so the
// edit travels outwards along chains of joints. Frozen flags are restored
// afterwards. It returns the moved ids in order.
func (s *Session) Propagate() []string {
	var moved []string
	seen := make(map[string]bool)
	for pass := 0; pass <= len(s.groups); pass++ {
		progress := false
		for _, g := range s.groups {
			for _, id := range g.Regroup() {
				s.prims[id].SetFrozen(true)
				if !seen[id] {
					seen[id] = true
					moved = append(moved, id)
				}
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	for _, id := range moved {
		s.prims[id].SetFrozen(false)
	}
	return moved
}

// Snapshot captures every primitive's geometry and frozen flag.
func (s *Session) Snapshot() ShapeState {
	st := ShapeState{
		Geometry: make(map[string]primitive.GeometryState, len(s.order)),
		Frozen:   make(map[string]bool, len(s.order)),
	}
	for _, id := range s.order {
		p := s.prims[id]
		st.Geometry[id] = p.GeometryState()
		st.Frozen[id] = p.Frozen()
	}
	return st
}

// Restore puts back a snapshot taken by Snapshot. Primitives absent from
// the snapshot are left alone.
func (s *Session) Restore(st ShapeState) error {
	for id := range st.Geometry {
		if _, ok := s.prims[id]; !ok {
			return fmt.Errorf("%w: %q in snapshot", ErrNotFound, id)
		}
	}
	for _, id := range s.order {
		geo, ok := st.Geometry[id]
		if !ok {
			continue
		}
		p := s.prims[id]
		if err := p.SetGeometryState(geo); err != nil {
			return fmt.Errorf("session: restore %q: %w", id, err)
		}
		p.SetFrozen(st.Frozen[id])
	}
	return nil
}

// Volumes returns the cage volume of every primitive.
func (s *Session) Volumes() map[string]float64 {
	out := make(map[string]float64, len(s.order))
	for _, id := range s.order {
		out[id] = s.prims[id].Volume()
	}
	return out
}

// Meshes returns the render buffers of every bound mesh.
func (s *Session) Meshes() []MeshData {
	out := []MeshData{}
	for i, id := range s.order {
		mp, ok := s.prims[id].(meshed)
		if !ok || mp.Mesh() == nil {
			continue
		}
		verts, normals, indices := mp.Mesh().Buffers()
		out = append(out, MeshData{
			Vertices: verts,
			Normals:  normals,
			Indices:  indices,
			PartName: id,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	return out
}
