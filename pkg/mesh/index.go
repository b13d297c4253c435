package mesh

import (
	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"
)

// pointTol is the half-width of the box each vertex occupies in the tree.
const pointTol = 1e-9

// vertexEntry is a mesh vertex stored in the R-tree.
type vertexEntry struct {
	id   int
	pos  r3.Vec
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *vertexEntry) Bounds() rtreego.Rect {
	return e.rect
}

// Index answers nearest-vertex and box queries over a fixed set of points.
// It is a snapshot: moving the source vertices afterwards does not update
// it.
type Index struct {
	tree  *rtreego.Rtree
	count int
}

// NewIndex builds an R-tree over pts.
func NewIndex(pts []r3.Vec) *Index {
	objs := make([]rtreego.Spatial, len(pts))
	for i, p := range pts {
		objs[i] = &vertexEntry{id: i, pos: p, rect: toPoint(p).ToRect(pointTol)}
	}
	return &Index{tree: rtreego.NewTree(3, 25, 50, objs...), count: len(pts)}
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	return ix.count
}

// Nearest returns the index and position of the point closest to p, or
// -1 when the index is empty.
func (ix *Index) Nearest(p r3.Vec) (int, r3.Vec) {
	if ix.count == 0 {
		return -1, r3.Vec{}
	}
	e, ok := ix.tree.NearestNeighbor(toPoint(p)).(*vertexEntry)
	if !ok || e == nil {
		return -1, r3.Vec{}
	}
	return e.id, e.pos
}

// NearestK returns up to k point indices ordered by distance to p.
func (ix *Index) NearestK(p r3.Vec, k int) []int {
	if ix.count == 0 || k <= 0 {
		return nil
	}
	found := ix.tree.NearestNeighbors(k, toPoint(p))
	out := make([]int, 0, len(found))
	for _, s := range found {
		if e, ok := s.(*vertexEntry); ok && e != nil {
			out = append(out, e.id)
		}
	}
	return out
}

// WithinBox returns the indices of points inside the axis-aligned box
// centred at c with half-extent r.
func (ix *Index) WithinBox(c r3.Vec, r float64) []int {
	var out []int
	for _, e := range ix.searchBox(c, r) {
		out = append(out, e.id)
	}
	return out
}

// WithinRadius returns the indices of points within distance r of c.
func (ix *Index) WithinRadius(c r3.Vec, r float64) []int {
	var out []int
	for _, e := range ix.searchBox(c, r) {
		if r3.Norm(r3.Sub(e.pos, c)) <= r {
			out = append(out, e.id)
		}
	}
	return out
}

func (ix *Index) searchBox(c r3.Vec, r float64) []*vertexEntry {
	if ix.count == 0 || r <= 0 {
		return nil
	}
	var out []*vertexEntry
	for _, s := range ix.tree.SearchIntersect(toPoint(c).ToRect(r)) {
		if e, ok := s.(*vertexEntry); ok {
			out = append(out, e)
		}
	}
	return out
}

func toPoint(v r3.Vec) rtreego.Point {
	return rtreego.Point{v.X, v.Y, v.Z}
}

// Index returns the mesh's vertex index, building it on first use.
// Vertex edits made through Translate or Weld invalidate it; callers that
// rewrite Vertices directly must call Reindex.
func (m *Mesh) Index() *Index {
	if m.index == nil || m.index.count != len(m.Vertices) {
		m.index = NewIndex(m.Vertices)
	}
	return m.index
}

// Reindex drops the cached vertex index.
func (m *Mesh) Reindex() {
	m.index = nil
}

// Nearest returns the mesh vertex closest to p.
func (m *Mesh) Nearest(p r3.Vec) (int, r3.Vec) {
	return m.Index().Nearest(p)
}
