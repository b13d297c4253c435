package mesh

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B   int
	Length float64
}

// Edges returns every unique undirected edge, sorted by (A, B).
func (m *Mesh) Edges() []Edge {
	seen := make(map[[2]int]struct{}, len(m.Faces)*3/2)
	var edges []Edge
	for _, f := range m.Faces {
		for l := 0; l < 3; l++ {
			a, b := f[l], f[(l+1)%3]
			if a == b {
				continue
			}
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, Edge{A: a, B: b, Length: r3.Norm(r3.Sub(m.Vertices[a], m.Vertices[b]))})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// Neighbors returns, for each vertex, the sorted indices of the vertices
// sharing an edge with it.
func (m *Mesh) Neighbors() [][]int {
	adj := make([][]int, len(m.Vertices))
	for _, e := range m.Edges() {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	for _, n := range adj {
		sort.Ints(n)
	}
	return adj
}

// IsClosed reports whether every edge is shared by exactly two faces.
func (m *Mesh) IsClosed() bool {
	count := make(map[[2]int]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for l := 0; l < 3; l++ {
			a, b := f[l], f[(l+1)%3]
			if a > b {
				a, b = b, a
			}
			count[[2]int{a, b}]++
		}
	}
	for _, c := range count {
		if c != 2 {
			return false
		}
	}
	return len(count) > 0
}

// FromTriangles builds an indexed mesh from a triangle soup, merging
// vertices closer than tol. Triangles that collapse after welding are
// dropped.
func FromTriangles(name string, tris [][3]r3.Vec, tol float64) *Mesh {
	w := newWelder(tol)
	m := &Mesh{Name: name}
	for _, t := range tris {
		var f Face
		for j := 0; j < 3; j++ {
			f[j] = w.add(t[j])
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		m.Faces = append(m.Faces, f)
	}
	m.Vertices = w.verts
	return m
}

// Weld merges vertices of m closer than tol and drops degenerate faces.
func (m *Mesh) Weld(tol float64) {
	w := newWelder(tol)
	remap := make([]int, len(m.Vertices))
	for i, v := range m.Vertices {
		remap[i] = w.add(v)
	}
	faces := m.Faces[:0]
	for _, f := range m.Faces {
		g := Face{remap[f[0]], remap[f[1]], remap[f[2]]}
		if g[0] == g[1] || g[1] == g[2] || g[0] == g[2] {
			continue
		}
		faces = append(faces, g)
	}
	m.Faces = faces
	m.Vertices = w.verts
	m.index = nil
}

// welder hashes positions onto a grid of cell size tol and compares
// against the neighbouring cells.
type welder struct {
	tol   float64
	cells map[[3]int64][]int
	verts []r3.Vec
}

func newWelder(tol float64) *welder {
	if tol <= 0 {
		tol = 1e-9
	}
	return &welder{tol: tol, cells: make(map[[3]int64][]int)}
}

func (w *welder) cell(v r3.Vec) [3]int64 {
	return [3]int64{
		int64(math.Floor(v.X / w.tol)),
		int64(math.Floor(v.Y / w.tol)),
		int64(math.Floor(v.Z / w.tol)),
	}
}

func (w *welder) add(v r3.Vec) int {
	c := w.cell(v)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, idx := range w.cells[[3]int64{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if r3.Norm(r3.Sub(w.verts[idx], v)) <= w.tol {
						return idx
					}
				}
			}
		}
	}
	idx := len(w.verts)
	w.verts = append(w.verts, v)
	w.cells[c] = append(w.cells[c], idx)
	return idx
}
