// Package mesh provides the indexed triangle mesh that the fitting and
// deformation code operates on. A Mesh is a shared vertex array plus
// triangles referencing it by index; deformers rewrite Vertices in place.
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a triangle given as three vertex indices in counter-clockwise
// order when viewed from outside the surface.
type Face [3]int

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Name     string
	Vertices []r3.Vec
	Faces    []Face

	index *Index
}

// New returns a mesh over the given vertices and faces. The slices are
// not copied.
func New(name string, vertices []r3.Vec, faces []Face) *Mesh {
	return &Mesh{Name: name, Vertices: vertices, Faces: faces}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0 || len(m.Faces) == 0
}

// Clone returns a deep copy of the mesh. The spatial index is not copied.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Name:     m.Name,
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([]Face, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	return c
}

// FaceNormal returns the unit normal of face f. Degenerate faces yield
// the zero vector.
func (m *Mesh) FaceNormal(f int) r3.Vec {
	face := m.Faces[f]
	a, b, c := m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// FaceNormals returns the unit normal of every face.
func (m *Mesh) FaceNormals() []r3.Vec {
	out := make([]r3.Vec, len(m.Faces))
	for i := range m.Faces {
		out[i] = m.FaceNormal(i)
	}
	return out
}

// FaceArea returns the area of face f.
func (m *Mesh) FaceArea(f int) float64 {
	face := m.Faces[f]
	a, b, c := m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]
	return r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
}

// VertexNormals returns area-weighted vertex normals.
func (m *Mesh) VertexNormals() []r3.Vec {
	acc := make([]r3.Vec, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, vi := range f {
			acc[vi] = r3.Add(acc[vi], n)
		}
	}
	for i, n := range acc {
		if r3.Norm(n) > 0 {
			acc[i] = r3.Unit(n)
		}
	}
	return acc
}

// Volume returns the signed volume enclosed by the mesh. It is positive
// for a closed, outward-oriented surface and meaningless for open ones.
func (m *Mesh) Volume() float64 {
	var sum float64
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		sum += r3.Dot(a, r3.Cross(b, c))
	}
	return sum / 6
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	var sum float64
	for i := range m.Faces {
		sum += m.FaceArea(i)
	}
	return sum
}

// Flip reverses the winding of every face.
func (m *Mesh) Flip() {
	for i, f := range m.Faces {
		m.Faces[i] = Face{f[0], f[2], f[1]}
	}
}

// Bounds returns the axis-aligned bounding box.
func (m *Mesh) Bounds() (min, max r3.Vec) {
	if len(m.Vertices) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	min = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range m.Vertices {
		min = r3.Vec{X: math.Min(min.X, v.X), Y: math.Min(min.Y, v.Y), Z: math.Min(min.Z, v.Z)}
		max = r3.Vec{X: math.Max(max.X, v.X), Y: math.Max(max.Y, v.Y), Z: math.Max(max.Z, v.Z)}
	}
	return min, max
}

// Centroid returns the mean of the vertex positions.
func (m *Mesh) Centroid() r3.Vec {
	var sum r3.Vec
	for _, v := range m.Vertices {
		sum = r3.Add(sum, v)
	}
	if len(m.Vertices) == 0 {
		return sum
	}
	return r3.Scale(1/float64(len(m.Vertices)), sum)
}

// Translate shifts every vertex by d.
func (m *Mesh) Translate(d r3.Vec) {
	for i, v := range m.Vertices {
		m.Vertices[i] = r3.Add(v, d)
	}
	m.index = nil
}

// Buffers flattens the mesh into render-ready arrays: three floats per
// vertex for positions and normals, three indices per triangle.
func (m *Mesh) Buffers() (vertices, normals []float32, indices []uint32) {
	vn := m.VertexNormals()
	vertices = make([]float32, 0, len(m.Vertices)*3)
	normals = make([]float32, 0, len(m.Vertices)*3)
	indices = make([]uint32, 0, len(m.Faces)*3)
	for i, v := range m.Vertices {
		vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
		normals = append(normals, float32(vn[i].X), float32(vn[i].Y), float32(vn[i].Z))
	}
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}
	return vertices, normals, indices
}
