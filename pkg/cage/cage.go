// Package cage builds the coarse closed shell that drives mesh
// deformation. A cage wraps a generalized cylinder: one inflated ring per
// cross-section plus an apex vertex beyond each end.
//
// The layout is fixed at Build and never changes afterwards:
//
//	vertex 0                start apex
//	vertex 1+i*sides+k      ring i, sample k
//	vertex 1+N*sides        end apex
package cage

import (
	"fmt"
	"math"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cage is a closed, outward-oriented triangle shell around a cylinder.
type Cage struct {
	Sides         int
	Scale         float64
	Vertices      []r3.Vec
	Faces         []mesh.Face
	InitialVolume float64

	rings int
}

// VertexCount is the number of cage vertices for n cross-sections.
func VertexCount(n, sides int) int {
	return 2 + n*sides
}

// Build creates the cage of c with sides samples per ring, each ring
// inflated by scale.
func Build(c *gc.Cylinder, sides int, scale float64) (*Cage, error) {
	if sides < 3 {
		return nil, fmt.Errorf("cage: need at least 3 sides, got %d", sides)
	}
	if c.Len() < 2 {
		return nil, fmt.Errorf("cage: %w", gc.ErrTooFewPoints)
	}
	k := &Cage{Sides: sides, Scale: scale, rings: c.Len()}
	k.Vertices = k.positions(c)
	k.Faces = faces(c.Len(), sides)
	if k.Volume() < 0 {
		for i, f := range k.Faces {
			k.Faces[i] = mesh.Face{f[0], f[2], f[1]}
		}
	}
	k.InitialVolume = k.Volume()
	return k, nil
}

// Update moves the cage vertices to follow c. The topology is unchanged.
func (k *Cage) Update(c *gc.Cylinder) error {
	if c.Len() != k.rings {
		return fmt.Errorf("cage: cylinder has %d cross-sections, cage was built for %d", c.Len(), k.rings)
	}
	k.Vertices = k.positions(c)
	return nil
}

func (k *Cage) positions(c *gc.Cylinder) []r3.Vec {
	n := c.Len()
	out := make([]r3.Vec, 0, VertexCount(n, k.Sides))
	first, last := c.Sections[0], c.Sections[n-1]
	out = append(out, r3.Sub(first.Frame.Point, r3.Scale((k.Scale-1)*first.Circle.Radius, first.Frame.T)))
	for i := 0; i < n; i++ {
		out = append(out, c.Ring(i, k.Sides, k.Scale)...)
	}
	return append(out, r3.Add(last.Frame.Point, r3.Scale((k.Scale-1)*last.Circle.Radius, last.Frame.T)))
}

func faces(n, sides int) []mesh.Face {
	out := make([]mesh.Face, 0, 2*sides*n)
	for i := 1; i <= sides; i++ {
		out = append(out, mesh.Face{i, 0, i%sides + 1})
	}
	for c := 0; c < n-1; c++ {
		off := c*sides + 1
		for i := 0; i < sides; i++ {
			v1 := i%sides + off
			v2 := (i+1)%sides + off
			v3 := v2 + sides
			v4 := v1 + sides
			out = append(out, mesh.Face{v1, v2, v3}, mesh.Face{v1, v3, v4})
		}
	}
	end := VertexCount(n, sides) - 1
	for i := 0; i < sides; i++ {
		out = append(out, mesh.Face{end, end - 1 - (i+2)%sides, end - 1 - (i+1)%sides})
	}
	return out
}

// Rings returns the number of rings, the cross-section count the cage
// was built for.
func (k *Cage) Rings() int {
	return k.rings
}

// Ring returns a copy of ring i.
func (k *Cage) Ring(i int) []r3.Vec {
	lo := 1 + i*k.Sides
	return append([]r3.Vec(nil), k.Vertices[lo:lo+k.Sides]...)
}

// Points returns a copy of the cage vertices.
func (k *Cage) Points() []r3.Vec {
	return append([]r3.Vec(nil), k.Vertices...)
}

// Mesh returns the cage as a mesh sharing no storage with k.
func (k *Cage) Mesh() *mesh.Mesh {
	return mesh.New("cage", k.Points(), append([]mesh.Face(nil), k.Faces...))
}

// Volume returns the signed enclosed volume.
func (k *Cage) Volume() float64 {
	return mesh.New("", k.Vertices, k.Faces).Volume()
}

// FaceNormals returns the unit outward normal of every face.
func (k *Cage) FaceNormals() []r3.Vec {
	return mesh.New("", k.Vertices, k.Faces).FaceNormals()
}

// ClosestVertex returns the index of the cage vertex nearest p.
func (k *Cage) ClosestVertex(p r3.Vec) int {
	best, bestD := -1, math.Inf(1)
	for i, v := range k.Vertices {
		if d := r3.Norm(r3.Sub(v, p)); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
