// Package deform binds mesh vertices to a control structure and moves
// them when the structure changes. Two schemes are provided: Green
// coordinates against the cage, and linear skinning against the frames of
// the generalized cylinder.
package deform

import (
	"fmt"
	"strings"

	"github.com/chazu/gcdeform/pkg/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Coordinate is the binding of one point. Its layout depends on the Mode
// that produced it.
type Coordinate []float64

// Mode selects a deformation scheme.
type Mode int

const (
	// Skinning binds to the two nearest spine frames.
	Skinning Mode = iota
	// Green binds to the cage with Green coordinates.
	Green
)

// String returns the config name of the mode.
func (m Mode) String() string {
	switch m {
	case Skinning:
		return "skinning"
	case Green:
		return "green"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a config name. The empty string selects Skinning.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skinning":
		return Skinning, nil
	case "green":
		return Green, nil
	default:
		return 0, fmt.Errorf("deform: unknown mode %q", s)
	}
}

// Deformer binds points once and reconstructs them from the current state
// of its control structure.
type Deformer interface {
	// Coordinate binds p against the undeformed control structure.
	Coordinate(p r3.Vec) Coordinate
	// CurrentCoordinate binds p against the control structure as it is
	// now, so Reconstruct returns p until the next change.
	CurrentCoordinate(p r3.Vec) Coordinate
	// Reconstruct evaluates c against the current control structure.
	Reconstruct(c Coordinate) r3.Vec
	// Deform rewrites every bound mesh vertex.
	Deform()
	Mode() Mode
}

// binding is the shared per-vertex state of both deformers.
type binding struct {
	target  *mesh.Mesh
	coords  []Coordinate
	workers int
}

func (b *binding) bind(coord func(r3.Vec) Coordinate) {
	if b.target == nil {
		return
	}
	b.coords = make([]Coordinate, len(b.target.Vertices))
	forEach(len(b.coords), b.workers, func(i int) {
		b.coords[i] = coord(b.target.Vertices[i])
	})
}

func (b *binding) apply(eval func(Coordinate) r3.Vec) {
	if b.target == nil {
		return
	}
	forEach(len(b.coords), b.workers, func(i int) {
		b.target.Vertices[i] = eval(b.coords[i])
	})
	b.target.Reindex()
}

// Coordinates returns the binding of mesh vertex i.
func (b *binding) Coordinates(i int) Coordinate {
	return b.coords[i]
}

// Bound returns the number of bound mesh vertices.
func (b *binding) Bound() int {
	return len(b.coords)
}

// forEach calls fn for 0..n-1, split into contiguous chunks over at most
// workers goroutines. Each index is written by exactly one goroutine.
func forEach(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2*workers {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
