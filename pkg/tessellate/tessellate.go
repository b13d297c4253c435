// Package tessellate produces triangle meshes for swept circular
// profiles: straight tubes, bent tubes and arbitrary sweeps along a
// polyline. The meshes are closed (when capped) and outward oriented, and
// serve as synthetic segments with a known analytic volume.
package tessellate

import (
	"fmt"
	"math"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sweep describes a circular profile swept along a path.
type Sweep struct {
	Name   string
	Path   []r3.Vec  // ring centers, at least 2
	Radii  []float64 // one per path point; empty means Radius everywhere
	Radius float64
	Sides  int  // ring resolution, at least 3
	Capped bool // close both ends with a center vertex fan
}

// Tessellate meshes the sweep. Ring k vertex j is vertex k*Sides+j; when
// capped, the two cap centers follow the rings.
func (s Sweep) Tessellate() (*mesh.Mesh, error) {
	if len(s.Path) < 2 {
		return nil, fmt.Errorf("tessellate: sweep %q needs at least 2 path points, got %d", s.Name, len(s.Path))
	}
	if s.Sides < 3 {
		return nil, fmt.Errorf("tessellate: sweep %q needs at least 3 sides, got %d", s.Name, s.Sides)
	}
	if len(s.Radii) != 0 && len(s.Radii) != len(s.Path) {
		return nil, fmt.Errorf("tessellate: sweep %q has %d radii for %d path points", s.Name, len(s.Radii), len(s.Path))
	}

	frames := gc.ComputeFrames(s.Path, r3.Vec{})
	m := &mesh.Mesh{Name: s.Name}
	for k, f := range frames {
		c := gc.Circle{Index: k, Center: f.Point, Radius: s.radius(k), Normal: f.T}
		m.Vertices = append(m.Vertices, c.ToSegments(s.Sides, f, 1)...)
	}

	idx := func(k, j int) int { return k*s.Sides + (j % s.Sides) }
	for k := 0; k+1 < len(frames); k++ {
		for j := 0; j < s.Sides; j++ {
			a, b, c, d := idx(k, j), idx(k, j+1), idx(k+1, j+1), idx(k+1, j)
			m.Faces = append(m.Faces, mesh.Face{a, b, c}, mesh.Face{a, c, d})
		}
	}

	if s.Capped {
		last := len(frames) - 1
		start := len(m.Vertices)
		m.Vertices = append(m.Vertices, frames[0].Point)
		end := len(m.Vertices)
		m.Vertices = append(m.Vertices, frames[last].Point)
		for j := 0; j < s.Sides; j++ {
			m.Faces = append(m.Faces,
				mesh.Face{start, idx(0, j+1), idx(0, j)},
				mesh.Face{end, idx(last, j), idx(last, j+1)},
			)
		}
	}
	return m, nil
}

func (s Sweep) radius(k int) float64 {
	if len(s.Radii) > 0 {
		return s.Radii[k]
	}
	if s.Radius > 0 {
		return s.Radius
	}
	return gc.DefaultRadius
}

// Tube returns a capped straight tube of the given radius along +Z from
// the origin, with rings cross-sections of sides vertices each.
func Tube(radius, height float64, rings, sides int) (*mesh.Mesh, error) {
	return Sweep{
		Name:   "tube",
		Path:   straight(rings, height),
		Radius: radius,
		Sides:  sides,
		Capped: true,
	}.Tessellate()
}

// OpenTube is Tube without end caps.
func OpenTube(radius, height float64, rings, sides int) (*mesh.Mesh, error) {
	return Sweep{
		Name:   "open-tube",
		Path:   straight(rings, height),
		Radius: radius,
		Sides:  sides,
	}.Tessellate()
}

// BentTube returns a capped tube whose axis is a circular arc of the
// given bend radius and angle in the XZ plane, starting at the origin
// heading +Z.
func BentTube(radius, bendRadius, angle float64, rings, sides int) (*mesh.Mesh, error) {
	path := make([]r3.Vec, rings)
	for i := range path {
		a := angle * float64(i) / float64(rings-1)
		path[i] = r3.Vec{X: bendRadius * (1 - math.Cos(a)), Z: bendRadius * math.Sin(a)}
	}
	return Sweep{Name: "bent-tube", Path: path, Radius: radius, Sides: sides, Capped: true}.Tessellate()
}

// TubeVolume is the analytic volume of a cylinder.
func TubeVolume(radius, height float64) float64 {
	return math.Pi * radius * radius * height
}

func straight(rings int, height float64) []r3.Vec {
	if rings < 2 {
		rings = 2
	}
	path := make([]r3.Vec, rings)
	for i := range path {
		path[i] = r3.Vec{Z: height * float64(i) / float64(rings-1)}
	}
	return path
}
