// Package kernel defines the abstract geometry kernel interface used to
// synthesize mesh segments from solid primitives. Implementations (sdfx)
// provide solid modeling behind this interface, so segment generators do
// not depend on a particular backend.
package kernel

import "github.com/chazu/gcdeform/pkg/mesh"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives, centred on the origin. Cylinders run along Z.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64) Solid
	Sphere(radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates the solid into a closed, welded, outward-oriented
	// indexed mesh.
	ToMesh(s Solid) (*mesh.Mesh, error)
}
