// Package joint keeps two primitives attached at a shared point. Each
// side stores the joint in its own coordinates; when one side has been
// edited while frozen, Regroup drags the other side back onto it.
package joint

import (
	"fmt"

	"github.com/chazu/gcdeform/pkg/deform"
	"github.com/chazu/gcdeform/pkg/primitive"
	"gonum.org/v1/gonum/spatial/r3"
)

// Group joins two primitives.
type Group struct {
	a, b   primitive.Primitive
	ca, cb deform.Coordinate
	joint  r3.Vec
}

// New returns a group joining a and b at joint.
func New(a, b primitive.Primitive, joint r3.Vec) *Group {
	g := &Group{}
	g.Process(a, b, joint)
	return g
}

// Process (re)binds the joint in both primitives' current shapes.
func (g *Group) Process(a, b primitive.Primitive, joint r3.Vec) {
	g.a, g.b = a, b
	g.ca = a.GetCoordinate(joint)
	g.cb = b.GetCoordinate(joint)
	g.joint = joint
}

// Joint returns the position the group was bound at.
func (g *Group) Joint() r3.Vec { return g.joint }

// Members returns the ids of both sides.
func (g *Group) Members() [2]string {
	return [2]string{g.a.ID(), g.b.ID()}
}

// Has reports whether id is one of the sides.
func (g *Group) Has(id string) bool {
	return g.a.ID() == id || g.b.ID() == id
}

// Positions returns the joint as currently reconstructed by each side.
func (g *Group) Positions() (r3.Vec, r3.Vec) {
	return g.a.FromCoordinate(g.ca), g.b.FromCoordinate(g.cb)
}

// Gap is the distance between the two reconstructed joint positions.
func (g *Group) Gap() float64 {
	pa, pb := g.Positions()
	return r3.Norm(r3.Sub(pa, pb))
}

// Regroup moves the non-frozen side so that its joint lands on the frozen
// side's, then pins it there. Nothing happens unless exactly one side is
// frozen. It returns the ids of the primitives it moved.
func (g *Group) Regroup() []string {
	if g.a.Frozen() == g.b.Frozen() {
		return nil
	}
	frozen, fc := g.a, g.ca
	moving, mc := g.b, &g.cb
	if !frozen.Frozen() {
		frozen, fc = g.b, g.cb
		moving, mc = g.a, &g.ca
	}

	newPos := frozen.FromCoordinate(fc)
	oldPos := moving.FromCoordinate(*mc)
	moving.MovePoint(oldPos, r3.Sub(newPos, oldPos))
	*mc = moving.GetCoordinate(newPos)
	moving.AddFixedPoint(newPos)

	primitive.Logger().Debug("joint regrouped",
		"frozen", frozen.ID(),
		"moved", moving.ID(),
		"shift", r3.Norm(r3.Sub(newPos, oldPos)))
	return []string{moving.ID()}
}

func (g *Group) String() string {
	return fmt.Sprintf("joint(%s, %s @ %.3g %.3g %.3g)", g.a.ID(), g.b.ID(), g.joint.X, g.joint.Y, g.joint.Z)
}
