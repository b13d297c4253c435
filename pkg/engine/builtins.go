package engine

import (
	"fmt"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/session"
)

type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// builtins binds the script functions to one session and report.
type builtins struct {
	sess *session.Session
	rep  *Report
}

// registerBuiltins installs the edit builtins into a zygomys environment.
// Names use underscores because zygomys does not allow hyphens in
// identifiers; preprocessSource turns move-curve into move_curve.
func registerBuiltins(env *zygo.Zlisp, s *session.Session, rep *Report) {
	b := &builtins{sess: s, rep: rep}
	for _, f := range []struct {
		name string
		fn   builtinFunc
	}{
		{"vec3", b.vec3},
		{"select_primitive", b.selectPrimitive},
		{"select_part", b.selectPart},
		{"move_selected", b.moveSelected},
		{"grow", b.scaleSelected(true)},
		{"shrink", b.scaleSelected(false)},
		{"move_curve", b.moveCurve},
		{"scale_curve", b.scaleCurve},
		{"translate", b.translate},
		{"move_point", b.movePoint},
		{"fix_point", b.fixPoint},
		{"clear_fixed", b.clearFixed},
		{"symmetry", b.symmetry},
		{"freeze", b.freeze(true)},
		{"unfreeze", b.freeze(false)},
		{"joint", b.joint},
		{"find_joints", b.findJoints},
		{"propagate", b.propagate},
		{"volume", b.volume},
		{"sections", b.sections},
		{"radius", b.radius},
		{"spine_point", b.spinePoint},
	} {
		env.AddFunction(f.name, f.fn)
	}
}

func (b *builtins) record(op, target string) {
	b.rep.Edits = append(b.rep.Edits, Edit{Op: op, Target: target})
}

func arity(name string, args []zygo.Sexp, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s requires exactly %d arguments, got %d", name, n, len(args))
	}
	return nil
}

// gcylinder resolves a primitive id argument.
func (b *builtins) gcylinder(name string, s zygo.Sexp) (*primitive.GCylinder, error) {
	id, err := toString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: primitive: %w", name, err)
	}
	p, err := b.sess.Primitive(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	g, ok := p.(*primitive.GCylinder)
	if !ok {
		return nil, fmt.Errorf("%s: %q is a %s, not a generalized cylinder", name, id, p.Kind())
	}
	return g, nil
}

// (vec3 1 2 3)
func (b *builtins) vec3(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 3); err != nil {
		return zygo.SexpNull, err
	}
	var xyz [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		f, err := toFloat64(args[i])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
		}
		xyz[i] = f
	}
	v := &sexpVec3{}
	v.vec.X, v.vec.Y, v.vec.Z = xyz[0], xyz[1], xyz[2]
	return v, nil
}

// (select-primitive "arm")
func (b *builtins) selectPrimitive(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 1); err != nil {
		return zygo.SexpNull, err
	}
	id, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
	}
	return zygo.SexpNull, b.sess.Select(id)
}

// (select-part 3)
func (b *builtins) selectPart(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 1); err != nil {
		return zygo.SexpNull, err
	}
	cid, err := toInt(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
	}
	return zygo.SexpNull, b.sess.SelectPart(cid)
}

// (move-selected (vec3 0 1 10))
func (b *builtins) moveSelected(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 1); err != nil {
		return zygo.SexpNull, err
	}
	pos, err := toVec3(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
	}
	sel, err := b.sess.Selected()
	if err != nil {
		return zygo.SexpNull, err
	}
	moved, err := b.sess.MoveSelected(pos)
	if err != nil {
		return zygo.SexpNull, err
	}
	b.record("move-selected", sel.ID())
	for _, id := range moved {
		b.record("propagate", id)
	}
	return &zygo.SexpInt{Val: int64(len(moved))}, nil
}

// (grow) and (shrink)
func (b *builtins) scaleSelected(up bool) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, 0); err != nil {
			return zygo.SexpNull, err
		}
		sel, err := b.sess.Selected()
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := b.sess.ScaleSelected(up); err != nil {
			return zygo.SexpNull, err
		}
		b.record(name, sel.ID())
		return zygo.SexpNull, nil
	}
}

// (move-curve "arm" 5 (vec3 1 0 0) :start 2 :finish 8)
func (b *builtins) moveCurve(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) != 3 {
		return zygo.SexpNull, fmt.Errorf("move-curve requires a primitive, a cross-section and an offset")
	}
	g, err := b.gcylinder("move-curve", pa.positional[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	cid, err := toInt(pa.positional[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("move-curve: cross-section: %w", err)
	}
	delta, err := toVec3(pa.positional[2])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("move-curve: offset: %w", err)
	}
	start, finish := 0, -1
	if v, ok := pa.kw["start"]; ok {
		if start, err = toInt(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("move-curve: start: %w", err)
		}
	}
	if v, ok := pa.kw["finish"]; ok {
		if finish, err = toInt(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("move-curve: finish: %w", err)
		}
	}
	g.MoveCurveCenterRanged(cid, delta, start, finish)
	b.record("move-curve", g.ID())
	return zygo.SexpNull, nil
}

// (scale-curve "arm" 5 1.5)
func (b *builtins) scaleCurve(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 3); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder("scale-curve", args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	cid, err := toInt(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("scale-curve: cross-section: %w", err)
	}
	f, err := toFloat64(args[2])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("scale-curve: factor: %w", err)
	}
	g.ScaleCurve(cid, f)
	b.record("scale-curve", g.ID())
	return zygo.SexpNull, nil
}

// (translate "arm" (vec3 0 0 5))
func (b *builtins) translate(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 2); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder(name, args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	d, err := toVec3(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
	}
	g.Translate(d)
	b.record("translate", g.ID())
	return zygo.SexpNull, nil
}

// (move-point "arm" (vec3 1 0 5) (vec3 0 2 0))
func (b *builtins) movePoint(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity("move-point", args, 3); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder("move-point", args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	p, err := toVec3(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("move-point: point: %w", err)
	}
	d, err := toVec3(args[2])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("move-point: offset: %w", err)
	}
	g.MovePoint(p, d)
	b.record("move-point", g.ID())
	return zygo.SexpNull, nil
}

// (fix-point "arm" (vec3 0 0 0))
func (b *builtins) fixPoint(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity("fix-point", args, 2); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder("fix-point", args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	p, err := toVec3(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("fix-point: %w", err)
	}
	g.AddFixedPoint(p)
	b.record("fix-point", g.ID())
	return zygo.SexpNull, nil
}

// (clear-fixed "arm")
func (b *builtins) clearFixed(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity("clear-fixed", args, 1); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder("clear-fixed", args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	g.ClearFixedPoints()
	b.record("clear-fixed", g.ID())
	return zygo.SexpNull, nil
}

// (symmetry "arm" 1)
func (b *builtins) symmetry(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 2); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder(name, args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	n, err := toInt(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("symmetry: %w", err)
	}
	g.SetSymmetryPlanes(n)
	b.record("symmetry", g.ID())
	return zygo.SexpNull, nil
}

// (freeze "arm") and (unfreeze "arm")
func (b *builtins) freeze(frozen bool) builtinFunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := arity(name, args, 1); err != nil {
			return zygo.SexpNull, err
		}
		g, err := b.gcylinder(name, args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		g.SetFrozen(frozen)
		return zygo.SexpNull, nil
	}
}

// (joint "arm" "hand" (vec3 0 0 10))
func (b *builtins) joint(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 3); err != nil {
		return zygo.SexpNull, err
	}
	ida, err := toString(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("joint: first primitive: %w", err)
	}
	idb, err := toString(args[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("joint: second primitive: %w", err)
	}
	at, err := toVec3(args[2])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("joint: position: %w", err)
	}
	if _, err := b.sess.Join(ida, idb, at); err != nil {
		return zygo.SexpNull, err
	}
	return zygo.SexpNull, nil
}

// (find-joints 0.1)
func (b *builtins) findJoints(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity("find-joints", args, 1); err != nil {
		return zygo.SexpNull, err
	}
	tol, err := toFloat64(args[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("find-joints: threshold: %w", err)
	}
	return &zygo.SexpInt{Val: int64(b.sess.FindJoints(tol))}, nil
}

// (propagate)
func (b *builtins) propagate(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 0); err != nil {
		return zygo.SexpNull, err
	}
	moved := b.sess.Propagate()
	for _, id := range moved {
		b.record("propagate", id)
	}
	return &zygo.SexpInt{Val: int64(len(moved))}, nil
}

// (volume "arm")
func (b *builtins) volume(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 1); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder(name, args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpFloat{Val: g.Volume()}, nil
}

// (sections "arm")
func (b *builtins) sections(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 1); err != nil {
		return zygo.SexpNull, err
	}
	g, err := b.gcylinder(name, args[0])
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpInt{Val: int64(g.Cylinder().Len())}, nil
}

// (radius "arm" 5)
func (b *builtins) radius(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity(name, args, 2); err != nil {
		return zygo.SexpNull, err
	}
	g, cid, err := b.section(name, args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &zygo.SexpFloat{Val: g.Cylinder().Sections[cid].Circle.Radius}, nil
}

// (spine-point "arm" 5)
func (b *builtins) spinePoint(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if err := arity("spine-point", args, 2); err != nil {
		return zygo.SexpNull, err
	}
	g, cid, err := b.section("spine-point", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	return &sexpVec3{vec: g.Cylinder().Sections[cid].Frame.Point}, nil
}

// section resolves a (primitive, cross-section) argument pair.
func (b *builtins) section(name string, args []zygo.Sexp) (*primitive.GCylinder, int, error) {
	g, err := b.gcylinder(name, args[0])
	if err != nil {
		return nil, 0, err
	}
	cid, err := toInt(args[1])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: cross-section: %w", name, err)
	}
	if n := g.Cylinder().Len(); cid < 0 || cid >= n {
		return nil, 0, fmt.Errorf("%s: cross-section %d out of range [0, %d)", name, cid, n)
	}
	return g, cid, nil
}
