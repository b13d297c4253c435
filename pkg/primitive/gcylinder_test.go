package primitive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/gcdeform/pkg/cage"
	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/skeleton"
	"github.com/chazu/gcdeform/pkg/tessellate"
)

// straightStream is a saved ten-section unit cylinder along +Z.
func straightStream() string {
	var b strings.Builder
	b.WriteString("1 1.3 6 1.3\n10\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "0 0 %s\n", ftoa(10*float64(i)/9))
	}
	b.WriteString(strings.TrimSpace(strings.Repeat("1 ", 10)))
	return b.String()
}

func loadTube(t *testing.T, cfg Config) *GCylinder {
	t.Helper()
	m, err := tessellate.Tube(1, 10, 21, 16)
	require.NoError(t, err)
	g, err := Load(strings.NewReader(straightStream()), m, r3.Vec{}, 1, "tube", cfg)
	require.NoError(t, err)
	return g
}

func assertVecNear(t *testing.T, want, got r3.Vec, tol float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, 0, r3.Norm(r3.Sub(want, got)), tol, msgAndArgs...)
}

func assertSectionsAligned(t *testing.T, g *GCylinder) {
	t.Helper()
	c := g.Cylinder()
	assert.Len(t, c.Frames(), c.Len())
	assert.Len(t, c.Circles(), c.Len())
	assert.Len(t, g.Points(), cage.VertexCount(c.Len(), g.Config().CageSides))
	for i, s := range c.Sections {
		assert.Equal(t, i, s.Circle.Index)
		assert.Equal(t, s.Frame.Point, s.Circle.Center)
	}
}

func TestFitTubeEndToEnd(t *testing.T) {
	m, err := tessellate.Tube(1, 10, 41, 32)
	require.NoError(t, err)

	g, err := NewFitted("tube", m, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, g.Fitted())
	assert.Equal(t, KindGCylinder, g.Kind())
	assert.Equal(t, 10, g.Cylinder().Len())
	assert.Len(t, g.Points(), 2+10*6)
	assert.InEpsilon(t, tessellate.TubeVolume(1, 10), g.Cylinder().Volume(), 0.05)
	assert.Greater(t, g.Volume(), 0.0)
	assertSectionsAligned(t, g)
}

func TestFitGreenBindsMesh(t *testing.T) {
	m, err := tessellate.Tube(1, 10, 21, 16)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Deformer = "green"
	g, err := NewFitted("tube", m, cfg)
	require.NoError(t, err)

	orig := append([]r3.Vec(nil), m.Vertices...)
	d := r3.Vec{X: 1, Y: 2, Z: 3}
	g.Translate(d)
	for i, v := range m.Vertices {
		if orig[i].Z < 2 || orig[i].Z > 8 {
			continue
		}
		assertVecNear(t, r3.Add(orig[i], d), v, 1e-6, "vertex %d", i)
	}
}

func TestFitFailures(t *testing.T) {
	collapsed := mesh.New("dot", []r3.Vec{{X: 1}, {X: 1}, {X: 1}}, []mesh.Face{{0, 1, 2}})
	tests := []struct {
		name       string
		m          *mesh.Mesh
		degenerate bool
	}{
		{"no mesh", nil, false},
		{"empty mesh", mesh.New("empty", nil, nil), true},
		{"collapsed", collapsed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New("seg", tt.m, DefaultConfig())
			require.NoError(t, err)
			err = g.Fit()
			require.Error(t, err)

			var fe *FittingError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "seg", fe.Segment)
			assert.Equal(t, tt.degenerate, errors.Is(err, skeleton.ErrDegenerate))
			assert.False(t, g.Fitted())
			assert.Nil(t, g.Cylinder())
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CageSides = 2
	cfg.Deformer = "mls"
	_, err := New("seg", nil, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cage_sides")
	assert.Contains(t, err.Error(), "deformer")
}

func TestScaleCurve(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	before := g.Cylinder().Radii()
	verts := append([]r3.Vec(nil), g.Mesh().Vertices...)

	g.ScaleCurve(5, 1.0)
	assert.InDeltaSlice(t, before, g.Cylinder().Radii(), 1e-12)
	for i, v := range g.Mesh().Vertices {
		assertVecNear(t, verts[i], v, 1e-9)
	}

	g.ScaleCurve(5, 2)
	r := g.Cylinder().Radii()
	assert.InDelta(t, 2, r[5], 1e-12)
	assert.InDelta(t, 1+math.Exp(-math.Pi/36), r[4], 1e-12)
	assert.InDelta(t, 1+math.Exp(-math.Pi/36), r[6], 1e-12)
	assert.InDelta(t, 1+math.Exp(-math.Pi*25/36), r[0], 1e-12)
	assert.Equal(t, 2.0, g.Cylinder().Sections[5].Scale)

	g.ScaleCurve(5, 0.5)
	assert.InDeltaSlice(t, before, g.Cylinder().Radii(), 1e-12)
	assertSectionsAligned(t, g)

	g.ScaleCurve(5, -1)
	g.ScaleCurve(42, 2)
	assert.InDeltaSlice(t, before, g.Cylinder().Radii(), 1e-12)
}

func TestScaleCurveUsesSelection(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	require.NoError(t, g.Select(3))
	g.ScaleCurve(-1, 1.5)
	assert.Equal(t, 1.5, g.Cylinder().Sections[3].Scale)
	assert.Error(t, g.Select(10))
}

func TestMoveCurveCenter(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	g.MoveCurveCenter(5, r3.Vec{X: 1})
	pts := g.SpinePoints()
	assert.InDelta(t, 1, pts[5].X, 1e-12)
	assert.InDelta(t, math.Exp(-math.Pi*25/81), pts[0].X, 1e-12)
	assert.InDelta(t, math.Exp(-math.Pi*16/81), pts[9].X, 1e-12)
	assertSectionsAligned(t, g)
}

func TestMoveCurveCenterRangedEmptyRange(t *testing.T) {
	tests := []struct {
		name          string
		start, finish int
	}{
		{"equal", 4, 4},
		{"inverted", 6, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := loadTube(t, DefaultConfig())
			before := g.Points()
			g.MoveCurveCenterRanged(5, r3.Vec{X: 3}, tt.start, tt.finish)
			assert.Equal(t, before, g.Points())
		})
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	spine := g.SpinePoints()
	cagePts := g.Points()
	verts := append([]r3.Vec(nil), g.Mesh().Vertices...)

	d := r3.Vec{X: 3, Y: -2, Z: 0.5}
	g.Translate(d)
	for i, p := range g.SpinePoints() {
		assertVecNear(t, r3.Add(spine[i], d), p, 1e-12)
	}
	g.Translate(r3.Scale(-1, d))
	for i, p := range g.SpinePoints() {
		assertVecNear(t, spine[i], p, 1e-12)
	}
	for i, p := range g.Points() {
		assertVecNear(t, cagePts[i], p, 1e-9)
	}
	for i, v := range g.Mesh().Vertices {
		assertVecNear(t, verts[i], v, 1e-9)
	}
}

func TestMovePointWithoutConstraintsTranslates(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	verts := append([]r3.Vec(nil), g.Mesh().Vertices...)
	d := r3.Vec{Y: 2}
	g.MovePoint(r3.Vec{X: 1, Z: 5}, d)
	for i, v := range g.Mesh().Vertices {
		assertVecNear(t, r3.Add(verts[i], d), v, 1e-9)
	}
}

func TestMovePointAboutJoint(t *testing.T) {
	t.Run("quarter turn", func(t *testing.T) {
		g := loadTube(t, DefaultConfig())
		verts := append([]r3.Vec(nil), g.Mesh().Vertices...)
		g.AddFixedPoint(r3.Vec{})
		g.MovePoint(r3.Vec{Z: 10}, r3.Vec{X: 10, Z: -10})

		pts := g.SpinePoints()
		assertVecNear(t, r3.Vec{}, pts[0], 1e-9)
		assertVecNear(t, r3.Vec{X: 10}, pts[9], 1e-9)
		assert.InDeltaSlice(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, g.Cylinder().Radii(), 1e-12)
		for i, v := range g.Mesh().Vertices {
			o := verts[i]
			assertVecNear(t, r3.Vec{X: o.Z, Y: o.Y, Z: -o.X}, v, 1e-9, "vertex %d", i)
		}
	})
	t.Run("stretch", func(t *testing.T) {
		g := loadTube(t, DefaultConfig())
		g.AddFixedPoint(r3.Vec{})
		g.MovePoint(r3.Vec{Z: 10}, r3.Vec{Z: 5})
		assertVecNear(t, r3.Vec{Z: 15}, g.SpinePoints()[9], 1e-9)
	})
	t.Run("reversal", func(t *testing.T) {
		g := loadTube(t, DefaultConfig())
		g.AddFixedPoint(r3.Vec{})
		g.MovePoint(r3.Vec{Z: 10}, r3.Vec{Z: -20})
		assertVecNear(t, r3.Vec{Z: -10}, g.SpinePoints()[9], 1e-9)
		assertSectionsAligned(t, g)
	})
	t.Run("through the joint", func(t *testing.T) {
		g := loadTube(t, DefaultConfig())
		before := g.Points()
		g.DeformRespectToJoint(r3.Vec{Z: 10}, r3.Vec{Z: 10}, r3.Vec{X: 1})
		assert.Equal(t, before, g.Points())
	})
}

func TestMovePointBetweenPins(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	before := g.SpinePoints()
	g.AddFixedPoint(before[2])
	g.AddFixedPoint(before[7])

	g.MovePoint(r3.Vec{X: 1, Z: before[5].Z}, r3.Vec{Y: 1})
	after := g.SpinePoints()
	assert.Equal(t, 5, g.Selected())
	for _, i := range []int{0, 1, 2, 7, 8, 9} {
		assert.Equal(t, before[i], after[i], "section %d moved", i)
	}
	assert.InDelta(t, 1, after[5].Y, 1e-12)
	for _, i := range []int{3, 4, 6} {
		assert.Greater(t, after[i].Y, 0.0, "section %d", i)
		assert.Less(t, after[i].Y, 1.0, "section %d", i)
	}

	t.Run("drag on a pin is ignored", func(t *testing.T) {
		cur := g.Points()
		g.MovePoint(r3.Vec{X: 1, Z: before[7].Z}, r3.Vec{Y: 1})
		assert.Equal(t, cur, g.Points())
	})
}

func TestMovePointWithSymmetryScales(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	g.SetSymmetryPlanes(1)
	require.Len(t, g.SymmetryPlanes(), 1)

	z := g.SpinePoints()[5].Z
	g.MovePoint(r3.Vec{X: 1, Z: z}, r3.Vec{X: 0.5, Z: 0.25})
	assert.Equal(t, 5, g.Selected())
	assert.InDelta(t, 1.5, g.Cylinder().Radii()[5], 1e-12)
	assert.InDelta(t, 0, g.SpinePoints()[5].X, 1e-12)

	g.SetSymmetryPlanes(0)
	assert.Empty(t, g.SymmetryPlanes())
}

func TestDetectHotCurve(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	require.NoError(t, g.Select(4))

	assert.Equal(t, NoHotCurve, g.DetectHotCurve(nil))
	assert.Equal(t, 4, g.Selected())

	samples := []r3.Vec{{X: 1, Z: 0}, {X: -1, Z: 2.3}}
	assert.Equal(t, 1, g.DetectHotCurve(samples))
	assertVecNear(t, g.SpinePoints()[1], g.SelectedPartPos(), 0)

	g.SetSymmetryPlanes(1)
	assert.Equal(t, 0, g.DetectHotCurve(samples))
	assert.Equal(t, 9, g.DetectHotCurvePoint(r3.Vec{Z: 50}))
}

func TestReshapeFromPoints(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	g.ScaleCurve(5, 2)
	radii := g.Cylinder().Radii()
	spine := g.SpinePoints()

	d := r3.Vec{Y: 1}
	pts := g.Points()
	for i := range pts {
		pts[i] = r3.Add(pts[i], d)
	}
	require.NoError(t, g.ReshapeFromPoints(pts))
	assert.InDeltaSlice(t, radii, g.Cylinder().Radii(), 1e-9)
	for i, p := range g.SpinePoints() {
		assertVecNear(t, r3.Add(spine[i], d), p, 1e-9)
	}

	g.ScaleCurve(5, 1)
	assert.InDeltaSlice(t, radii, g.Cylinder().Radii(), 1e-9)

	err := g.ReshapeFromPoints(pts[:10])
	var sm *StateMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "points", sm.Field)
}

func TestGeometryStateRestore(t *testing.T) {
	g := loadTube(t, DefaultConfig())
	snap := g.GeometryState()
	cagePts := g.Points()
	verts := append([]r3.Vec(nil), g.Mesh().Vertices...)

	g.ScaleCurve(3, 1.7)
	g.MoveCurveCenter(6, r3.Vec{X: 2})
	require.NotEqual(t, cagePts, g.Points())

	require.NoError(t, g.SetGeometryState(snap))
	for i, p := range g.Points() {
		assertVecNear(t, cagePts[i], p, 1e-12)
	}
	for i, v := range g.Mesh().Vertices {
		assertVecNear(t, verts[i], v, 1e-9)
	}

	short := GeometryState{Sections: snap.Sections[:3]}
	var sm *StateMismatchError
	assert.True(t, errors.As(g.SetGeometryState(short), &sm))

	clone := snap.Clone()
	clone.Sections[0].Circle.Radius = 9
	assert.Equal(t, 1.0, snap.Sections[0].Circle.Radius)
}

func TestCoordinatesAndQueries(t *testing.T) {
	for _, mode := range []string{"skinning", "green"} {
		t.Run(mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Deformer = mode
			g := loadTube(t, cfg)

			p := r3.Vec{X: 0.5, Y: -0.25, Z: 3}
			c := g.GetCoordinate(p)
			assertVecNear(t, p, g.FromCoordinate(c), 1e-6)

			g.Translate(r3.Vec{X: 1})
			assertVecNear(t, r3.Add(p, r3.Vec{X: 1}), g.FromCoordinate(c), 1e-6)

			// A point bound after an edit reconstructs where it was bound.
			q := r3.Vec{X: 1.25, Y: 0.25, Z: 6}
			c = g.GetCoordinate(q)
			assertVecNear(t, q, g.FromCoordinate(c), 1e-6)

			g.Translate(r3.Vec{Y: 2})
			assertVecNear(t, r3.Add(q, r3.Vec{Y: 2}), g.FromCoordinate(c), 1e-6)
		})
	}

	g := loadTube(t, DefaultConfig())
	axis := g.MajorAxis()
	require.Len(t, axis, 2)
	assertVecNear(t, r3.Vec{Z: 1}, axis[0], 1e-12)
	assertVecNear(t, r3.Vec{Z: 1}, axis[1], 1e-12)
	assertVecNear(t, r3.Vec{Z: -0.3}, g.ClosestPoint(r3.Vec{Z: -5}), 1e-12)
	assert.Len(t, g.Curves(), 10)
	assert.Len(t, g.Curves()[0], 6)
	assert.Greater(t, g.Volume(), g.Cylinder().Volume())

	assert.False(t, g.Frozen())
	g.SetFrozen(true)
	assert.True(t, g.Frozen())

	g.AddFixedPoint(r3.Vec{})
	assert.Len(t, g.FixedPoints(), 1)
	g.ClearFixedPoints()
	assert.Empty(t, g.FixedPoints())
}

func TestIgnoredEditsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	g := loadTube(t, DefaultConfig())
	g.MoveCurveCenterRanged(2, r3.Vec{X: 1}, 5, 5)
	assert.Contains(t, buf.String(), "empty move range ignored")
	assert.Contains(t, buf.String(), "primitive loaded")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestKindAndPlane(t *testing.T) {
	assert.Equal(t, "gcylinder", KindGCylinder.String())
	assert.Equal(t, "Kind(3)", Kind(3).String())

	pl := Plane{Normal: r3.Vec{Z: 1}, Point: r3.Vec{Z: 2}}
	assertVecNear(t, r3.Vec{X: 1, Y: 1, Z: 2}, pl.Project(r3.Vec{X: 1, Y: 1, Z: 7}), 1e-12)
}
