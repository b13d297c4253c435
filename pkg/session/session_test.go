package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/tessellate"
)

// stacked returns a session with two unit tubes meeting at z = 10.
func stacked(t *testing.T) *Session {
	t.Helper()
	s := New(primitive.DefaultConfig())
	for _, tc := range []struct {
		id string
		z0 float64
	}{{"a", 0}, {"b", 10}} {
		m, err := tessellate.Tube(1, 10, 21, 16)
		require.NoError(t, err)
		m.Translate(r3.Vec{Z: tc.z0})

		var b strings.Builder
		b.WriteString("1 1.3 6 1.3 10\n")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&b, "0 0 %v\n", tc.z0+10*float64(i)/9)
		}
		b.WriteString(strings.Repeat("1 ", 10))
		g, err := primitive.Load(strings.NewReader(b.String()), m, r3.Vec{}, 1, tc.id, s.Config())
		require.NoError(t, err)
		require.NoError(t, s.Add(g))
	}
	return s
}

func TestRegistry(t *testing.T) {
	s := stacked(t)
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, 2, s.Len())

	a, err := s.Primitive("a")
	require.NoError(t, err)
	assert.Error(t, s.Add(a))

	_, err = s.Primitive("zz")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Select("zz"), ErrNotFound))

	_, err = s.Selected()
	assert.True(t, errors.Is(err, ErrNoSelection))
	assert.True(t, errors.Is(s.SelectPart(0), ErrNoSelection))
	assert.True(t, errors.Is(s.ScaleSelected(true), ErrNoSelection))
	_, err = s.MoveSelected(r3.Vec{})
	assert.True(t, errors.Is(err, ErrNoSelection))
}

func TestFitAddsPrimitive(t *testing.T) {
	s := New(primitive.DefaultConfig())
	m, err := tessellate.Tube(1, 10, 21, 16)
	require.NoError(t, err)

	g, err := s.Fit("tube", m)
	require.NoError(t, err)
	assert.True(t, g.Fitted())
	assert.Equal(t, []string{"tube"}, s.IDs())
	assert.Greater(t, s.Volumes()["tube"], 0.0)

	_, err = s.Fit("tube", m)
	assert.Error(t, err)
}

func TestFindJoints(t *testing.T) {
	s := stacked(t)
	assert.Equal(t, 1, s.FindJoints(0.1))
	require.Len(t, s.Groups(), 1)

	g := s.Groups()[0]
	assert.Equal(t, [2]string{"a", "b"}, g.Members())
	assert.InDelta(t, 10, g.Joint().Z, 1e-12)
	assert.InDelta(t, 0, g.Gap(), 1e-9)

	far := stacked(t)
	b, err := far.Primitive("b")
	require.NoError(t, err)
	b.(*primitive.GCylinder).Translate(r3.Vec{X: 5})
	assert.Equal(t, 0, far.FindJoints(0.1))
}

func TestJoinRejectsBadPairs(t *testing.T) {
	s := stacked(t)
	_, err := s.Join("a", "a", r3.Vec{})
	assert.Error(t, err)
	_, err = s.Join("a", "zz", r3.Vec{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMoveSelectedPropagatesThroughJoint(t *testing.T) {
	s := stacked(t)
	require.Equal(t, 1, s.FindJoints(0.1))
	require.NoError(t, s.Select("a"))
	require.NoError(t, s.SelectPart(9))
	assert.Error(t, s.SelectPart(10))

	pos, err := s.SelectedPartPos()
	require.NoError(t, err)
	assert.InDelta(t, 10, pos.Z, 1e-12)

	moved, err := s.MoveSelected(r3.Vec{Y: 2, Z: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, moved)

	pos, err = s.SelectedPartPos()
	require.NoError(t, err)
	assert.InDelta(t, 2, pos.Y, 1e-12)
	assert.InDelta(t, 0, s.Groups()[0].Gap(), 1e-9)

	for _, id := range s.IDs() {
		p, err := s.Primitive(id)
		require.NoError(t, err)
		assert.False(t, p.Frozen(), id)
	}
}

func TestPropagateWithoutFrozenSideIsIdle(t *testing.T) {
	s := stacked(t)
	require.Equal(t, 1, s.FindJoints(0.1))
	assert.Empty(t, s.Propagate())
}

func TestSnapshotRestore(t *testing.T) {
	s := stacked(t)
	require.Equal(t, 1, s.FindJoints(0.1))
	before := make(map[string][]r3.Vec)
	for _, id := range s.IDs() {
		p, err := s.Primitive(id)
		require.NoError(t, err)
		before[id] = p.Points()
	}
	snap := s.Snapshot()

	require.NoError(t, s.Select("a"))
	require.NoError(t, s.SelectPart(9))
	require.NoError(t, s.ScaleSelected(true))
	_, err := s.MoveSelected(r3.Vec{X: 1, Z: 11})
	require.NoError(t, err)

	require.NoError(t, s.Restore(snap))
	for _, id := range s.IDs() {
		p, err := s.Primitive(id)
		require.NoError(t, err)
		for i, q := range p.Points() {
			assert.InDelta(t, 0, r3.Norm(r3.Sub(before[id][i], q)), 1e-12, "%s point %d", id, i)
		}
	}

	bad := ShapeState{Geometry: map[string]primitive.GeometryState{"zz": {}}}
	assert.True(t, errors.Is(s.Restore(bad), ErrNotFound))
}

func TestScaleSelected(t *testing.T) {
	s := stacked(t)
	require.NoError(t, s.Select("b"))
	require.NoError(t, s.SelectPart(4))
	p, err := s.Selected()
	require.NoError(t, err)
	g := p.(*primitive.GCylinder)

	require.NoError(t, s.ScaleSelected(true))
	assert.InDelta(t, 1.3, g.Cylinder().Radii()[4], 1e-12)
	require.NoError(t, s.ScaleSelected(false))
	assert.InDelta(t, 1, g.Cylinder().Radii()[4], 1e-12)
}

func TestMeshes(t *testing.T) {
	s := stacked(t)
	meshes := s.Meshes()
	require.Len(t, meshes, 2)
	assert.Equal(t, "a", meshes[0].PartName)
	assert.Equal(t, colorPalette[1], meshes[1].Color)
	assert.Len(t, meshes[0].Vertices, 3*(21*16+2))
	assert.Len(t, meshes[0].Normals, len(meshes[0].Vertices))
	assert.Len(t, meshes[0].Indices, 3*(2*20*16+2*16))

	data, err := json.Marshal(meshes[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"partName":"a"`)
}
