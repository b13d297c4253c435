package skeleton

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/tessellate"
)

func TestResample(t *testing.T) {
	tests := []struct {
		name string
		pts  []r3.Vec
		n    int
		want []float64 // X of each output point
	}{
		{"uneven input", []r3.Vec{{}, {X: 1}, {X: 3}}, 4, []float64{0, 1, 2, 3}},
		{"upsample segment", []r3.Vec{{}, {X: 2}}, 5, []float64{0, 0.5, 1, 1.5, 2}},
		{"single point", []r3.Vec{{X: 7}}, 3, []float64{7, 7, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(tt.pts, tt.n)
			require.Len(t, got, len(tt.want))
			for i, x := range tt.want {
				assert.InDelta(t, x, got[i].X, 1e-12, "point %d", i)
			}
		})
	}
	assert.Nil(t, Resample(nil, 4))
}

func TestSmoothKeepsEndpoints(t *testing.T) {
	pts := []r3.Vec{{}, {Y: 1}, {X: 2}, {X: 3, Y: -1}, {X: 4}}
	got := Smooth(pts, 3)
	require.Len(t, got, len(pts))
	assert.Equal(t, pts[0], got[0])
	assert.Equal(t, pts[4], got[4])
	assert.Less(t, math.Abs(got[1].Y), 1.0)

	line := Resample([]r3.Vec{{}, {Z: 4}}, 5)
	for i, p := range Smooth(line, 3) {
		assert.InDelta(t, 0, r3.Norm(r3.Sub(p, line[i])), 1e-12)
	}
}

func TestExtractTube(t *testing.T) {
	m, err := tessellate.Tube(1, 10, 41, 32)
	require.NoError(t, err)

	sk, err := Extract(m, 10)
	require.NoError(t, err)
	assert.Greater(t, len(sk.Nodes), 1)
	assert.NotEmpty(t, sk.Edges())
	assert.Greater(t, sk.Extent, 10.0)

	members := 0
	for i, n := range sk.Nodes {
		assert.Equal(t, i, n.ID)
		assert.GreaterOrEqual(t, n.Level, 0)
		assert.Less(t, n.Level, 10)
		members += len(n.Members)
	}
	assert.Equal(t, m.VertexCount(), members)

	path := sk.LongestPath()
	require.GreaterOrEqual(t, len(path), 2)
	span := math.Abs(path[len(path)-1].Z - path[0].Z)
	assert.Greater(t, span, 7.0)
}

func TestExtractDegenerate(t *testing.T) {
	tests := []struct {
		name string
		m    *mesh.Mesh
	}{
		{"nil", nil},
		{"empty", mesh.New("empty", nil, nil)},
		{"collapsed", mesh.New("dot", []r3.Vec{{X: 1}, {X: 1}, {X: 1}}, []mesh.Face{{0, 1, 2}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.m, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegenerate))

			_, err = Fit(tt.m, Options{})
			assert.True(t, errors.Is(err, ErrDegenerate))
		})
	}
}

func TestFitTube(t *testing.T) {
	m, err := tessellate.Tube(1, 10, 41, 32)
	require.NoError(t, err)

	sp, err := Fit(m, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, sp.Points, 10)
	require.Len(t, sp.Radii, 10)

	lo, hi := sp.Points[0].Z, sp.Points[9].Z
	if lo > hi {
		lo, hi = hi, lo
	}
	assert.InDelta(t, 0, lo, 0.25)
	assert.InDelta(t, 10, hi, 0.25)
	for i := 1; i < 9; i++ {
		p := sp.Points[i]
		assert.InDelta(t, 0, math.Hypot(p.X, p.Y), 0.1, "point %d off axis", i)
		assert.InDelta(t, 1, sp.Radii[i], 0.05, "radius %d", i)
	}

	c, err := gc.New(sp.Points, gc.Radii(sp.Radii))
	require.NoError(t, err)
	want := tessellate.TubeVolume(1, 10)
	assert.InEpsilon(t, want, c.Volume(), 0.05)
}

func TestFitBentTubeFollowsArc(t *testing.T) {
	m, err := tessellate.BentTube(1, 6, math.Pi/2, 40, 24)
	require.NoError(t, err)

	sp, err := Fit(m, DefaultOptions())
	require.NoError(t, err)
	for i := 1; i < len(sp.Points)-1; i++ {
		p := sp.Points[i]
		// Distance from the bend center stays near the bend radius.
		d := math.Hypot(p.X-6, p.Z)
		assert.InDelta(t, 6, d, 0.3, "point %d", i)
		assert.InDelta(t, 0, p.Y, 0.1, "point %d", i)
	}
}

func TestFillRadii(t *testing.T) {
	pts := []r3.Vec{{}, {Z: 1}, {Z: 2}, {Z: 3}}
	ix := mesh.NewIndex([]r3.Vec{{X: 2}})
	log := DefaultOptions().withDefaults().Logger

	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"interior gap", []float64{1, math.NaN(), math.NaN(), 4}, []float64{1, 2, 3, 4}},
		{"ends copy", []float64{math.NaN(), 2, 2, math.NaN()}, []float64{2, 2, 2, 2}},
		{"nearest surface", []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()},
			[]float64{2, math.Hypot(2, 1), math.Hypot(2, 2), math.Hypot(2, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]float64(nil), tt.in...)
			fillRadii(pts, got, ix, 0.5, log)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}

	got := []float64{math.NaN(), math.NaN()}
	fillRadii([]r3.Vec{{}, {Z: 1}}, got, mesh.NewIndex(nil), 0.5, log)
	assert.Equal(t, []float64{0.5, 0.5}, got)
}
