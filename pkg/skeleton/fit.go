package skeleton

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options tunes spine fitting. Zero fields take the DefaultOptions value.
type Options struct {
	Samples        int // minimum number of spine points
	Bins           int // level sets for extraction; zero means Samples
	SmoothPasses   int
	RecenterPasses int
	RefinePasses   int
	DefaultRadius  float64
	Logger         *slog.Logger
}

// DefaultOptions returns the options used by primitive fitting.
func DefaultOptions() Options {
	return Options{
		Samples:        10,
		SmoothPasses:   3,
		RecenterPasses: 3,
		RefinePasses:   2,
		DefaultRadius:  gc.DefaultRadius,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Samples <= 0 {
		o.Samples = d.Samples
	}
	if o.Bins <= 0 {
		o.Bins = o.Samples
	}
	if o.SmoothPasses < 0 {
		o.SmoothPasses = 0
	}
	if o.RecenterPasses <= 0 {
		o.RecenterPasses = d.RecenterPasses
	}
	if o.RefinePasses <= 0 {
		o.RefinePasses = d.RefinePasses
	}
	if o.DefaultRadius <= 0 {
		o.DefaultRadius = d.DefaultRadius
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Spine is the result of fitting: the raw skeleton path, the refined
// spine points and one radius per point.
type Spine struct {
	Path   []r3.Vec
	Points []r3.Vec
	Radii  []float64
}

// Fit extracts the skeleton of m and refines its longest path into a
// spine of at least opts.Samples points.
func Fit(m *mesh.Mesh, opts Options) (*Spine, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	sk, err := Extract(m, opts.Bins)
	if err != nil {
		return nil, err
	}
	raw := sk.LongestPath()
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: skeleton has a single node", ErrDegenerate)
	}
	log.Debug("skeleton extracted", "nodes", len(sk.Nodes), "path", len(raw), "extent", sk.Extent)

	n := max(len(raw), opts.Samples)
	s := newSurface(m)
	pts := Smooth(Resample(raw, n), opts.SmoothPasses)
	pts = s.recenter(pts, opts.RecenterPasses)
	for pass := 0; pass < opts.RefinePasses; pass++ {
		reach := maxFinite(s.radii(pts), opts.DefaultRadius)
		pts = s.placeEnds(pts, reach)
		pts = s.recenter(Resample(pts, n), opts.RecenterPasses)
	}

	radii := s.radii(pts)
	fillRadii(pts, radii, m.Index(), opts.DefaultRadius, log)
	log.Debug("spine fitted", "points", len(pts))
	return &Spine{Path: raw, Points: pts, Radii: radii}, nil
}

// Resample returns n points spaced uniformly by arc length along pts.
func Resample(pts []r3.Vec, n int) []r3.Vec {
	if len(pts) == 0 || n <= 0 {
		return nil
	}
	if len(pts) == 1 || n == 1 {
		out := make([]r3.Vec, n)
		for i := range out {
			out[i] = pts[0]
		}
		return out
	}
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	total := cum[len(cum)-1]
	out := make([]r3.Vec, n)
	seg := 1
	for k := range out {
		at := total * float64(k) / float64(n-1)
		for seg < len(pts)-1 && cum[seg] < at {
			seg++
		}
		span := cum[seg] - cum[seg-1]
		var t float64
		if span > 0 {
			t = (at - cum[seg-1]) / span
		}
		out[k] = r3.Add(pts[seg-1], r3.Scale(t, r3.Sub(pts[seg], pts[seg-1])))
	}
	return out
}

// Smooth applies passes of a [1/4 1/2 1/4] filter, keeping both
// endpoints fixed.
func Smooth(pts []r3.Vec, passes int) []r3.Vec {
	cur := append([]r3.Vec(nil), pts...)
	for p := 0; p < passes; p++ {
		next := append([]r3.Vec(nil), cur...)
		for i := 1; i < len(cur)-1; i++ {
			next[i] = r3.Add(r3.Add(r3.Scale(0.25, cur[i-1]), r3.Scale(0.5, cur[i])), r3.Scale(0.25, cur[i+1]))
		}
		cur = next
	}
	return cur
}

// capAlignment excludes vertices whose normal is this aligned with the
// spine tangent, which are cap vertices rather than side wall.
const capAlignment = 0.5

// surface holds the mesh samples used by the slab estimators.
type surface struct {
	verts   []r3.Vec
	normals []r3.Vec
}

func newSurface(m *mesh.Mesh) *surface {
	return &surface{verts: m.Vertices, normals: m.VertexNormals()}
}

// slab returns the lateral offsets from c of the side-wall vertices within
// half-width w of the plane through c with normal t.
func (s *surface) slab(c, t r3.Vec, w float64) []r3.Vec {
	var out []r3.Vec
	for i, v := range s.verts {
		d := r3.Sub(v, c)
		a := r3.Dot(d, t)
		if math.Abs(a) > w {
			continue
		}
		if math.Abs(r3.Dot(s.normals[i], t)) >= capAlignment {
			continue
		}
		out = append(out, r3.Sub(d, r3.Scale(a, t)))
	}
	return out
}

// recenter moves interior points onto the lateral centroid of their slab.
// Endpoints are left for placeEnds.
func (s *surface) recenter(pts []r3.Vec, passes int) []r3.Vec {
	cur := append([]r3.Vec(nil), pts...)
	for p := 0; p < passes; p++ {
		tangents := gc.Tangents(cur)
		w := spacing(cur) / 2
		next := append([]r3.Vec(nil), cur...)
		for i := 1; i < len(cur)-1; i++ {
			off := s.slab(cur[i], tangents[i], w)
			if len(off) == 0 {
				continue
			}
			var sum r3.Vec
			for _, o := range off {
				sum = r3.Add(sum, o)
			}
			next[i] = r3.Add(cur[i], r3.Scale(1/float64(len(off)), sum))
		}
		cur = next
	}
	return cur
}

// placeEnds puts each endpoint on the line through its two inner
// neighbours, at the farthest extent of the surface along that line
// among vertices within 2*reach of it.
func (s *surface) placeEnds(pts []r3.Vec, reach float64) []r3.Vec {
	out := append([]r3.Vec(nil), pts...)
	if len(pts) < 3 {
		return out
	}
	last := len(pts) - 1
	for _, e := range [][3]int{{0, 1, 2}, {last, last - 1, last - 2}} {
		end, in, in2 := e[0], e[1], e[2]
		d := r3.Sub(pts[in], pts[in2])
		if r3.Norm(d) == 0 {
			continue
		}
		t := r3.Unit(d)
		c := pts[in]
		var best float64
		for _, v := range s.verts {
			off := r3.Sub(v, c)
			a := r3.Dot(off, t)
			if a <= best {
				continue
			}
			if r3.Norm(r3.Sub(off, r3.Scale(a, t))) <= 2*reach {
				best = a
			}
		}
		out[end] = r3.Add(c, r3.Scale(best, t))
	}
	return out
}

// radii returns the median lateral slab distance at each point, NaN
// where the slab is empty.
func (s *surface) radii(pts []r3.Vec) []float64 {
	tangents := gc.Tangents(pts)
	w := spacing(pts) / 2
	out := make([]float64, len(pts))
	for i, c := range pts {
		off := s.slab(c, tangents[i], w)
		if len(off) == 0 {
			out[i] = math.NaN()
			continue
		}
		d := make([]float64, len(off))
		for j, o := range off {
			d[j] = r3.Norm(o)
		}
		sort.Float64s(d)
		out[i] = d[len(d)/2]
	}
	return out
}

// fillRadii replaces missing radii by interpolating the nearest valid
// neighbours, then by the distance to the nearest surface vertex, then
// by def.
func fillRadii(pts []r3.Vec, radii []float64, ix *mesh.Index, def float64, log *slog.Logger) {
	valid := func(r float64) bool { return !math.IsNaN(r) && r > 0 }
	orig := append([]float64(nil), radii...)
	for i := range radii {
		if valid(orig[i]) {
			continue
		}
		lo, hi := -1, -1
		for j := i - 1; j >= 0; j-- {
			if valid(orig[j]) {
				lo = j
				break
			}
		}
		for j := i + 1; j < len(orig); j++ {
			if valid(orig[j]) {
				hi = j
				break
			}
		}
		switch {
		case lo >= 0 && hi >= 0:
			t := float64(i-lo) / float64(hi-lo)
			radii[i] = orig[lo] + t*(orig[hi]-orig[lo])
		case lo >= 0:
			radii[i] = orig[lo]
		case hi >= 0:
			radii[i] = orig[hi]
		default:
			radii[i] = def
			if id, p := ix.Nearest(pts[i]); id >= 0 {
				if d := r3.Norm(r3.Sub(p, pts[i])); d > 0 {
					radii[i] = d
				}
			}
			log.Warn("radius estimate fell back", "index", i, "radius", radii[i])
			continue
		}
		log.Debug("radius interpolated", "index", i, "radius", radii[i])
	}
}

func spacing(pts []r3.Vec) float64 {
	if len(pts) < 2 {
		return 0
	}
	var l float64
	for i := 1; i < len(pts); i++ {
		l += r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	return l / float64(len(pts)-1)
}

func maxFinite(xs []float64, def float64) float64 {
	best := math.Inf(-1)
	for _, x := range xs {
		if !math.IsNaN(x) && x > best {
			best = x
		}
	}
	if math.IsInf(best, -1) {
		return def
	}
	return best
}
