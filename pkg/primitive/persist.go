package primitive

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/chazu/gcdeform/pkg/gc"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Save writes the primitive as a whitespace-separated token stream:
// fitted flag, cage scale, cage sides, delta scale, N, N spine points as
// x y z triples, and N radii.
func (g *GCylinder) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fitted := 0
	if g.fitted {
		fitted = 1
	}
	n := g.cyl.Len()
	fmt.Fprintf(bw, "%d %s %d %s\n%d\n", fitted, ftoa(g.cfg.CageScale), g.cfg.CageSides, ftoa(g.cfg.DeltaScale), n)
	for _, s := range g.cyl.Sections {
		p := s.Frame.Point
		fmt.Fprintf(bw, "%s %s %s\n", ftoa(p.X), ftoa(p.Y), ftoa(p.Z))
	}
	for i, s := range g.cyl.Sections {
		sep := " "
		if i == n-1 {
			sep = "\n"
		}
		fmt.Fprintf(bw, "%s%s", ftoa(s.Circle.Radius), sep)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("primitive %q: failed to save: %w", g.id, err)
	}
	return nil
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Load reads a stream written by Save and binds m to the result. Every
// spine point p becomes (p+translation)*scale and every radius is
// multiplied by scale. The cage settings in the stream override cfg.
func Load(r io.Reader, m *mesh.Mesh, translation r3.Vec, scale float64, id string, cfg Config) (*GCylinder, error) {
	if !positive(scale) {
		return nil, fmt.Errorf("primitive %q: load scale must be positive and finite, got %g", id, scale)
	}
	tok := newTokens(r)
	fitted, err := tok.int("fitted")
	if err != nil {
		return nil, err
	}
	if cfg.CageScale, err = tok.float("cage scale"); err != nil {
		return nil, err
	}
	if !positive(cfg.CageScale) {
		return nil, mismatch("cage scale", "positive finite", cfg.CageScale)
	}
	if cfg.CageSides, err = tok.int("cage sides"); err != nil {
		return nil, err
	}
	if cfg.DeltaScale, err = tok.float("delta scale"); err != nil {
		return nil, err
	}
	if !positive(cfg.DeltaScale) {
		return nil, mismatch("delta scale", "positive finite", cfg.DeltaScale)
	}
	n, err := tok.int("section count")
	if err != nil {
		return nil, err
	}
	if n < 2 || n > maxSections {
		return nil, mismatch("section count", fmt.Sprintf("between 2 and %d", maxSections), n)
	}

	pts := make([]r3.Vec, n)
	for i := range pts {
		var xyz [3]float64
		for k := range xyz {
			if xyz[k], err = tok.float(fmt.Sprintf("spine point %d", i)); err != nil {
				return nil, err
			}
		}
		p := r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return nil, mismatch(fmt.Sprintf("spine point %d", i), "finite coordinates", p)
		}
		pts[i] = r3.Scale(scale, r3.Add(p, translation))
	}
	radii := make([]float64, n)
	for i := range radii {
		r, err := tok.float(fmt.Sprintf("radius %d", i))
		if err != nil {
			return nil, err
		}
		if !positive(r) {
			return nil, mismatch(fmt.Sprintf("radius %d", i), "positive finite", r)
		}
		radii[i] = r * scale
	}
	if extra, ok := tok.next(); ok {
		return nil, mismatch("end of stream", "no more tokens", strconv.Quote(extra))
	}
	if err := tok.err(); err != nil {
		return nil, fmt.Errorf("primitive %q: failed to read: %w", id, err)
	}

	g, err := New(id, m, cfg)
	if err != nil {
		return nil, err
	}
	cyl, err := gc.New(pts, nil)
	if err != nil {
		return nil, err
	}
	for i := range cyl.Sections {
		cyl.Sections[i].Circle.Radius = radii[i]
		cyl.Sections[i].OrigRadius = radii[i]
	}
	if err := g.bind(cyl); err != nil {
		return nil, fmt.Errorf("primitive %q: %w", id, err)
	}
	g.fitted = fitted != 0
	Logger().Info("primitive loaded", "primitive", id, "sections", n, "scale", scale)
	return g, nil
}

// maxSections bounds the section count read from a stream before any
// allocation is sized by it.
const maxSections = 1 << 16

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func positive(f float64) bool { return finite(f) && f > 0 }

// tokens reads whitespace-separated words.
type tokens struct {
	sc *bufio.Scanner
}

func newTokens(r io.Reader) *tokens {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokens{sc: sc}
}

func (t *tokens) next() (string, bool) {
	if !t.sc.Scan() {
		return "", false
	}
	return t.sc.Text(), true
}

func (t *tokens) err() error {
	return t.sc.Err()
}

func (t *tokens) float(field string) (float64, error) {
	s, ok := t.next()
	if !ok {
		return 0, mismatch(field, "a number", "end of stream")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, mismatch(field, "a number", strconv.Quote(s))
	}
	return f, nil
}

func (t *tokens) int(field string) (int, error) {
	s, ok := t.next()
	if !ok {
		return 0, mismatch(field, "an integer", "end of stream")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, mismatch(field, "an integer", strconv.Quote(s))
	}
	return v, nil
}
