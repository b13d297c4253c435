package deform

import (
	"math"

	"github.com/chazu/gcdeform/pkg/cage"
	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	tiny = 1e-10
	// edgeTol is the relative size of the triple product below which a
	// point's projection is treated as lying on a face edge.
	edgeTol = 1e-9
)

// GreenDeformer implements Green coordinates (Lipman, Levin and
// Cohen-Or 2008). A coordinate holds one weight per cage vertex followed
// by one weight per cage face.
type GreenDeformer struct {
	binding
	cage  *cage.Cage
	orig  []r3.Vec
	faces []mesh.Face
}

var _ Deformer = (*GreenDeformer)(nil)

// NewGreen binds every vertex of target to k in its current state. A nil
// target creates an unbound deformer usable for single points.
func NewGreen(k *cage.Cage, target *mesh.Mesh, workers int) *GreenDeformer {
	g := &GreenDeformer{
		binding: binding{target: target, workers: workers},
		cage:    k,
		orig:    k.Points(),
		faces:   append([]mesh.Face(nil), k.Faces...),
	}
	g.bind(g.Coordinate)
	return g
}

// Mode returns Green.
func (g *GreenDeformer) Mode() Mode { return Green }

// Coordinate computes the Green coordinates of p against the cage as it
// was when the deformer was created.
func (g *GreenDeformer) Coordinate(p r3.Vec) Coordinate {
	return greenCoordinate(p, g.orig, g.faces)
}

// CurrentCoordinate computes the Green coordinates of p against the cage
// as it is now. The face terms are divided by the current stretch, which
// Reconstruct multiplies back in.
func (g *GreenDeformer) CurrentCoordinate(p r3.Vec) Coordinate {
	c := greenCoordinate(p, g.cage.Vertices, g.faces)
	_, stretch := g.faceTerms()
	psi := c[len(g.cage.Vertices):]
	for j, st := range stretch {
		if st > tiny {
			psi[j] /= st
		}
	}
	return c
}

// Reconstruct evaluates c against the current cage. c must come from
// this deformer.
func (g *GreenDeformer) Reconstruct(c Coordinate) r3.Vec {
	normals, stretch := g.faceTerms()
	return g.eval(c, normals, stretch)
}

// Deform moves every bound vertex to follow the cage.
func (g *GreenDeformer) Deform() {
	normals, stretch := g.faceTerms()
	g.apply(func(c Coordinate) r3.Vec { return g.eval(c, normals, stretch) })
}

func (g *GreenDeformer) eval(c Coordinate, normals []r3.Vec, stretch []float64) r3.Vec {
	var p r3.Vec
	verts := g.cage.Vertices
	for i, v := range verts {
		p = r3.Add(p, r3.Scale(c[i], v))
	}
	psi := c[len(verts):]
	for j, n := range normals {
		p = r3.Add(p, r3.Scale(psi[j]*stretch[j], n))
	}
	return p
}

// faceTerms returns the current face normals and the per-face stretch
// factors that keep the deformation quasi-conformal.
func (g *GreenDeformer) faceTerms() ([]r3.Vec, []float64) {
	cur := g.cage.Vertices
	normals := make([]r3.Vec, len(g.faces))
	stretch := make([]float64, len(g.faces))
	for j, f := range g.faces {
		u := r3.Sub(g.orig[f[1]], g.orig[f[0]])
		v := r3.Sub(g.orig[f[2]], g.orig[f[0]])
		u2 := r3.Sub(cur[f[1]], cur[f[0]])
		v2 := r3.Sub(cur[f[2]], cur[f[0]])
		normals[j] = unitOrZero(r3.Cross(u2, v2))

		area := r3.Norm(r3.Cross(u, v)) / 2
		if area < tiny {
			stretch[j] = 1
			continue
		}
		num := r3.Dot(u2, u2)*r3.Dot(v, v) - 2*r3.Dot(u2, v2)*r3.Dot(u, v) + r3.Dot(v2, v2)*r3.Dot(u, u)
		stretch[j] = math.Sqrt(math.Max(num, 0)) / (math.Sqrt(8) * area)
	}
	return normals, stretch
}

func greenCoordinate(eta r3.Vec, verts []r3.Vec, faces []mesh.Face) Coordinate {
	out := make(Coordinate, len(verts)+len(faces))
	phi, psi := out[:len(verts)], out[len(verts):]
	for j, f := range faces {
		var v [3]r3.Vec
		for l := range v {
			v[l] = r3.Sub(verts[f[l]], eta)
		}
		n := unitOrZero(r3.Cross(r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0])))
		if n == (r3.Vec{}) {
			continue
		}
		p := r3.Scale(r3.Dot(v[0], n), n)

		var (
			s, I, II [3]float64
			N        [3]r3.Vec
		)
		for l := 0; l < 3; l++ {
			a, b := v[l], v[(l+1)%3]
			da, db := r3.Sub(a, p), r3.Sub(b, p)
			// A projection on the edge line gives a noisy sign and a
			// vanishing integral; the edge then contributes nothing.
			if sv := r3.Dot(r3.Cross(da, db), n); math.Abs(sv) > edgeTol*r3.Norm(da)*r3.Norm(db) {
				s[l] = math.Copysign(1, sv)
				I[l] = gcTriInt(p, a, b, r3.Vec{})
			}
			II[l] = gcTriInt(r3.Vec{}, b, a, r3.Vec{})
			N[l] = unitOrZero(r3.Cross(b, a))
		}

		sum := -math.Abs(s[0]*I[0] + s[1]*I[1] + s[2]*I[2])
		psi[j] = -sum
		w := r3.Scale(sum, n)
		for l := range N {
			w = r3.Add(w, r3.Scale(II[l], N[l]))
		}
		if r3.Norm(w) <= tiny {
			continue
		}
		for l := 0; l < 3; l++ {
			nn := N[(l+1)%3]
			if den := r3.Dot(nn, v[l]); den != 0 {
				phi[f[l]] += r3.Dot(nn, w) / den
			}
		}
	}
	return out
}

// gcTriInt is the closed-form integral over the triangle (p, v1, v2) used
// by both coordinate families.
func gcTriInt(p, v1, v2, eta r3.Vec) float64 {
	a, b := r3.Sub(v2, v1), r3.Sub(p, v1)
	na, nb := r3.Norm(a), r3.Norm(b)
	if na < tiny || nb < tiny {
		return 0
	}
	alpha := math.Acos(clamp(r3.Dot(a, b) / (na * nb)))

	c1, c2 := r3.Sub(v1, p), r3.Sub(v2, p)
	n1, n2 := r3.Norm(c1), r3.Norm(c2)
	if n1 < tiny || n2 < tiny {
		return 0
	}
	beta := math.Acos(clamp(r3.Dot(c1, c2) / (n1 * n2)))

	sinA := math.Sin(alpha)
	lambda := r3.Dot(b, b) * sinA * sinA
	pe := r3.Sub(p, eta)
	c := r3.Dot(pe, pe)
	sqc, sql := math.Sqrt(c), math.Sqrt(lambda)

	var in [2]float64
	for k, theta := range [2]float64{math.Pi - alpha, math.Pi - alpha - beta} {
		S, C := math.Sin(theta), math.Cos(theta)
		if math.Abs(S) < tiny {
			continue
		}
		var t1, t2 float64
		if c > 0 {
			t1 = 2 * sqc * math.Atan(sqc*C/math.Sqrt(lambda+S*S*c))
		}
		if lambda > tiny {
			arg := 2 * sql * S * S / ((1 - C) * (1 - C)) *
				(1 - 2*c*C/(c*(1+C)+lambda+math.Sqrt(lambda*lambda+lambda*c*S*S)))
			t2 = sql * math.Log(arg)
		}
		in[k] = -math.Copysign(0.5, S) * (t1 + t2)
	}
	return -1 / (4 * math.Pi) * math.Abs(in[0]-in[1]-sqc*beta)
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func unitOrZero(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}
