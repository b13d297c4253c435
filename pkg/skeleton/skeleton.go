// Package skeleton extracts a curve skeleton from a closed triangle mesh
// and turns its longest path into a smoothed, recentered spine with
// per-point radius estimates.
//
// The skeleton is a Reeb graph of the geodesic distance from an extreme
// vertex: every connected component of a distance level set becomes one
// node placed at the component centroid.
package skeleton

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/gcdeform/pkg/mesh"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerate is returned when a mesh does not yield a usable skeleton:
// it is empty, has zero geodesic extent, or collapses to a single node.
var ErrDegenerate = errors.New("skeleton: degenerate segment")

// Node is one skeleton vertex.
type Node struct {
	ID      int
	Level   int    // level set the component belongs to
	Pos     r3.Vec // centroid of Members
	Members []int  // mesh vertex indices
}

// Skeleton is the level-set graph of a mesh.
type Skeleton struct {
	Nodes  []Node
	Source int     // node containing the geodesic source vertex
	Extent float64 // largest finite geodesic distance

	edges [][2]int
	g     *simple.WeightedUndirectedGraph
}

// Extract builds the skeleton of m using bins distance level sets.
func Extract(m *mesh.Mesh, bins int) (*Skeleton, error) {
	if m == nil || len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return nil, fmt.Errorf("%w: empty mesh", ErrDegenerate)
	}
	if bins < 1 {
		bins = 1
	}

	g := edgeGraph(m)
	far := farthest(path.DijkstraFrom(simple.Node(0), g), len(m.Vertices))
	geo := path.DijkstraFrom(simple.Node(far), g)

	dist := make([]float64, len(m.Vertices))
	var dmax float64
	for i := range dist {
		dist[i] = geo.WeightTo(int64(i))
		if !math.IsInf(dist[i], 1) && dist[i] > dmax {
			dmax = dist[i]
		}
	}
	if dmax <= 0 {
		return nil, fmt.Errorf("%w: zero geodesic extent", ErrDegenerate)
	}

	level := make([]int, len(dist))
	for i, d := range dist {
		if math.IsInf(d, 1) {
			level[i] = -1
			continue
		}
		level[i] = min(bins-1, int(math.Floor(d/dmax*float64(bins))))
	}

	adj := m.Neighbors()
	uf := newUnionFind(len(m.Vertices))
	for u, ns := range adj {
		for _, v := range ns {
			if level[u] >= 0 && level[u] == level[v] {
				uf.union(u, v)
			}
		}
	}

	sk := &Skeleton{Extent: dmax}
	comp := make(map[int]int)
	for u := range m.Vertices {
		if level[u] < 0 {
			continue
		}
		root := uf.find(u)
		id, ok := comp[root]
		if !ok {
			id = len(sk.Nodes)
			comp[root] = id
			sk.Nodes = append(sk.Nodes, Node{ID: id, Level: level[u]})
		}
		sk.Nodes[id].Members = append(sk.Nodes[id].Members, u)
	}
	for i := range sk.Nodes {
		var c r3.Vec
		for _, v := range sk.Nodes[i].Members {
			c = r3.Add(c, m.Vertices[v])
		}
		sk.Nodes[i].Pos = r3.Scale(1/float64(len(sk.Nodes[i].Members)), c)
	}
	sk.Source = comp[uf.find(far)]

	seen := make(map[[2]int]struct{})
	for u, ns := range adj {
		if level[u] < 0 {
			continue
		}
		for _, v := range ns {
			a, b := comp[uf.find(u)], comp[uf.find(v)]
			if a == b {
				continue
			}
			if a > b {
				a, b = b, a
			}
			if _, ok := seen[[2]int{a, b}]; ok {
				continue
			}
			seen[[2]int{a, b}] = struct{}{}
			sk.edges = append(sk.edges, [2]int{a, b})
		}
	}
	sort.Slice(sk.edges, func(i, j int) bool {
		if sk.edges[i][0] != sk.edges[j][0] {
			return sk.edges[i][0] < sk.edges[j][0]
		}
		return sk.edges[i][1] < sk.edges[j][1]
	})

	sk.g = simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, n := range sk.Nodes {
		sk.g.AddNode(simple.Node(n.ID))
	}
	for _, e := range sk.edges {
		w := r3.Norm(r3.Sub(sk.Nodes[e[0]].Pos, sk.Nodes[e[1]].Pos))
		sk.g.SetWeightedEdge(sk.g.NewWeightedEdge(simple.Node(e[0]), simple.Node(e[1]), w))
	}
	return sk, nil
}

// Edges returns the skeleton edges as sorted node id pairs.
func (s *Skeleton) Edges() [][2]int {
	out := make([][2]int, len(s.edges))
	copy(out, s.edges)
	return out
}

// LongestPath returns the node positions along the skeleton's longest
// shortest path, found by a double Dijkstra sweep. Ties go to the
// smallest node id.
func (s *Skeleton) LongestPath() []r3.Vec {
	if len(s.Nodes) == 0 {
		return nil
	}
	u := farthest(path.DijkstraFrom(simple.Node(s.Source), s.g), len(s.Nodes))
	sweep := path.DijkstraFrom(simple.Node(u), s.g)
	v := farthest(sweep, len(s.Nodes))
	nodes, _ := sweep.To(int64(v))
	if len(nodes) == 0 {
		return []r3.Vec{s.Nodes[u].Pos}
	}
	out := make([]r3.Vec, len(nodes))
	for i, n := range nodes {
		out[i] = s.Nodes[n.ID()].Pos
	}
	return out
}

func edgeGraph(m *mesh.Mesh) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := range m.Vertices {
		g.AddNode(simple.Node(i))
	}
	for _, e := range m.Edges() {
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.A), simple.Node(e.B), e.Length))
	}
	return g
}

// farthest returns the lowest id among the reachable nodes at maximum
// distance in sh.
func farthest(sh path.Shortest, n int) int {
	best, bestD := 0, -1.0
	for id := 0; id < n; id++ {
		d := sh.WeightTo(int64(id))
		if math.IsInf(d, 1) {
			continue
		}
		if d > bestD {
			best, bestD = id, d
		}
	}
	return best
}

type unionFind []int

func newUnionFind(n int) unionFind {
	uf := make(unionFind, n)
	for i := range uf {
		uf[i] = i
	}
	return uf
}

func (uf unionFind) find(x int) int {
	for uf[x] != x {
		uf[x] = uf[uf[x]]
		x = uf[x]
	}
	return x
}

// union keeps the smaller root so component ids follow vertex order.
func (uf unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		uf[rb] = ra
	} else {
		uf[ra] = rb
	}
}
