package coastline

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// paramEps is the tolerance, in segment parameter space, below which an
// intersection is snapped to a segment endpoint.
const paramEps = 1e-12

type segment struct {
	a, b orb.Point
}

func (s segment) bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(s.a[0], s.b[0]), math.Min(s.a[1], s.b[1])},
		Max: orb.Point{math.Max(s.a[0], s.b[0]), math.Max(s.a[1], s.b[1])},
	}
}

// Polygonize builds the maximal simple polygons whose boundaries are covered
// by the input lines.
//
// The lines are noded at every intersection, then dangling edges (edges
// with a free endpoint) and cut edges (edges with the same face on both
// sides) are discarded. The bounded faces of the remaining planar graph
// become polygons. A connected piece of linework nested inside a face
// becomes a hole of that face. Shells are counter-clockwise and holes
// clockwise.
//
// An empty result is valid: it means the lines enclose nothing.
func Polygonize(lines []orb.LineString) []orb.Polygon {
	segs := nodeSegments(collectSegments(lines))
	if len(segs) < 3 {
		return nil
	}

	g := newGraph(segs)
	cycles := g.faces()

	comp := g.components()

	var shells []shell
	var holes []orb.Ring
	var holeComps []int

	for _, cyc := range cycles {
		ring := g.ring(cyc)
		switch ring.Orientation() {
		case orb.CCW:
			shells = append(shells, shell{ring: ring, area: math.Abs(planar.Area(ring)), comp: comp[cyc[0]]})
		case orb.CW:
			holes = append(holes, ring)
			holeComps = append(holeComps, comp[cyc[0]])
		}
	}

	polys := make([]orb.Polygon, len(shells))
	for i, s := range shells {
		polys[i] = orb.Polygon{s.ring}
	}

	// The clockwise cycle of a component is its outline seen from outside.
	// If another component's face contains it, it is a hole of the smallest
	// such face.
	for i, h := range holes {
		best := -1
		for j, s := range shells {
			if s.comp == holeComps[i] {
				continue
			}
			if !planar.RingContains(s.ring, h[0]) {
				continue
			}
			if best < 0 || s.area < shells[best].area {
				best = j
			}
		}
		if best >= 0 {
			polys[best] = append(polys[best], h)
		}
	}

	return polys
}

type shell struct {
	ring orb.Ring
	area float64
	comp int
}

func collectSegments(lines []orb.LineString) []segment {
	var segs []segment
	for _, l := range lines {
		for i := 1; i < len(l); i++ {
			if l[i-1] == l[i] {
				continue
			}
			segs = append(segs, segment{a: l[i-1], b: l[i]})
		}
	}
	return segs
}

// nodeSegments splits every segment at each point where it meets another
// segment, and removes duplicates.
func nodeSegments(segs []segment) []segment {
	n := len(segs)
	splits := make([][]orb.Point, n)

	order := make([]int, n)
	bounds := make([]orb.Bound, n)
	for i := range segs {
		order[i] = i
		bounds[i] = segs[i].bound()
	}
	sort.Slice(order, func(i, j int) bool {
		return bounds[order[i]].Min[0] < bounds[order[j]].Min[0]
	})

	// Sweep along X: only segments whose X ranges overlap are tested.
	for oi := 0; oi < n; oi++ {
		i := order[oi]
		for oj := oi + 1; oj < n; oj++ {
			j := order[oj]
			if bounds[j].Min[0] > bounds[i].Max[0] {
				break
			}
			if bounds[j].Min[1] > bounds[i].Max[1] || bounds[j].Max[1] < bounds[i].Min[1] {
				continue
			}
			for _, p := range intersect(segs[i], segs[j]) {
				splits[i] = append(splits[i], p)
				splits[j] = append(splits[j], p)
			}
		}
	}

	seen := make(map[[2]orb.Point]bool)
	var out []segment
	for i, s := range segs {
		pts := append([]orb.Point{s.a, s.b}, splits[i]...)
		d := orb.Point{s.b[0] - s.a[0], s.b[1] - s.a[1]}
		sort.SliceStable(pts, func(x, y int) bool {
			return dot(sub(pts[x], s.a), d) < dot(sub(pts[y], s.a), d)
		})

		for k := 1; k < len(pts); k++ {
			p, q := pts[k-1], pts[k]
			if p == q {
				continue
			}
			key := edgeKey(p, q)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, segment{a: key[0], b: key[1]})
		}
	}
	return out
}

// intersect returns the points shared by two segments. Points that fall on
// an endpoint of either segment are returned as that exact endpoint so both
// sides of the split agree bit for bit.
func intersect(s, t segment) []orb.Point {
	r := sub(s.b, s.a)
	q := sub(t.b, t.a)
	w := sub(t.a, s.a)
	den := cross(r, q)

	if den == 0 {
		if cross(w, r) != 0 {
			return nil // parallel
		}
		// Collinear: every endpoint lying on the other segment is shared.
		var pts []orb.Point
		for _, p := range []orb.Point{t.a, t.b} {
			if onSegment(p, s) {
				pts = append(pts, p)
			}
		}
		for _, p := range []orb.Point{s.a, s.b} {
			if onSegment(p, t) {
				pts = append(pts, p)
			}
		}
		return pts
	}

	u := cross(w, q) / den // along s
	v := cross(w, r) / den // along t
	if u < -paramEps || u > 1+paramEps || v < -paramEps || v > 1+paramEps {
		return nil
	}

	switch {
	case u <= paramEps:
		return []orb.Point{s.a}
	case u >= 1-paramEps:
		return []orb.Point{s.b}
	case v <= paramEps:
		return []orb.Point{t.a}
	case v >= 1-paramEps:
		return []orb.Point{t.b}
	}
	return []orb.Point{{s.a[0] + u*r[0], s.a[1] + u*r[1]}}
}

func onSegment(p orb.Point, s segment) bool {
	d := sub(s.b, s.a)
	l := dot(d, d)
	if l == 0 {
		return p == s.a
	}
	t := dot(sub(p, s.a), d) / l
	return t >= 0 && t <= 1
}

func edgeKey(p, q orb.Point) [2]orb.Point {
	if q[0] < p[0] || (q[0] == p[0] && q[1] < p[1]) {
		return [2]orb.Point{q, p}
	}
	return [2]orb.Point{p, q}
}

func sub(a, b orb.Point) orb.Point { return orb.Point{a[0] - b[0], a[1] - b[1]} }
func dot(a, b orb.Point) float64   { return a[0]*b[0] + a[1]*b[1] }
func cross(a, b orb.Point) float64 { return a[0]*b[1] - a[1]*b[0] }

// graph is an undirected planar graph over noded segments.
type graph struct {
	pts []orb.Point
	adj []map[int]bool
}

func newGraph(segs []segment) *graph {
	g := &graph{}
	index := make(map[orb.Point]int)
	id := func(p orb.Point) int {
		if i, ok := index[p]; ok {
			return i
		}
		index[p] = len(g.pts)
		g.pts = append(g.pts, p)
		g.adj = append(g.adj, make(map[int]bool))
		return index[p]
	}
	for _, s := range segs {
		a, b := id(s.a), id(s.b)
		g.adj[a][b] = true
		g.adj[b][a] = true
	}
	return g
}

func (g *graph) removeEdge(a, b int) {
	delete(g.adj[a], b)
	delete(g.adj[b], a)
}

// pruneDangles repeatedly removes edges ending in a degree-one node.
func (g *graph) pruneDangles() {
	var stack []int
	for i := range g.adj {
		if len(g.adj[i]) == 1 {
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(g.adj[v]) != 1 {
			continue
		}
		for w := range g.adj[v] {
			g.removeEdge(v, w)
			if len(g.adj[w]) == 1 {
				stack = append(stack, w)
			}
		}
	}
}

// sortedNeighbours returns the neighbours of v ordered counter-clockwise by
// the angle of the outgoing edge.
func (g *graph) sortedNeighbours(v int) []int {
	ns := make([]int, 0, len(g.adj[v]))
	for w := range g.adj[v] {
		ns = append(ns, w)
	}
	p := g.pts[v]
	sort.Slice(ns, func(i, j int) bool {
		a := g.pts[ns[i]]
		b := g.pts[ns[j]]
		return math.Atan2(a[1]-p[1], a[0]-p[0]) < math.Atan2(b[1]-p[1], b[0]-p[0])
	})
	return ns
}

// traceCycles walks every directed edge once, keeping the face on the left.
// Bounded faces come out counter-clockwise and component outlines clockwise.
func (g *graph) traceCycles() [][]int {
	order := make([][]int, len(g.pts))
	pos := make([]map[int]int, len(g.pts))
	for v := range g.pts {
		order[v] = g.sortedNeighbours(v)
		pos[v] = make(map[int]int, len(order[v]))
		for i, w := range order[v] {
			pos[v][w] = i
		}
	}

	visited := make(map[[2]int]bool)
	var cycles [][]int

	for u := range g.pts {
		for _, v := range order[u] {
			if visited[[2]int{u, v}] {
				continue
			}
			var cyc []int
			a, b := u, v
			for !visited[[2]int{a, b}] {
				visited[[2]int{a, b}] = true
				cyc = append(cyc, a)
				// Next edge is the one just clockwise of the reverse edge.
				ns := order[b]
				i := pos[b][a]
				a, b = b, ns[(i-1+len(ns))%len(ns)]
			}
			cycles = append(cycles, cyc)
		}
	}
	return cycles
}

// faces prunes dangles and cut edges, then returns the final face cycles.
func (g *graph) faces() [][]int {
	for {
		g.pruneDangles()
		cycles := g.traceCycles()

		owner := make(map[[2]int]int)
		for ci, cyc := range cycles {
			for k := range cyc {
				owner[[2]int{cyc[k], cyc[(k+1)%len(cyc)]}] = ci
			}
		}

		var cuts [][2]int
		for e, ci := range owner {
			if e[0] > e[1] {
				continue
			}
			if cj, ok := owner[[2]int{e[1], e[0]}]; ok && cj == ci {
				cuts = append(cuts, e)
			}
		}
		if len(cuts) == 0 {
			return cycles
		}
		for _, e := range cuts {
			g.removeEdge(e[0], e[1])
		}
	}
}

// components labels every node with its connected component.
func (g *graph) components() []int {
	comp := make([]int, len(g.pts))
	for i := range comp {
		comp[i] = -1
	}
	next := 0
	for s := range g.pts {
		if comp[s] >= 0 {
			continue
		}
		stack := []int{s}
		comp[s] = next
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for w := range g.adj[v] {
				if comp[w] < 0 {
					comp[w] = next
					stack = append(stack, w)
				}
			}
		}
		next++
	}
	return comp
}

func (g *graph) ring(cyc []int) orb.Ring {
	r := make(orb.Ring, 0, len(cyc)+1)
	for _, v := range cyc {
		r = append(r, g.pts[v])
	}
	return append(r, g.pts[cyc[0]])
}
