package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/talgya/aislesim/internal/config"
)

// ErrInvalidLocation is returned for a section or shelf outside the layout.
var ErrInvalidLocation = errors.New("invalid location")

// Graph is the immutable store floor graph. It is built once and shared by
// reference; nothing mutates it after Build returns, so concurrent readers
// need no locking.
type Graph struct {
	Layout Layout

	Till  Node
	Start Node
	End   Node

	adj   [][]Node // Neighbors in edge insertion order
	edges [][2]Node
	n     int
	paths [][]Node // paths[a*n+b], a and b inclusive
}

// Build constructs the store graph from its layout parameters and
// precomputes every shortest path.
func Build(cfg config.StoreConfig) (*Graph, error) {
	if err := cfg.ValidateLayout(); err != nil {
		return nil, err
	}

	layout := Layout{
		NodesW:   cfg.NAislesW,
		NodesH:   1 + cfg.NAislesH*(cfg.NShelves+1),
		NAislesH: cfg.NAislesH,
		NShelves: cfg.NShelves,
	}
	n := 3 + layout.NumGrid()
	if n < 2 {
		return nil, &config.ConfigError{Field: "store", Reason: fmt.Sprintf("layout produces %d nodes", n)}
	}

	g := &Graph{
		Layout: layout,
		Till:   Node(n - 3),
		Start:  Node(n - 2),
		End:    Node(n - 1),
		adj:    make([][]Node, n),
		n:      n,
	}
	g.buildEdges()
	g.buildPaths()
	return g, nil
}

func (g *Graph) addEdge(a, b Node) {
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	g.edges = append(g.edges, [2]Node{a, b})
}

func (g *Graph) buildEdges() {
	l := g.Layout
	for x := 0; x < l.NodesW; x++ {
		for y := 0; y < l.NodesH; y++ {
			n := l.CoordToNode(x, y)
			// Across only on cross-aisle rows.
			if !l.IsShelfRow(y) && x < l.NodesW-1 {
				g.addEdge(n, l.CoordToNode(x+1, y))
			}
			if y < l.NodesH-1 {
				g.addEdge(n, l.CoordToNode(x, y+1))
			}
		}
	}

	tillX := max(l.NodesW-2, 0)
	g.addEdge(g.Till, l.CoordToNode(tillX, 0))
	g.addEdge(g.Start, l.CoordToNode(0, 0))
	g.addEdge(g.End, l.CoordToNode(l.NodesW-1, 0))
}

// buildPaths runs a breadth-first search from every node. Neighbors are
// expanded in edge insertion order, so ties resolve the same way for the
// same layout.
func (g *Graph) buildPaths() {
	g.paths = make([][]Node, g.n*g.n)
	parent := make([]Node, g.n)
	queue := make([]Node, 0, g.n)

	for src := 0; src < g.n; src++ {
		for i := range parent {
			parent[i] = -1
		}
		parent[src] = Node(src)
		queue = append(queue[:0], Node(src))

		for head := 0; head < len(queue); head++ {
			cur := queue[head]
			for _, next := range g.adj[cur] {
				if parent[next] != -1 {
					continue
				}
				parent[next] = cur
				queue = append(queue, next)
			}
		}

		for dst := 0; dst < g.n; dst++ {
			if parent[dst] == -1 {
				continue // unreachable; cannot happen on a connected layout
			}
			var path []Node
			for at := Node(dst); ; at = parent[at] {
				path = append(path, at)
				if at == Node(src) {
					break
				}
			}
			slices.Reverse(path)
			g.paths[src*g.n+dst] = path
		}
	}
}

// NumNodes returns N, the size of the dense node range.
func (g *Graph) NumNodes() int {
	return g.n
}

// Contains returns true if n is a node of this graph.
func (g *Graph) Contains(n Node) bool {
	return n >= 0 && int(n) < g.n
}

// ShortestPath returns the precomputed path from a to b, both inclusive, in
// traversal order. The result is a copy the caller may modify.
func (g *Graph) ShortestPath(a, b Node) []Node {
	return slices.Clone(g.path(a, b))
}

func (g *Graph) path(a, b Node) []Node {
	return g.paths[int(a)*g.n+int(b)]
}

// Distance returns the number of hops between a and b.
func (g *Graph) Distance(a, b Node) int {
	return len(g.path(a, b)) - 1
}

// Neighbors returns the nodes adjacent to n.
func (g *Graph) Neighbors(n Node) []Node {
	return slices.Clone(g.adj[n])
}

// Adjacent returns true if a and b share an edge.
func (g *Graph) Adjacent(a, b Node) bool {
	return slices.Contains(g.adj[a], b)
}

// Edges returns every undirected edge once, in construction order.
func (g *Graph) Edges() [][2]Node {
	return slices.Clone(g.edges)
}

// LocationToNode maps a (section, shelf) pair to its grid node.
func (g *Graph) LocationToNode(loc Location) (Node, error) {
	l := g.Layout
	if loc.Section < 0 || loc.Shelf < 0 || loc.Shelf >= l.NShelves {
		return 0, fmt.Errorf("%w: section %d shelf %d", ErrInvalidLocation, loc.Section, loc.Shelf)
	}
	sectionX := loc.Section / l.NAislesH
	sectionY := loc.Section % l.NAislesH
	if sectionX >= l.NodesW {
		return 0, fmt.Errorf("%w: section %d beyond %d columns", ErrInvalidLocation, loc.Section, l.NodesW)
	}
	root := sectionX*l.NodesH + 1 + sectionY*(l.NShelves+1)
	return Node(root + loc.Shelf), nil
}

// Kind classifies a node.
func (g *Graph) Kind(n Node) NodeKind {
	switch n {
	case g.Till:
		return KindTill
	case g.Start:
		return KindStart
	case g.End:
		return KindEnd
	}
	if g.Layout.IsShelfRow(g.Layout.NodeToCoord(n).Y) {
		return KindShelf
	}
	return KindCrossAisle
}

// Coord returns the drawing position of a node. Special nodes sit one row in
// front of the grid cell they attach to.
func (g *Graph) Coord(n Node) Coord {
	switch n {
	case g.Till, g.Start, g.End:
		c := g.Layout.NodeToCoord(g.adj[n][0])
		c.Y = -1
		return c
	}
	return g.Layout.NodeToCoord(n)
}

// String returns a summary of the graph.
func (g *Graph) String() string {
	return fmt.Sprintf("Graph(%dx%d grid, nodes=%d, edges=%d)",
		g.Layout.NodesW, g.Layout.NodesH, g.n, len(g.edges))
}
