package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/aislesim/internal/config"
)

func buildDefault(t *testing.T) *Graph {
	t.Helper()
	g, err := Build(config.Default().Store)
	require.NoError(t, err)
	return g
}

func TestBuildNodeNumbering(t *testing.T) {
	g := buildDefault(t)

	// 4 columns of 1 + 2*(4+1) rows, plus till, start, end.
	assert.Equal(t, 11, g.Layout.NodesH)
	assert.Equal(t, 47, g.NumNodes())
	assert.Equal(t, Node(44), g.Till)
	assert.Equal(t, Node(45), g.Start)
	assert.Equal(t, Node(46), g.End)

	assert.True(t, g.Adjacent(g.Start, g.Layout.CoordToNode(0, 0)))
	assert.True(t, g.Adjacent(g.Till, g.Layout.CoordToNode(2, 0)))
	assert.True(t, g.Adjacent(g.End, g.Layout.CoordToNode(3, 0)))
}

func TestBuildRejectsBadDimensions(t *testing.T) {
	for _, mutate := range []func(*config.StoreConfig){
		func(s *config.StoreConfig) { s.NAislesW = 0 },
		func(s *config.StoreConfig) { s.NAislesH = -1 },
		func(s *config.StoreConfig) { s.NShelves = 0 },
	} {
		cfg := config.Default().Store
		mutate(&cfg)
		_, err := Build(cfg)
		var cerr *config.ConfigError
		assert.True(t, errors.As(err, &cerr), "got %v", err)
	}
}

func TestShelfRowsBlockHorizontalMoves(t *testing.T) {
	g := buildDefault(t)
	l := g.Layout

	// Row 1 is a shelf row, row 5 is the middle cross aisle.
	assert.False(t, g.Adjacent(l.CoordToNode(0, 1), l.CoordToNode(1, 1)))
	assert.True(t, g.Adjacent(l.CoordToNode(0, 5), l.CoordToNode(1, 5)))
	assert.True(t, g.Adjacent(l.CoordToNode(1, 1), l.CoordToNode(1, 2)))
}

func TestDistanceSymmetricAndZeroOnDiagonal(t *testing.T) {
	g := buildDefault(t)
	for a := 0; a < g.NumNodes(); a++ {
		assert.Equal(t, 0, g.Distance(Node(a), Node(a)))
		assert.Equal(t, []Node{Node(a)}, g.ShortestPath(Node(a), Node(a)))
		for b := 0; b < g.NumNodes(); b++ {
			require.Equal(t, g.Distance(Node(a), Node(b)), g.Distance(Node(b), Node(a)), "pair %d,%d", a, b)
		}
	}
}

func TestShortestPathIsConnectedWalk(t *testing.T) {
	g := buildDefault(t)
	for a := 0; a < g.NumNodes(); a++ {
		for b := 0; b < g.NumNodes(); b++ {
			path := g.ShortestPath(Node(a), Node(b))
			require.Equal(t, g.Distance(Node(a), Node(b))+1, len(path))
			require.Equal(t, Node(a), path[0])
			require.Equal(t, Node(b), path[len(path)-1])
			for i := 1; i < len(path); i++ {
				require.True(t, g.Adjacent(path[i-1], path[i]), "hop %d->%d", path[i-1], path[i])
			}
		}
	}
}

func TestShortestPathReturnsCopy(t *testing.T) {
	g := buildDefault(t)
	p := g.ShortestPath(g.Start, g.End)
	p[0] = 99
	assert.Equal(t, g.Start, g.ShortestPath(g.Start, g.End)[0])
}

func TestBuildDeterministic(t *testing.T) {
	a := buildDefault(t)
	b := buildDefault(t)
	for i := 0; i < a.NumNodes(); i++ {
		for j := 0; j < a.NumNodes(); j++ {
			require.Equal(t, a.ShortestPath(Node(i), Node(j)), b.ShortestPath(Node(i), Node(j)))
		}
	}
}

func TestLocationToNode(t *testing.T) {
	g := buildDefault(t)

	n, err := g.LocationToNode(Location{Section: 0, Shelf: 0})
	require.NoError(t, err)
	assert.Equal(t, Node(1), n)

	// Section 1 is the upper half of column 0.
	n, err = g.LocationToNode(Location{Section: 1, Shelf: 2})
	require.NoError(t, err)
	assert.Equal(t, Node(8), n)

	// Section 2 starts column 1.
	n, err = g.LocationToNode(Location{Section: 2, Shelf: 3})
	require.NoError(t, err)
	assert.Equal(t, Node(11+1+3), n)
	assert.Equal(t, KindShelf, g.Kind(n))

	for _, bad := range []Location{{0, 4}, {0, -1}, {-1, 0}, {8, 0}} {
		_, err := g.LocationToNode(bad)
		assert.ErrorIs(t, err, ErrInvalidLocation, "location %v", bad)
	}
}

func TestSingleColumnStore(t *testing.T) {
	g, err := Build(config.StoreConfig{NAislesW: 1, NAislesH: 1, NShelves: 1})
	require.NoError(t, err)

	assert.Equal(t, 6, g.NumNodes())
	shelf, err := g.LocationToNode(Location{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []Node{g.Start, 0, shelf}, g.ShortestPath(g.Start, shelf))
	assert.Equal(t, []Node{shelf, 0, g.Till}, g.ShortestPath(shelf, g.Till))
	assert.Equal(t, []Node{g.Till, 0, g.End}, g.ShortestPath(g.Till, g.End))
}

func TestKindsAndCoords(t *testing.T) {
	g := buildDefault(t)
	assert.Equal(t, KindTill, g.Kind(g.Till))
	assert.Equal(t, KindStart, g.Kind(g.Start))
	assert.Equal(t, KindEnd, g.Kind(g.End))
	assert.Equal(t, KindCrossAisle, g.Kind(0))
	assert.Equal(t, Coord{X: 0, Y: -1}, g.Coord(g.Start))
	assert.Equal(t, Coord{X: 3, Y: -1}, g.Coord(g.End))
	assert.Equal(t, Coord{X: 1, Y: 4}, g.Coord(15))
	assert.Len(t, g.Edges(), countEdges(g))
}

func countEdges(g *Graph) int {
	total := 0
	for n := 0; n < g.NumNodes(); n++ {
		total += len(g.Neighbors(Node(n)))
	}
	return total / 2
}
