// Package store provides the store floor graph: grid nodes for shelves and
// cross aisles, the entrance, exit, and till, and the precomputed shortest
// path between every pair of nodes.
//
// The grid is laid out column-major. Column x holds nodes x*H .. x*H+H-1,
// where row 0 is the front cross aisle and every (NShelves+1)th row after it
// is another cross aisle. Rows in between are shelf positions; customers can
// only move vertically along them.
//
// Three special nodes follow the grid: till (N-3), start (N-2) and end (N-1),
// each attached to one front cross-aisle cell.
package store

import "fmt"

// Node is a dense integer identifier in [0, N).
type Node int

// NodeKind classifies a node for visualizers.
type NodeKind uint8

const (
	KindCrossAisle NodeKind = iota // Walkable row connecting columns
	KindShelf                      // Position in front of a shelf
	KindTill                       // Checkout
	KindStart                      // Entrance
	KindEnd                        // Exit
)

// String returns a short lower-case name.
func (k NodeKind) String() string {
	switch k {
	case KindCrossAisle:
		return "aisle"
	case KindShelf:
		return "shelf"
	case KindTill:
		return "till"
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	}
	return "unknown"
}

// Coord is a grid position. X counts columns, Y counts rows from the front.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Location is a logical (section, shelf) pair. Sections are numbered up each
// column before moving to the next column.
type Location struct {
	Section int `json:"section"`
	Shelf   int `json:"shelf"`
}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d)", l.Section, l.Shelf)
}

// Layout holds the derived grid dimensions.
type Layout struct {
	NodesW   int // Columns
	NodesH   int // Rows per column
	NAislesH int // Sections per column
	NShelves int // Shelves per section
}

// NumGrid returns the number of grid nodes.
func (l Layout) NumGrid() int {
	return l.NodesW * l.NodesH
}

// CoordToNode maps a grid coordinate to its node.
func (l Layout) CoordToNode(x, y int) Node {
	return Node(x*l.NodesH + y)
}

// NodeToCoord is the inverse of CoordToNode for grid nodes.
func (l Layout) NodeToCoord(n Node) Coord {
	return Coord{X: int(n) / l.NodesH, Y: int(n) % l.NodesH}
}

// InBounds returns true if the coordinate lies on the grid.
func (l Layout) InBounds(x, y int) bool {
	return x >= 0 && x < l.NodesW && y >= 0 && y < l.NodesH
}

// IsShelfRow returns true if row y is inside a section rather than a cross
// aisle. Horizontal moves are blocked on shelf rows.
func (l Layout) IsShelfRow(y int) bool {
	return y%(l.NShelves+1) > 0
}
