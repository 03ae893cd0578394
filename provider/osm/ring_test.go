package osm

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwyrm/wyrm/mercator"
)

func coordMap(ids ...int) map[osm.NodeID]mercator.Point {
	coords := make(map[osm.NodeID]mercator.Point, len(ids))
	for i, id := range ids {
		coords[osm.NodeID(id)] = mercator.Point{X: float64(i), Y: float64(i)}
	}
	return coords
}

func nodeIDs(ids ...int) []osm.NodeID {
	out := make([]osm.NodeID, len(ids))
	for i, id := range ids {
		out[i] = osm.NodeID(id)
	}
	return out
}

// TestRingAssemblyClosure checks that an outer boundary split across two
// way fragments that share endpoints closes into a single ring.
func TestRingAssemblyClosure(t *testing.T) {
	// Square 1-2-3-4-1, split into way A (1,2,3) and way B (3,4,1).
	wayNodes := map[osm.WayID][]osm.NodeID{
		100: nodeIDs(1, 2, 3),
		101: nodeIDs(3, 4, 1),
	}
	coords := coordMap(1, 2, 3, 4)

	rc := relCandidate{
		id: 1,
		members: []relMember{
			{way: 100, outer: true},
			{way: 101, outer: true},
		},
	}

	rings, ok := assembleRelation(rc, wayNodes, coords)
	require.True(t, ok)
	require.Len(t, rings, 1)
	assert.True(t, rings[0].Outer)
	// closed ring: first point equals last point
	pts := rings[0].Points
	assert.Equal(t, pts[0], pts[len(pts)-1])
}

// TestInnerRing checks that a relation with one outer ring and one
// inner ring (a hole) produces two tagged rings.
func TestInnerRing(t *testing.T) {
	wayNodes := map[osm.WayID][]osm.NodeID{
		200: nodeIDs(10, 11, 12, 13, 10), // outer, already closed
		201: nodeIDs(20, 21, 22, 20),     // inner, already closed
	}
	coords := coordMap(10, 11, 12, 13, 20, 21, 22)

	rc := relCandidate{
		id: 2,
		members: []relMember{
			{way: 200, outer: true},
			{way: 201, outer: false},
		},
	}

	rings, ok := assembleRelation(rc, wayNodes, coords)
	require.True(t, ok)
	require.Len(t, rings, 2)
	assert.True(t, rings[0].Outer)
	assert.False(t, rings[1].Outer)
}

// TestBrokenRelationDropped covers a relation whose ways never close: the
// assembler reports !ok so the caller drops it rather than emitting a
// malformed polygon.
func TestBrokenRelationDropped(t *testing.T) {
	wayNodes := map[osm.WayID][]osm.NodeID{
		300: nodeIDs(1, 2, 3), // dangling, no matching endpoint anywhere
	}
	coords := coordMap(1, 2, 3)

	rc := relCandidate{
		id:      3,
		members: []relMember{{way: 300, outer: true}},
	}

	_, ok := assembleRelation(rc, wayNodes, coords)
	assert.False(t, ok)
}

func TestConnectWaysReversesAsNeeded(t *testing.T) {
	// way A: 1->2->3, way B: 1->4->3. Both share both endpoints, and B
	// runs the same direction as A, so B must be reversed to join A's
	// last node 3.
	ways := [][]osm.NodeID{
		nodeIDs(1, 2, 3),
		nodeIDs(1, 4, 3),
	}
	ways, ok := connectWays(ways)
	require.True(t, ok)
	require.Len(t, ways, 1)
	w0, w1 := endPoints(ways[0])
	assert.Equal(t, w0, w1)
}
