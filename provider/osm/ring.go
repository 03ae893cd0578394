package osm

import (
	"github.com/paulmach/osm"

	"github.com/openwyrm/wyrm/mercator"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

// relMember is one way reference from a multipolygon relation, reduced to
// the only two things ring assembly cares about.
type relMember struct {
	way   osm.WayID
	outer bool
}

// relCandidate is a relation selected into a polygon layer, pending ring
// assembly from its member ways.
type relCandidate struct {
	id      int64
	values  pattern.Values
	members []relMember
}

// assembleRelation reconstructs a relation's member ways into closed
// rings. Member ways are folded into the ring in relation-member order:
// each new member's nodes are appended to a shared working set,
// connectWays repeatedly splices fragments that share an endpoint, and
// any ring that closes is immediately extracted and tagged with the
// role of the member that was just added.
//
// ok is false if members remain unconnected at the end -- a relation that
// doesn't close, which the caller drops rather than emitting a partial
// polygon.
func assembleRelation(rc relCandidate, wayNodes map[osm.WayID][]osm.NodeID, coords map[osm.NodeID]mercator.Point) (rings provider.Rings, ok bool) {
	var ways [][]osm.NodeID
	for _, m := range rc.members {
		nodes, found := wayNodes[m.way]
		if !found {
			// relation member on the edge of the extract; dependency
			// was never resolved to a usable way.
			continue
		}
		ways = append(ways, nodes)
		for len(ways) > 1 {
			var connected bool
			ways, connected = connectWays(ways)
			if !connected {
				break
			}
		}
		for {
			var ring []osm.NodeID
			var found bool
			ways, ring, found = findRing(ways)
			if !found {
				break
			}
			pts, ok := lookupCoords(ring, coords)
			if !ok {
				continue
			}
			rings = append(rings, provider.Ring{Points: orbRing(pts), Outer: m.outer})
		}
	}
	return rings, len(ways) == 0
}

// connectWays looks for two fragments in ways sharing an endpoint node and
// splices them into one, returning the updated slice and whether a splice
// was made.
func connectWays(ways [][]osm.NodeID) ([][]osm.NodeID, bool) {
	n := len(ways)
	for i := 0; i < n-1; i++ {
		a0, a1 := endPoints(ways[i])
		for j := i + 1; j < n; j++ {
			b0, b1 := endPoints(ways[j])
			if a0 != b0 && a0 != b1 && a1 != b0 && a1 != b1 {
				continue
			}
			way := ways[j]
			ways[j] = ways[n-1]
			ways = ways[:n-1]

			// do not reverse fragment i if both its ends already connect
			if a1 != b0 && a1 != b1 {
				reverseNodeIDs(ways[i])
			}
			_, a1 = endPoints(ways[i])
			if b1 == a1 {
				reverseNodeIDs(way)
			}

			ways[i] = append(ways[i][:len(ways[i])-1], way...)
			return ways, true
		}
	}
	return ways, false
}

// findRing removes and returns the first closed fragment (a way whose
// first and last node match) found in ways.
func findRing(ways [][]osm.NodeID) ([][]osm.NodeID, []osm.NodeID, bool) {
	for i, w := range ways {
		w0, w1 := endPoints(w)
		if w0 == w1 {
			n := len(ways)
			ways[i] = ways[n-1]
			return ways[:n-1], w, true
		}
	}
	return ways, nil, false
}

func endPoints(way []osm.NodeID) (osm.NodeID, osm.NodeID) {
	return way[0], way[len(way)-1]
}

func reverseNodeIDs(ids []osm.NodeID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
