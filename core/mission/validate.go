package mission

import (
	"fmt"
	"math"

	"github.com/mowbotai/fleetd/core/model"
)

// Route shape limits.
const (
	// DefaultMaxNodes bounds the number of waypoints per mission.
	DefaultMaxNodes = 100
	// maxCoordinate is the plausibility bound for waypoint coordinates in
	// meters.
	maxCoordinate = 1000.0
)

// validateRoute checks the node/edge sequence of a dispatch request. All
// failures wrap ErrInvalidOrder.
func validateRoute(nodes []model.MissionNode, edges []model.MissionEdge, maxNodes int) error {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: empty node sequence", ErrInvalidOrder)
	}
	if len(nodes) > maxNodes {
		return fmt.Errorf("%w: %d nodes exceeds limit of %d", ErrInvalidOrder, len(nodes), maxNodes)
	}

	ids := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if n.NodeID == "" {
			return fmt.Errorf("%w: node %d has empty id", ErrInvalidOrder, i)
		}
		if _, dup := ids[n.NodeID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidOrder, n.NodeID)
		}
		ids[n.NodeID] = struct{}{}
		if math.Abs(n.X) > maxCoordinate || math.Abs(n.Y) > maxCoordinate {
			return fmt.Errorf("%w: node %q coordinates out of range", ErrInvalidOrder, n.NodeID)
		}
		if i > 0 && n.SequenceID <= nodes[i-1].SequenceID {
			return fmt.Errorf("%w: node sequence ids must be strictly increasing", ErrInvalidOrder)
		}
	}

	for i, e := range edges {
		if i > 0 && e.SequenceID <= edges[i-1].SequenceID {
			return fmt.Errorf("%w: edge sequence ids must be strictly increasing", ErrInvalidOrder)
		}
		if _, ok := ids[e.StartNodeID]; !ok {
			return fmt.Errorf("%w: edge %q references unknown start node %q", ErrInvalidOrder, e.EdgeID, e.StartNodeID)
		}
		if _, ok := ids[e.EndNodeID]; !ok {
			return fmt.Errorf("%w: edge %q references unknown end node %q", ErrInvalidOrder, e.EdgeID, e.EndNodeID)
		}
	}
	return nil
}

// normalizeTheta wraps an orientation into [-pi, pi].
func normalizeTheta(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta < -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}
