package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mowbotai/fleetd/core/model"
)

func TestParseRoute(t *testing.T) {
	nodes, edges, err := parseRoute("0,0; 5,5 ;10,2.5")
	require.NoError(t, err)

	require.Len(t, nodes, 3)
	assert.Equal(t, model.MissionNode{NodeID: "n1", SequenceID: 0}, nodes[0])
	assert.Equal(t, model.MissionNode{NodeID: "n2", SequenceID: 2, X: 5, Y: 5}, nodes[1])
	assert.Equal(t, model.MissionNode{NodeID: "n3", SequenceID: 4, X: 10, Y: 2.5}, nodes[2])

	require.Len(t, edges, 2)
	assert.Equal(t, model.MissionEdge{EdgeID: "e1", SequenceID: 1, StartNodeID: "n1", EndNodeID: "n2"}, edges[0])
	assert.Equal(t, model.MissionEdge{EdgeID: "e2", SequenceID: 3, StartNodeID: "n2", EndNodeID: "n3"}, edges[1])
}

func TestParseRouteRejectsBadWaypoints(t *testing.T) {
	for _, route := range []string{"0", "0,0;x,y", "1,2,3", ""} {
		_, _, err := parseRoute(route)
		assert.Error(t, err, "route %q", route)
	}
}
