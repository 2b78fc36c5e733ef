package vda5050

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mowbotai/fleetd/core/model"
)

func statePayload(headerID uint64, battery float64) []byte {
	return []byte(fmt.Sprintf(`{
		"headerId": %d,
		"timestamp": "2026-03-01T10:00:00Z",
		"version": "2.0.0",
		"manufacturer": "mowbot",
		"serialNumber": "agv-1",
		"batteryState": {"batteryCharge": %f, "charging": false},
		"operatingMode": "AUTOMATIC",
		"lastNodeId": "n1",
		"orderId": "order-1",
		"errors": []
	}`, headerID, battery))
}

func TestDecodeState(t *testing.T) {
	c := NewCodec("uagv")
	msg, err := c.Decode("uagv/mowbot/agv-1/state", statePayload(1, 87.5))
	require.NoError(t, err)
	st, ok := msg.(StateMessage)
	require.True(t, ok, "expected StateMessage, got %T", msg)
	assert.Equal(t, KindState, st.Kind())
	assert.Equal(t, uint64(1), st.Header().HeaderID)
	assert.Equal(t, "agv-1", st.Header().SerialNumber)
	assert.Equal(t, 87.5, st.BatteryState.BatteryCharge)
	assert.Equal(t, "AUTOMATIC", st.OperatingMode)
	assert.Equal(t, "order-1", st.OrderID)
}

func TestDecodeConnection(t *testing.T) {
	c := NewCodec("uagv")
	payload := []byte(`{
		"headerId": 4,
		"timestamp": "2026-03-01T10:00:00Z",
		"version": "2.0.0",
		"manufacturer": "mowbot",
		"serialNumber": "agv-2",
		"connectionState": "ONLINE"
	}`)
	msg, err := c.Decode("uagv/mowbot/agv-2/connection", payload)
	require.NoError(t, err)
	cm, ok := msg.(ConnectionMessage)
	require.True(t, ok)
	assert.Equal(t, ConnOnline, cm.ConnectionState)
}

func TestDecodeMalformed(t *testing.T) {
	c := NewCodec("uagv")
	_, err := c.Decode("uagv/mowbot/agv-1/state", []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"no_serial", `{"headerId":1,"timestamp":"2026-03-01T10:00:00Z","version":"2.0.0"}`},
		{"no_header_id", `{"timestamp":"2026-03-01T10:00:00Z","version":"2.0.0","serialNumber":"agv-1"}`},
		{"no_timestamp", `{"headerId":1,"version":"2.0.0","serialNumber":"agv-1"}`},
		{"no_version", `{"headerId":1,"timestamp":"2026-03-01T10:00:00Z","serialNumber":"agv-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCodec("uagv")
			_, err := c.Decode("uagv/mowbot/agv-1/state", []byte(tc.payload))
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestDecodeInvalidTopic(t *testing.T) {
	c := NewCodec("uagv")
	_, err := c.Decode("uagv/state", statePayload(1, 50))
	assert.ErrorIs(t, err, ErrInvalidTopic)
}

func TestDecodeUnknownChannel(t *testing.T) {
	c := NewCodec("uagv")
	payload := []byte(`{"headerId":1,"timestamp":"2026-03-01T10:00:00Z","version":"2.0.0","serialNumber":"agv-1"}`)
	msg, err := c.Decode("uagv/mowbot/agv-1/factsheet", payload)
	require.NoError(t, err)
	um, ok := msg.(UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, "factsheet", um.Channel)
}

func TestDecodeStaleSequenceDiscarded(t *testing.T) {
	c := NewCodec("uagv")
	_, err := c.Decode("uagv/mowbot/agv-1/state", statePayload(5, 50))
	require.NoError(t, err)

	// replayed and out-of-order frames are dropped
	for _, id := range []uint64{5, 4, 1} {
		_, err = c.Decode("uagv/mowbot/agv-1/state", statePayload(id, 50))
		assert.ErrorIs(t, err, ErrStaleSequence, "headerId %d", id)
	}

	// higher ids still advance
	_, err = c.Decode("uagv/mowbot/agv-1/state", statePayload(6, 50))
	assert.NoError(t, err)
}

func TestSequenceIsolatedPerVehicleAndChannel(t *testing.T) {
	c := NewCodec("uagv")
	_, err := c.Decode("uagv/mowbot/agv-1/state", statePayload(10, 50))
	require.NoError(t, err)

	// a different vehicle starts its own baseline
	other := []byte(`{"headerId":1,"timestamp":"2026-03-01T10:00:00Z","version":"2.0.0","manufacturer":"mowbot","serialNumber":"agv-2","batteryState":{"batteryCharge":10,"charging":true},"operatingMode":"MANUAL","lastNodeId":"","orderId":"","errors":[]}`)
	_, err = c.Decode("uagv/mowbot/agv-2/state", other)
	assert.NoError(t, err)
}

func TestConnectionOnlineResetsBaseline(t *testing.T) {
	c := NewCodec("uagv")
	_, err := c.Decode("uagv/mowbot/agv-1/state", statePayload(100, 50))
	require.NoError(t, err)

	// the AGV reboots and announces itself, restarting headerIds from 1
	online := []byte(`{"headerId":1,"timestamp":"2026-03-01T10:05:00Z","version":"2.0.0","manufacturer":"mowbot","serialNumber":"agv-1","connectionState":"ONLINE"}`)
	_, err = c.Decode("uagv/mowbot/agv-1/connection", online)
	require.NoError(t, err)

	_, err = c.Decode("uagv/mowbot/agv-1/state", statePayload(1, 50))
	assert.NoError(t, err, "baseline should be reset after ONLINE")
}

func TestEncodeOrderRoundTrip(t *testing.T) {
	c := NewCodec("uagv")
	mission := model.MissionOrder{
		OrderID:   "order-42",
		VehicleID: "agv-1",
		Nodes: []model.MissionNode{
			{NodeID: "pickup", SequenceID: 0, X: 10.5, Y: 20.3},
			{NodeID: "dropoff", SequenceID: 2, X: 15.2, Y: 25.1, Theta: 1.57},
		},
		Edges: []model.MissionEdge{
			{EdgeID: "e1", SequenceID: 1, StartNodeID: "pickup", EndNodeID: "dropoff"},
		},
	}
	topic, payload, updateID, err := c.EncodeOrder("mowbot", mission)
	require.NoError(t, err)
	assert.Equal(t, "uagv/mowbot/agv-1/order", topic)
	assert.Equal(t, uint32(0), updateID)

	decoded, err := DecodeOrder(payload)
	require.NoError(t, err)
	assert.Equal(t, mission.OrderID, decoded.OrderID)
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, "pickup", decoded.Nodes[0].NodeID)
	assert.Equal(t, 2, decoded.Nodes[1].SequenceID)
	require.Len(t, decoded.Edges, 1)
	assert.Equal(t, "dropoff", decoded.Edges[0].EndNodeID)
	assert.Equal(t, "agv-1", decoded.SerialNumber)
	assert.NotZero(t, decoded.HeaderID)
}

func TestOrderUpdateIDMonotonicPerOrder(t *testing.T) {
	c := NewCodec("uagv")
	mission := model.MissionOrder{OrderID: "o1", VehicleID: "agv-1",
		Nodes: []model.MissionNode{{NodeID: "n", SequenceID: 0}}}
	for want := uint32(0); want < 3; want++ {
		_, _, id, err := c.EncodeOrder("mowbot", mission)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	// an unrelated order starts back at zero
	mission.OrderID = "o2"
	_, _, id, err := c.EncodeOrder("mowbot", mission)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
}

func TestEncodeInstantActions(t *testing.T) {
	c := NewCodec("uagv")
	topic, payload, err := c.EncodeInstantActions("mowbot", "agv-1", []Action{
		{ActionType: "cancelOrder", ActionID: "a1", BlockingType: "HARD"},
	})
	require.NoError(t, err)
	assert.Equal(t, "uagv/mowbot/agv-1/instantActions", topic)

	var ia InstantActions
	require.NoError(t, json.Unmarshal(payload, &ia))
	require.Len(t, ia.Actions, 1)
	assert.Equal(t, "cancelOrder", ia.Actions[0].ActionType)
}

func TestParseTopic(t *testing.T) {
	tp, err := ParseTopic("uagv/mowbot/agv-7/visualization")
	require.NoError(t, err)
	assert.Equal(t, Topic{"uagv", "mowbot", "agv-7", "visualization"}, tp)
	assert.Equal(t, "uagv/mowbot/agv-7/visualization", tp.String())

	for _, raw := range []string{"", "a/b/c", "a/b/c/d/e", "a//c/d"} {
		_, err := ParseTopic(raw)
		assert.True(t, errors.Is(err, ErrInvalidTopic), "topic %q", raw)
	}
}

func TestSubscriptionFilters(t *testing.T) {
	got := SubscriptionFilters("uagv")
	assert.Equal(t, []string{"uagv/+/+/state", "uagv/+/+/connection", "uagv/+/+/visualization"}, got)
}
