package vda5050

import (
	"fmt"
	"strings"
)

// Topic is a parsed VDA5050 topic of the form
// <interfaceName>/<manufacturer>/<serialNumber>/<channel>.
type Topic struct {
	InterfaceName string
	Manufacturer  string
	SerialNumber  string
	Channel       string
}

// ParseTopic splits a raw MQTT topic into its VDA5050 components.
func ParseTopic(raw string) (Topic, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 4 {
		return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, raw)
	}
	for _, p := range parts {
		if p == "" {
			return Topic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, raw)
		}
	}
	return Topic{
		InterfaceName: parts[0],
		Manufacturer:  parts[1],
		SerialNumber:  parts[2],
		Channel:       parts[3],
	}, nil
}

// String renders the topic back to its wire form.
func (t Topic) String() string {
	return t.InterfaceName + "/" + t.Manufacturer + "/" + t.SerialNumber + "/" + t.Channel
}

// SubscriptionFilters returns the wildcard filters covering all inbound
// channels of the given interface namespace.
func SubscriptionFilters(interfaceName string) []string {
	return []string{
		interfaceName + "/+/+/" + ChannelState,
		interfaceName + "/+/+/" + ChannelConnection,
		interfaceName + "/+/+/" + ChannelVisualization,
	}
}

// OrderTopic builds the order topic for one vehicle.
func OrderTopic(interfaceName, manufacturer, serial string) string {
	return Topic{interfaceName, manufacturer, serial, ChannelOrder}.String()
}

// InstantActionsTopic builds the instantActions topic for one vehicle.
func InstantActionsTopic(interfaceName, manufacturer, serial string) string {
	return Topic{interfaceName, manufacturer, serial, ChannelInstantActions}.String()
}
