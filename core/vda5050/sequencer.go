package vda5050

import "sync"

// Sequencer enforces per vehicle+channel message ordering. A headerId less
// than or equal to the last accepted one is a duplicate or an out-of-order
// replay and must be discarded. A connection ONLINE payload resets the
// baseline for the vehicle so that a rebooted AGV starting again at
// headerId 0 is not locked out.
type Sequencer struct {
	mu   sync.Mutex
	last map[string]uint64
}

// NewSequencer creates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[string]uint64)}
}

func seqKey(serial, channel string) string { return serial + "/" + channel }

// Accept records headerID as the new baseline if it advances the sequence and
// returns true. The first message for a vehicle+channel is always accepted.
func (s *Sequencer) Accept(serial, channel string, headerID uint64) bool {
	key := seqKey(serial, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.last[key]
	if seen && headerID <= last {
		return false
	}
	s.last[key] = headerID
	return true
}

// Reset clears the baselines for every channel of the given vehicle.
func (s *Sequencer) Reset(serial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range []string{ChannelState, ChannelConnection, ChannelVisualization} {
		delete(s.last, seqKey(serial, ch))
	}
}
