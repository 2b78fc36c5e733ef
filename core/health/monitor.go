package health

import (
	"context"
	"sync"
	"time"

	"github.com/mowbotai/fleetd/core/connection"
	"github.com/mowbotai/fleetd/core/logger"
	"github.com/mowbotai/fleetd/internal/eventbus"
)

// Status is the observable health of the fleet connection.
type Status string

const (
	StatusHealthy      Status = "HEALTHY"
	StatusReconnecting Status = "RECONNECTING"
	StatusDegraded     Status = "DEGRADED"
	// StatusFailed is terminal: the backoff budget is exhausted and only an
	// explicit Reconnect call resumes supervision. Silent infinite retry
	// would hide an outage from the operator.
	StatusFailed Status = "FAILED"
)

// StatusChange is published whenever the monitor's status moves.
type StatusChange struct {
	Status  Status
	Attempt int
	Err     error
}

// Config tunes probing and reconnection backoff.
type Config struct {
	ProbeInterval      time.Duration
	UnhealthyThreshold int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	MaxAttempts        int
}

// SetDefaults applies the documented default thresholds.
func (c *Config) SetDefaults() {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.UnhealthyThreshold <= 0 {
		c.UnhealthyThreshold = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// TelemetryHealth is the freshness surface the monitor touches on each probe.
// It is deliberately small: the probe path must not contend with the decode
// pipeline's locks beyond these two calls.
type TelemetryHealth interface {
	EvictStale(now time.Time)
	LastSeen() map[string]time.Time
}

// Monitor probes the broker session on a fixed interval and supervises
// reconnection with bounded exponential backoff.
type Monitor struct {
	conn  connection.Manager
	fleet TelemetryHealth
	cfg   Config
	log   logger.Logger
	bus   *eventbus.Bus[StatusChange]

	mu          sync.Mutex
	status      Status
	missed      int
	lastProbeAt time.Time
	fleetSilent bool
}

// NewMonitor creates a Monitor. The bus may be nil when nobody observes
// status changes.
func NewMonitor(conn connection.Manager, fleet TelemetryHealth, cfg Config, log logger.Logger, bus *eventbus.Bus[StatusChange]) *Monitor {
	cfg.SetDefaults()
	return &Monitor{
		conn:   conn,
		fleet:  fleet,
		cfg:    cfg,
		log:    log,
		bus:    bus,
		status: StatusHealthy,
	}
}

// Status returns the current observable status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastProbeAt reports when the previous probe ran.
func (m *Monitor) LastProbeAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProbeAt
}

// FleetSilent reports whether the last probe found the session connected but
// every known vehicle quiet for longer than the silence window.
func (m *Monitor) FleetSilent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fleetSilent
}

// Run probes until the context is canceled. Reconnection happens inline, so
// at most one attempt is ever in flight; cancellation aborts an in-progress
// backoff wait.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe runs one liveness check. Exported so tests and a manual refresh can
// drive it without the ticker.
func (m *Monitor) Probe(ctx context.Context) {
	now := time.Now()
	m.fleet.EvictStale(now)

	m.mu.Lock()
	m.lastProbeAt = now
	if m.status == StatusFailed {
		// terminal until an explicit Reconnect
		m.mu.Unlock()
		return
	}
	state := m.conn.State()
	if state == connection.StateConnected {
		m.missed = 0
		m.setStatusLocked(StatusHealthy, 0, nil)
		m.checkSilenceLocked(now)
		m.mu.Unlock()
		return
	}
	m.missed++
	missed := m.missed
	probesMissed.Inc()
	if missed < m.cfg.UnhealthyThreshold && state == connection.StateDegraded {
		m.setStatusLocked(StatusDegraded, 0, nil)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if m.log != nil {
		m.log.Warnf("session unhealthy (state %s, %d missed probes), reconnecting", state, missed)
	}
	m.reconnect(ctx)
}

// silenceWindow is how long the whole fleet may go without a frame on a
// connected session before the probe flags it.
func (m *Monitor) silenceWindow() time.Duration {
	return time.Duration(m.cfg.UnhealthyThreshold) * m.cfg.ProbeInterval
}

// checkSilenceLocked flags a fleet that has gone entirely quiet while the
// session still reports connected. A healthy transport with zero telemetry
// points at a subscription problem, which the liveness check alone cannot
// see. Callers hold m.mu.
func (m *Monitor) checkSilenceLocked(now time.Time) {
	seen := m.fleet.LastSeen()
	silent := len(seen) > 0
	cutoff := now.Add(-m.silenceWindow())
	for _, ts := range seen {
		if ts.After(cutoff) {
			silent = false
			break
		}
	}
	if silent && !m.fleetSilent && m.log != nil {
		m.log.Warnf("session connected but no telemetry from any of %d vehicle(s) for over %s", len(seen), m.silenceWindow())
	}
	m.fleetSilent = silent
	if silent {
		fleetSilentGauge.Set(1)
	} else {
		fleetSilentGauge.Set(0)
	}
}

// Reconnect is the explicit manual recovery from FAILED. It resets the
// attempt budget and runs a fresh reconnection cycle.
func (m *Monitor) Reconnect(ctx context.Context) {
	m.mu.Lock()
	m.missed = 0
	m.setStatusLocked(StatusReconnecting, 0, nil)
	m.mu.Unlock()
	m.reconnect(ctx)
}

// reconnect retries Connect with exponential backoff until success, budget
// exhaustion or cancellation. Callers never run it concurrently: Probe and
// Reconnect both execute on the supervision path.
func (m *Monitor) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		m.setStatus(StatusReconnecting, attempt, nil)
		reconnectAttempts.Inc()

		m.conn.Disconnect()
		err := m.conn.Connect(ctx)
		if err == nil {
			m.mu.Lock()
			m.missed = 0
			m.setStatusLocked(StatusHealthy, attempt, nil)
			m.mu.Unlock()
			if m.log != nil {
				m.log.Infof("reconnected after %d attempt(s)", attempt)
			}
			return
		}
		if m.log != nil {
			m.log.Errorf("reconnect attempt %d/%d failed: %v", attempt, m.cfg.MaxAttempts, err)
		}
		if attempt == m.cfg.MaxAttempts {
			m.setStatus(StatusFailed, attempt, err)
			if m.log != nil {
				m.log.Errorf("reconnect budget exhausted, manual reconnect required")
			}
			return
		}
		select {
		case <-time.After(m.backoff(attempt)):
		case <-ctx.Done():
			m.setStatus(StatusFailed, attempt, ctx.Err())
			return
		}
	}
}

// backoff returns base*2^(attempt-1) capped at BackoffMax.
func (m *Monitor) backoff(attempt int) time.Duration {
	d := m.cfg.BackoffBase << (attempt - 1)
	if d > m.cfg.BackoffMax || d <= 0 {
		d = m.cfg.BackoffMax
	}
	return d
}

func (m *Monitor) setStatus(s Status, attempt int, err error) {
	m.mu.Lock()
	m.setStatusLocked(s, attempt, err)
	m.mu.Unlock()
}

// setStatusLocked publishes only on transitions. Callers hold m.mu.
func (m *Monitor) setStatusLocked(s Status, attempt int, err error) {
	if m.status == s && s != StatusReconnecting {
		return
	}
	m.status = s
	statusGauge.Set(statusValue(s))
	if m.bus != nil {
		m.bus.Publish(StatusChange{Status: s, Attempt: attempt, Err: err})
	}
}
