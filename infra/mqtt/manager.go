package mqtt

import (
	"context"
	"fmt"
	"net"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/looplab/fsm"

	"github.com/mowbotai/fleetd/core/connection"
	"github.com/mowbotai/fleetd/infra/logger"
)

// pahoClient is the slice of the paho API the manager uses. Tests substitute
// a mock through newMQTTClient.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// FrameHandler receives every raw inbound frame from the fleet subscriptions.
type FrameHandler func(topic string, payload []byte)

// Manager owns the broker session and implements connection.Manager. It
// never retries on its own; the health monitor decides when Connect is
// called again. Every successful Connect subscribes the full filter set, so
// a reconnect restores all prior subscriptions.
type Manager struct {
	cfg     Config
	filters []string
	handler FrameHandler
	log     logger.Logger

	mu  sync.Mutex
	cli pahoClient
	sm  *fsmHolder
}

// fsmHolder serializes access to the session state machine.
type fsmHolder struct {
	mu  sync.Mutex
	fsm *fsm.FSM
}

// NewManager creates a Manager that will subscribe the given topic filters
// and feed inbound frames to handler.
func NewManager(cfg Config, filters []string, handler FrameHandler, log logger.Logger) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("mqtt: nil frame handler")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		cfg:     cfg,
		filters: filters,
		handler: handler,
		log:     log,
		sm:      &fsmHolder{fsm: newSessionFSM()},
	}, nil
}

// State reports the current session state.
func (m *Manager) State() connection.State {
	m.sm.mu.Lock()
	defer m.sm.mu.Unlock()
	return sessionState(m.sm.fsm)
}

func (m *Manager) fire(event string) {
	m.sm.mu.Lock()
	fire(m.sm.fsm, event)
	m.sm.mu.Unlock()
}

// Connect resolves the broker host, opens the session and subscribes the
// fleet topics. Failures are classified; cleanup is guaranteed on every
// error path.
func (m *Manager) Connect(ctx context.Context) error {
	if m.State() == connection.StateConnected {
		return nil
	}
	m.fire(eventDrop)
	m.fire(eventDial)

	// resolve first so DNS failures are distinguishable from dial timeouts
	if _, err := net.DefaultResolver.LookupHost(ctx, m.cfg.Host); err != nil {
		m.fire(eventDrop)
		return classifyConnectError(err)
	}

	opts, err := NewClientOptions(m.cfg)
	if err != nil {
		m.fire(eventDrop)
		return connection.NewConnectError(connection.KindTLS, err)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		m.log.Errorf("broker connection lost: %v", err)
		m.fire(eventDegrade)
	}

	cli := newMQTTClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(m.cfg.connectTimeout()) {
		cli.Disconnect(0)
		m.fire(eventDrop)
		return connection.NewConnectError(connection.KindTimeout,
			fmt.Errorf("connect to %s timed out", m.cfg.BrokerURL()))
	}
	if err := token.Error(); err != nil {
		cli.Disconnect(0)
		m.fire(eventDrop)
		return classifyConnectError(err)
	}

	if err := m.subscribe(cli); err != nil {
		cli.Disconnect(250)
		m.fire(eventDrop)
		return err
	}

	m.mu.Lock()
	m.cli = cli
	m.mu.Unlock()
	m.fire(eventEstablish)
	m.log.Infof("connected to %s, %d fleet subscriptions active", m.cfg.BrokerURL(), len(m.filters))
	return nil
}

func (m *Manager) subscribe(cli pahoClient) error {
	onMessage := func(_ paho.Client, msg paho.Message) {
		m.handler(msg.Topic(), msg.Payload())
	}
	for _, filter := range m.filters {
		token := cli.Subscribe(filter, 0, onMessage)
		if !token.WaitTimeout(m.cfg.connectTimeout()) {
			return connection.NewConnectError(connection.KindTimeout,
				fmt.Errorf("subscribe %s timed out", filter))
		}
		if err := token.Error(); err != nil {
			return classifyConnectError(fmt.Errorf("subscribe %s: %w", filter, err))
		}
	}
	return nil
}

// Publish sends a payload on the session. It fails fast when the session is
// not connected and never blocks past the publish timeout.
func (m *Manager) Publish(_ context.Context, topic string, payload []byte) error {
	if m.State() != connection.StateConnected {
		return fmt.Errorf("publish %s: %w", topic, connection.ErrNotConnected)
	}
	m.mu.Lock()
	cli := m.cli
	m.mu.Unlock()
	if cli == nil {
		return fmt.Errorf("publish %s: %w", topic, connection.ErrNotConnected)
	}

	token := cli.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(m.cfg.publishTimeout()) {
		return fmt.Errorf("publish %s: %w", topic,
			connection.NewConnectError(connection.KindTimeout, fmt.Errorf("publish timed out")))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect unsubscribes the fleet topics and releases the session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cli := m.cli
	m.cli = nil
	m.mu.Unlock()

	if cli != nil {
		if cli.IsConnected() {
			if token := cli.Unsubscribe(m.filters...); !token.WaitTimeout(m.cfg.publishTimeout()) {
				m.log.Warnf("unsubscribe timed out during disconnect")
			}
		}
		cli.Disconnect(250)
	}
	m.fire(eventDrop)
}

var _ connection.Manager = (*Manager)(nil)
