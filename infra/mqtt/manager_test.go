package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mowbotai/fleetd/core/connection"
	"github.com/mowbotai/fleetd/infra/logger"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

type mockClient struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	subscribeErr error
	publishErr   error
	subs         []string
	unsubs       []string
	published    []string
	disconnects  int
}

func (c *mockClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *mockClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr == nil {
		c.connected = true
	}
	return &mockToken{err: c.connectErr}
}

func (c *mockClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.disconnects++
	c.mu.Unlock()
}

func (c *mockClient) Publish(topic string, _ byte, _ bool, _ interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr == nil {
		c.published = append(c.published, topic)
	}
	return &mockToken{err: c.publishErr}
}

func (c *mockClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr == nil {
		c.subs = append(c.subs, topic)
	}
	return &mockToken{err: c.subscribeErr}
}

func (c *mockClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	c.unsubs = append(c.unsubs, topics...)
	c.mu.Unlock()
	return &mockToken{}
}

func withMockClient(t *testing.T, cli *mockClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	t.Cleanup(func() { newMQTTClient = orig })
}

func testConfig() Config {
	return Config{Host: "127.0.0.1", Port: 1883, ClientID: "test"}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(), []string{"uagv/+/+/state", "uagv/+/+/connection"}, func(string, []byte) {}, logger.NopLogger{})
	require.NoError(t, err)
	return m
}

func TestConnectSubscribesFleetTopics(t *testing.T) {
	cli := &mockClient{}
	withMockClient(t, cli)
	m := newTestManager(t)

	require.Equal(t, connection.StateDisconnected, m.State())
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, connection.StateConnected, m.State())
	assert.Equal(t, []string{"uagv/+/+/state", "uagv/+/+/connection"}, cli.subs)

	// connecting again is a no-op
	require.NoError(t, m.Connect(context.Background()))
}

func TestConnectAuthFailure(t *testing.T) {
	cli := &mockClient{connectErr: errors.New("connection refused: bad user name or password")}
	withMockClient(t, cli)
	m := newTestManager(t)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, connection.KindAuth, connection.KindOf(err))
	assert.Equal(t, connection.StateDisconnected, m.State(), "failed connect must drop back to disconnected")
	assert.Equal(t, 1, cli.disconnects, "client released on error path")
}

func TestConnectSubscribeFailureCleansUp(t *testing.T) {
	cli := &mockClient{subscribeErr: errors.New("subscribe rejected")}
	withMockClient(t, cli)
	m := newTestManager(t)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.Equal(t, 1, cli.disconnects)
}

func TestConnectDNSFailure(t *testing.T) {
	cli := &mockClient{}
	withMockClient(t, cli)
	cfg := testConfig()
	cfg.Host = "no-such-host.invalid"
	m, err := NewManager(cfg, nil, func(string, []byte) {}, logger.NopLogger{})
	require.NoError(t, err)

	err = m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, connection.KindDNS, connection.KindOf(err))
}

func TestPublishRequiresConnectedSession(t *testing.T) {
	cli := &mockClient{}
	withMockClient(t, cli)
	m := newTestManager(t)

	err := m.Publish(context.Background(), "uagv/mowbot/agv-1/order", []byte("{}"))
	assert.ErrorIs(t, err, connection.ErrNotConnected)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Publish(context.Background(), "uagv/mowbot/agv-1/order", []byte("{}")))
	assert.Equal(t, []string{"uagv/mowbot/agv-1/order"}, cli.published)
}

func TestDisconnectReleasesSession(t *testing.T) {
	cli := &mockClient{}
	withMockClient(t, cli)
	m := newTestManager(t)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	assert.Equal(t, connection.StateDisconnected, m.State())
	assert.Equal(t, []string{"uagv/+/+/state", "uagv/+/+/connection"}, cli.unsubs)
	assert.Equal(t, 1, cli.disconnects)

	// disconnecting twice is safe
	m.Disconnect()
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	cli := &mockClient{}
	withMockClient(t, cli)
	m := newTestManager(t)

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))
	assert.Len(t, cli.subs, 4, "every connect subscribes the full filter set")
}

func TestSessionFSMTransitions(t *testing.T) {
	f := newSessionFSM()
	assert.Equal(t, connection.StateDisconnected, sessionState(f))
	fire(f, eventDial)
	assert.Equal(t, connection.StateConnecting, sessionState(f))
	fire(f, eventEstablish)
	assert.Equal(t, connection.StateConnected, sessionState(f))
	fire(f, eventDegrade)
	assert.Equal(t, connection.StateDegraded, sessionState(f))
	fire(f, eventDrop)
	assert.Equal(t, connection.StateDisconnected, sessionState(f))

	// invalid transitions are ignored
	fire(f, eventEstablish)
	assert.Equal(t, connection.StateDisconnected, sessionState(f))
}
