// Package app assembles the fleet service from its parts.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mowbotai/fleetd/api/fleet"
	"github.com/mowbotai/fleetd/config"
	corefleet "github.com/mowbotai/fleetd/core/fleet"
	"github.com/mowbotai/fleetd/core/health"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/core/vda5050"
	"github.com/mowbotai/fleetd/infra/credentials"
	"github.com/mowbotai/fleetd/infra/logger"
	"github.com/mowbotai/fleetd/infra/metrics"
	"github.com/mowbotai/fleetd/infra/mqtt"
	"github.com/mowbotai/fleetd/internal/eventbus"
)

// Service orchestrates the broker session, the decode pipeline, mission
// dispatch and the observation surfaces.
type Service struct {
	Store      *corefleet.MemoryStore
	Conn       *mqtt.Manager
	Monitor    *health.Monitor
	Dispatcher *mission.Dispatcher

	cfg       *config.Config
	creds     *credentials.Store
	pipeline  *mqtt.Pipeline
	ackBus    *eventbus.Bus[mission.AckEvent]
	statusBus *eventbus.Bus[health.StatusChange]
	sink      metrics.Sink
	recorder  *metrics.Recorder
	log       logger.Logger
}

// New creates a Service from the configuration. Broker settings persisted
// by the configure flow fill any field the file or environment left at its
// default, so explicit configuration always wins.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	creds, err := credentials.Open(cfg.Credentials, logger.New("credentials"))
	if err != nil {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	saved, err := creds.Get(ctx)
	if err != nil {
		creds.Close()
		if errors.Is(err, credentials.ErrConfigCorrupt) {
			return nil, fmt.Errorf("broker profile unreadable, run `fleetd configure` again: %w", err)
		}
		return nil, fmt.Errorf("broker profile: %w", err)
	}
	brokerCfg := mergeBroker(cfg.Broker, saved)

	store := corefleet.NewMemoryStore(cfg.Fleet.StaleAfter(), cfg.Fleet.OfflineAfter(), cfg.Fleet.WindowCap)
	codec := vda5050.NewCodec(cfg.Fleet.InterfaceName)
	ackBus := eventbus.New[mission.AckEvent]()
	statusBus := eventbus.New[health.StatusChange]()

	// the pipeline needs the session for nothing, but the session needs a
	// frame handler before the pipeline exists, hence the indirection
	var pipe *mqtt.Pipeline
	conn, err := mqtt.NewManager(brokerCfg, vda5050.SubscriptionFilters(cfg.Fleet.InterfaceName),
		func(topic string, payload []byte) { pipe.HandleFrame(topic, payload) },
		logger.New("mqtt"))
	if err != nil {
		creds.Close()
		return nil, fmt.Errorf("mqtt session: %w", err)
	}

	dispatcher, err := mission.NewDispatcher(codec, conn, store, cfg.Mission.AckTimeout(),
		cfg.Mission.MaxNodes, logger.New("mission"), ackBus)
	if err != nil {
		creds.Close()
		return nil, fmt.Errorf("mission dispatcher: %w", err)
	}
	pipe = mqtt.NewPipeline(codec, store, dispatcher, logger.New("pipeline"))

	monitor := health.NewMonitor(conn, store, cfg.Health.Runtime(), logger.New("health"), statusBus)

	var sink metrics.Sink = metrics.NopSink{}
	if cfg.Metrics.Influx.Enabled {
		in := cfg.Metrics.Influx
		sink = metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket)
	}

	return &Service{
		Store:      store,
		Conn:       conn,
		Monitor:    monitor,
		Dispatcher: dispatcher,
		cfg:        cfg,
		creds:      creds,
		pipeline:   pipe,
		ackBus:     ackBus,
		statusBus:  statusBus,
		sink:       sink,
		recorder:   metrics.NewRecorder(store, sink, cfg.Metrics.SnapshotInterval()),
		log:        logg,
	}, nil
}

// Run starts the service and blocks until the context is canceled. A broker
// that is down at startup is not fatal; the health monitor keeps retrying.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Conn.Connect(ctx); err != nil {
		s.log.Warnf("initial broker connect failed: %v", err)
	}

	go s.Monitor.Run(ctx)
	go s.recorder.Run(ctx, s.ackBus.Subscribe())
	go s.watchStatus(ctx)

	go func() {
		if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PromAddr); err != nil {
			s.log.Errorf("prom server: %v", err)
		}
	}()
	go func() {
		mux := fleet.NewMux(s.Store, s.Monitor, s.Dispatcher, s.cfg.API.MapServiceKey)
		if err := fleet.Serve(ctx, s.cfg.API.Addr, mux); err != nil {
			s.log.Errorf("api server: %v", err)
		}
	}()

	<-ctx.Done()
	return nil
}

func (s *Service) watchStatus(ctx context.Context) {
	ch := s.statusBus.Subscribe()
	defer s.statusBus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Err != nil {
				s.log.Warnf("broker health %s (attempt %d): %v", ev.Status, ev.Attempt, ev.Err)
			} else {
				s.log.Infof("broker health %s", ev.Status)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Dispatcher.Close()
	s.Conn.Disconnect()
	s.ackBus.Close()
	s.statusBus.Close()
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.creds.Close()
}

func mergeBroker(file mqtt.Config, saved credentials.BrokerConfig) mqtt.Config {
	var def mqtt.Config
	def.SetDefaults()
	if file.Host == def.Host && saved.Host != "" {
		file.Host = saved.Host
	}
	if file.Port == def.Port && saved.Port != 0 {
		file.Port = saved.Port
	}
	if !file.UseTLS && saved.UseTLS {
		file.UseTLS = true
	}
	if file.Username == "" {
		file.Username = saved.Username
	}
	if file.Password == "" {
		file.Password = saved.Password
	}
	if file.ClientID == def.ClientID && saved.ClientID != "" {
		file.ClientID = saved.ClientID
	}
	if file.KeepAliveSeconds == def.KeepAliveSeconds && saved.KeepAliveSeconds != 0 {
		file.KeepAliveSeconds = saved.KeepAliveSeconds
	}
	return file
}
