package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/core/model"
	"github.com/mowbotai/fleetd/infra/logger"
)

// Sink receives fleet telemetry for long-term storage.
type Sink interface {
	RecordVehicleState(model.AGVRecord) error
	RecordMissionAck(mission.AckEvent) error
}

// NopSink discards everything. Used when no time-series backend is configured.
type NopSink struct{}

func (NopSink) RecordVehicleState(model.AGVRecord) error { return nil }
func (NopSink) RecordMissionAck(mission.AckEvent) error  { return nil }

// InfluxSink writes fleet telemetry to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so a down backend never blocks startup.
func NewInfluxSinkWithFallback(url, token, org, bucket string) Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return NopSink{}
	}
	return sink
}

// RecordVehicleState writes a snapshot of one vehicle.
func (s *InfluxSink) RecordVehicleState(rec model.AGVRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", rec.VehicleID).
		AddTag("manufacturer", rec.Manufacturer).
		AddTag("connection_state", string(rec.ConnectionState)).
		AddTag("operating_mode", rec.OperatingMode).
		AddField("battery", round3(rec.Battery)).
		AddField("x", round3(rec.Position.X)).
		AddField("y", round3(rec.Position.Y)).
		AddField("theta", round3(rec.Position.Theta)).
		AddField("error_count", len(rec.Errors)).
		SetTime(rec.LastSeenAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMissionAck writes the outcome of one dispatched order.
func (s *InfluxSink) RecordMissionAck(ev mission.AckEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("mission_ack").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("order_id", ev.OrderID).
		AddTag("state", string(ev.State)).
		AddTag("acknowledged", strconv.FormatBool(ev.State == model.AckAcked)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
