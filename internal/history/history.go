// Package history writes numeric entity states to InfluxDB.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/barneyonline/core/internal/hub"
)

const (
	measurement = "entity_state"

	defaultBatchSize     = 100
	defaultFlushInterval = 10
	pingTimeout          = 10 * time.Second
)

// numericAttributes are copied to fields when they hold numbers.
var numericAttributes = []string{"current_temperature", "temperature"}

// Options configures the InfluxDB connection.
type Options struct {
	URL                  string
	Token                string
	Org                  string
	Bucket               string
	BatchSize            int
	FlushIntervalSeconds int
}

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Sink records state_changed events as points.
type Sink struct {
	writer pointWriter
	client influxdb2.Client
	logger *slog.Logger
	off    func()
}

// New connects to InfluxDB and checks it is reachable. Writes are batched
// and non-blocking; write errors are logged.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Sink, error) {
	if opts.URL == "" || opts.Org == "" || opts.Bucket == "" {
		return nil, errors.New("influxdb url, org and bucket are required")
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := opts.FlushIntervalSeconds
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)*1000))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, errors.New("influxdb ping: server not healthy")
	}

	writeAPI := client.WriteAPI(opts.Org, opts.Bucket)
	s := newSink(writeAPI, logger)
	s.client = client
	go func() {
		for err := range writeAPI.Errors() {
			s.logger.Warn("influxdb write failed", "error", err)
		}
	}()
	return s, nil
}

func newSink(w pointWriter, logger *slog.Logger) *Sink {
	return &Sink{writer: w, logger: logger.With("component", "history")}
}

// Start subscribes to state changes on bus.
func (s *Sink) Start(bus *hub.EventBus) {
	s.off = bus.On(hub.EventStateChanged, s.handle)
}

// Close unsubscribes, flushes pending points and closes the client.
func (s *Sink) Close() {
	if s.off != nil {
		s.off()
	}
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
}

func (s *Sink) handle(event hub.Event) {
	data, ok := event.Data.(hub.StateChangedData)
	if !ok || data.NewState == nil {
		return
	}
	ts := data.NewState.LastUpdated
	if ts.IsZero() {
		ts = event.Time
	}
	point, ok := pointFor(*data.NewState, ts)
	if !ok {
		return
	}
	s.writer.WritePoint(point)
}

// pointFor converts a state to a point. States without any numeric value
// yield no point.
func pointFor(st hub.State, ts time.Time) (*write.Point, bool) {
	fields := make(map[string]interface{})
	if v, err := strconv.ParseFloat(st.State, 64); err == nil {
		fields["value"] = v
	}
	for _, key := range numericAttributes {
		if v, ok := number(st.Attributes[key]); ok {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		return nil, false
	}
	tags := map[string]string{
		"entity_id": st.EntityID,
		"domain":    st.Domain(),
	}
	return write.NewPoint(measurement, tags, fields, ts), true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
