package internal

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Metrics counts the chat flow's moving parts: frames read off room
// connections, notifications kept after filtering, and background/foreground
// connection churn.
type Metrics struct {
	framesReceived    metric.Int64Counter
	notificationsKept metric.Int64Counter
	roomConnects      metric.Int64Counter
	roomDisconnects   metric.Int64Counter
}

// NewMetrics registers the counters on the given meter. A nil-safe zero
// value is fine for tests: all methods tolerate an unregistered receiver.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.framesReceived, err = meter.Int64Counter("gymchat.frames.received"); err != nil {
		return nil, err
	}
	if m.notificationsKept, err = meter.Int64Counter("gymchat.notifications.kept"); err != nil {
		return nil, err
	}
	if m.roomConnects, err = meter.Int64Counter("gymchat.rooms.connected"); err != nil {
		return nil, err
	}
	if m.roomDisconnects, err = meter.Int64Counter("gymchat.rooms.disconnected"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) FrameReceived() {
	if m != nil && m.framesReceived != nil {
		m.framesReceived.Add(context.Background(), 1)
	}
}

func (m *Metrics) NotificationKept() {
	if m != nil && m.notificationsKept != nil {
		m.notificationsKept.Add(context.Background(), 1)
	}
}

func (m *Metrics) RoomConnected() {
	if m != nil && m.roomConnects != nil {
		m.roomConnects.Add(context.Background(), 1)
	}
}

func (m *Metrics) RoomDisconnected() {
	if m != nil && m.roomDisconnects != nil {
		m.roomDisconnects.Add(context.Background(), 1)
	}
}

// InitMetrics wires a periodic stdout metric exporter writing to the given
// file path and returns the meter plus a shutdown func. The exporter writes
// to a file rather than the terminal so it never fights the TUI for stdout.
func InitMetrics(ctx context.Context, w io.Writer) (metric.Meter, func(), error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("gymchat"),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(provider)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}
	return provider.Meter("gymchat"), shutdown, nil
}
