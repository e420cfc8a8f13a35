package notify

import (
	"context"
	"time"

	"backend-booking/internal/logger"
	"backend-booking/internal/metrics"
	"backend-booking/internal/models"
)

// Sink delivers one booking event to a transport.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev models.BookingEvent) error
}

// Dispatcher is the outbound event channel between the booking engine and
// the notification transports. Publish never blocks; delivery happens on
// the goroutine running Run and failures never reach the publisher.
type Dispatcher struct {
	events  chan models.BookingEvent
	sinks   []Sink
	log     logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	done    chan struct{}
}

func NewDispatcher(buffer int, log logger.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		events:  make(chan models.BookingEvent, buffer),
		sinks:   sinks,
		log:     log,
		metrics: m,
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Publish(ev models.BookingEvent) {
	select {
	case d.events <- ev:
	default:
		d.metrics.NotificationsDropped.Inc()
		d.log.Warn("notification buffer full, dropping event",
			"kind", ev.Kind,
			"booking_id", ev.BookingID,
		)
	}
}

// Run delivers events until ctx is cancelled, then flushes whatever is
// still buffered and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.events:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) deliver(ev models.BookingEvent) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			d.metrics.NotificationErrors.WithLabelValues(sink.Name()).Inc()
			d.log.Error("notification delivery failed",
				"sink", sink.Name(),
				"kind", ev.Kind,
				"booking_id", ev.BookingID,
				"error", err,
			)
		}
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, ev models.BookingEvent) error {
	for _, r := range ev.Recipients() {
		s.log.Info("notify",
			"recipient_kind", r.Kind,
			"recipient_id", r.ID,
			"kind", ev.Kind,
			"booking_id", ev.BookingID,
			"slot", ev.Slot.String(),
			"state", ev.State,
		)
	}
	return nil
}
