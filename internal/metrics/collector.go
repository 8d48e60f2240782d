package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventAttempt         EventType = "attempt"
	EventRetryScheduled  EventType = "retry_scheduled"
	EventBreakerRejected EventType = "breaker_rejected"
	EventCompleted       EventType = "completed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Host       string
	Duration   time.Duration
	StatusCode int
	Success    bool
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// EventChannel returns the send side of the collector's event stream.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit delivers an event without blocking. Events are dropped when the
// buffer is full.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventAttempt:
		c.metrics.RecordAttempt(event.Host)

	case EventRetryScheduled:
		c.metrics.RecordRetry(event.Host)

	case EventBreakerRejected:
		c.metrics.RecordRejection(event.Host)

	case EventCompleted:
		c.metrics.RecordOutcome(event.Host, event.Success, event.Duration, event.StatusCode)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
