package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/metrics"
)

// CollectorOptions tunes buffering and batching.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Collector buffers events in a channel and publishes them to Kafka in
// batches from a single goroutine. Track never blocks: when the buffer is
// full the event is dropped and counted.
type Collector struct {
	publisher kafka.Publisher
	opts      CollectorOptions
	eventCh   chan RecommendEvent
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
	published atomic.Int64
	logger    *slog.Logger
	done      chan struct{}
}

// NewCollector creates a Collector. Call Start before Track.
func NewCollector(publisher kafka.Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher: publisher,
		opts:      opts,
		eventCh:   make(chan RecommendEvent, opts.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It exits when ctx is cancelled or the
// collector is closed, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.opts.FlushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.opts.BatchSize)
		flush := func(ctx context.Context) {
			if len(batch) == 0 {
				return
			}
			c.publish(ctx, batch)
			batch = batch[:0]
		}
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flushFinal(flush)
					return
				}
				batch = append(batch, kafka.Event{Key: event.Query, Value: event})
				if len(batch) >= c.opts.BatchSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				c.drain(&batch)
				c.flushFinal(flush)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"flush_interval", c.opts.FlushInterval,
	)
}

// Track enqueues event, dropping it if the buffer is full or the collector
// is closed.
func (c *Collector) Track(event RecommendEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.drop()
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.drop()
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

// Dropped returns how many events were discarded.
func (c *Collector) Dropped() int64 { return c.dropped.Load() }

// Published returns how many events reached Kafka.
func (c *Collector) Published() int64 { return c.published.Load() }

func (c *Collector) drop() {
	n := c.dropped.Add(1)
	c.count("dropped", 1)
	if n == 1 || n%1000 == 0 {
		c.logger.Warn("analytics event dropped (buffer full)", "dropped_total", n)
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: event.Query, Value: event})
		default:
			return
		}
	}
}

func (c *Collector) flushFinal(flush func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	flush(ctx)
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
		c.count("failed", len(batch))
		return
	}
	c.published.Add(int64(len(batch)))
	c.count("published", len(batch))
}

func (c *Collector) count(status string, n int) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.AnalyticsEvents.WithLabelValues(status).Add(float64(n))
	}
}
