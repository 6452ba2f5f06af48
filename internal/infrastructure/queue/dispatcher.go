package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	drainTimeout   = 5 * time.Second
)

// Dispatcher moves auth events off the request path. Events are routed to a
// fixed set of workers by consistent hashing on the user id, guaranteeing
// per-user event ordering, and forwarded to the downstream publisher.
type Dispatcher struct {
	workers []chan domain.AuthEvent
	next    ports.EventPublisher
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, next ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuthEvent, numWorkers),
		next:    next,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. When ctx is cancelled each worker
// forwards what is still buffered, bounded by drainTimeout, and then stops.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Publish enqueues event on the worker responsible for its user. It never
// blocks: when the worker buffer is full the event is dropped.
func (d *Dispatcher) Publish(_ context.Context, event domain.AuthEvent) error {
	idx := d.shardIndex(event.UserID)
	select {
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "dropped").Inc()
		d.log.Warn().
			Str("event", string(event.Type)).
			Str("user_id", event.UserID).
			Int("worker_id", idx).
			Msg("event buffer full, dropping event")
	}
	return nil
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), id, ch)
			return
		case event := <-ch:
			d.forward(ctx, id, len(ch), event)
		}
	}
}

// drain forwards the events buffered on ch at shutdown. Events still queued
// when drainTimeout expires are dropped and counted.
func (d *Dispatcher) drain(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	dropped := 0
	for {
		select {
		case event := <-ch:
			if ctx.Err() != nil {
				metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "dropped").Inc()
				dropped++
				continue
			}
			d.forward(ctx, id, len(ch), event)
		default:
			if dropped > 0 {
				d.log.Warn().Int("worker_id", id).Int("dropped", dropped).Msg("dropped buffered events at shutdown")
			}
			return
		}
	}
}

func (d *Dispatcher) forward(ctx context.Context, id, depth int, event domain.AuthEvent) {
	metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(depth))
	if err := d.next.Publish(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "failed").Inc()
		d.log.Error().Err(err).
			Str("event", string(event.Type)).
			Str("user_id", event.UserID).
			Int("worker_id", id).
			Msg("event publishing failed")
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "published").Inc()
}
