package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reuf/lending-system/internal/pkg/metrics"
	"github.com/reuf/lending-system/internal/core/ports"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 64
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// Config sizes the dispatcher. Zero values select the defaults.
type Config struct {
	Workers     int
	QueueSize   int
	Timeout     time.Duration // per delivery attempt
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
}

// Dispatcher delivers notifications in the background through a fixed set of
// workers. Notifications are sharded by key, so those about one identity are
// delivered in order.
type Dispatcher struct {
	workers  []chan ports.Notification
	notifier ports.Notifier
	cfg      Config
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher delivering through notifier.
func NewDispatcher(cfg Config, notifier ports.Notifier, log zerolog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	d := &Dispatcher{
		workers:  make([]chan ports.Notification, cfg.Workers),
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Notification, cfg.QueueSize)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
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

// Enqueue hands n to the worker responsible for its key without blocking.
// It returns false and drops n when that worker's queue is full.
func (d *Dispatcher) Enqueue(n ports.Notification) bool {
	id := d.shardIndex(n.Key)
	ch := d.workers[id]
	select {
	case ch <- n:
		metrics.NotificationQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("notification_id", n.ID).
			Str("key", n.Key).
			Int("worker_id", id).
			Msg("notification queue full, dropping")
		return false
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Notification) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for {
		select {
		case <-ctx.Done():
			if pending := len(ch); pending > 0 {
				d.log.Warn().Int("worker_id", id).Int("pending", pending).Msg("dispatcher stopped with undelivered notifications")
			}
			return
		case n := <-ch:
			metrics.NotificationQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, n)
		}
	}
}

// deliver retries n with linear backoff. Failure is logged, never returned.
func (d *Dispatcher) deliver(ctx context.Context, id int, n ports.Notification) {
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		err := d.notifier.Notify(attemptCtx, n)
		cancel()

		if err == nil {
			metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
			d.log.Debug().Str("notification_id", n.ID).Int("attempt", attempt).Msg("notification delivered")
			return
		}

		d.log.Warn().Err(err).
			Str("notification_id", n.ID).
			Int("worker_id", id).
			Int("attempt", attempt).
			Msg("notification delivery failed")

		if attempt == d.cfg.MaxAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * d.cfg.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			attempt = d.cfg.MaxAttempts
		case <-t.C:
		}
	}

	metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	d.log.Error().
		Str("notification_id", n.ID).
		Str("subject", n.Subject).
		Strs("recipients", n.Recipients).
		Msg("notification given up")
}
