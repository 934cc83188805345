package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/tenantledger/pkg/config"
	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	"github.com/amirasaad/tenantledger/pkg/metrics"
	"github.com/amirasaad/tenantledger/pkg/repository"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// ErrWorkerRunning is returned by Start when the loop is already running.
var ErrWorkerRunning = errors.New("webhook worker already running")

// WorkerConfig tunes the delivery loop.
type WorkerConfig struct {
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	BatchSize        int
	Concurrency      int
	ClaimLease       time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
	Policy           webhook.RetryPolicy
}

// WorkerConfigFrom maps the WEBHOOK_* settings onto a WorkerConfig.
func WorkerConfigFrom(cfg *config.Webhook) WorkerConfig {
	return WorkerConfig{
		PollInterval:     cfg.PollInterval,
		ErrorBackoff:     cfg.ErrorBackoff,
		BatchSize:        cfg.BatchSize,
		Concurrency:      cfg.Concurrency,
		ClaimLease:       cfg.ClaimLease,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerOpenDelay: cfg.BreakerOpenDelay,
		Policy: webhook.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Step:        cfg.BackoffStep,
		},
	}
}

// Stats summarises one pass over the outbox.
type Stats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
	Skipped   int
}

// Worker drains pending webhook events. Several workers, in one process or
// many, may run against the same store: claims skip rows held by others and
// lease the rows they take.
type Worker struct {
	uow    repository.UnitOfWork
	sender Sender
	cfg    WorkerConfig
	now    func() time.Time
	logger *slog.Logger

	breakersMu sync.Mutex
	breakers   map[uuid.UUID]*gobreaker.CircuitBreaker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithNow replaces the worker clock, for tests.
func WithNow(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

func NewWorker(
	uow repository.UnitOfWork,
	sender Sender,
	cfg WorkerConfig,
	logger *slog.Logger,
	opts ...WorkerOption,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = time.Minute
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = webhook.DefaultRetryPolicy()
	}
	w := &Worker{
		uow:      uow,
		sender:   sender,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "webhook_worker"),
		breakers: make(map[uuid.UUID]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the polling loop in the background until Stop is called or
// ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return ErrWorkerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	w.logger.Info("Webhook worker started",
		"poll_interval", w.cfg.PollInterval,
		"batch_size", w.cfg.BatchSize,
		"concurrency", w.cfg.Concurrency,
	)
	return nil
}

// Stop cancels the loop and waits for the batch in flight, or for ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		w.logger.Info("Webhook worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := w.cfg.PollInterval
		// a pass in flight settles its events even when Stop is called
		stats, err := w.runSafely(context.WithoutCancel(ctx))
		switch {
		case err != nil && ctx.Err() == nil:
			w.logger.Error("Webhook delivery pass failed", "error", err)
			wait = w.cfg.ErrorBackoff
		case stats.Claimed == w.cfg.BatchSize:
			// full batch: there is probably more due right now
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (w *Worker) runSafely(ctx context.Context) (stats Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webhook worker panic: %v", r)
		}
	}()
	return w.RunOnce(ctx)
}

// RunOnce claims one batch of due events and attempts each of them.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	now := w.now()
	var claimed []*webhook.Event
	err := w.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.WebhookEventRepository()
		if err != nil {
			return err
		}
		claimed, err = repo.ClaimDue(ctx, now, now.Add(w.cfg.ClaimLease), w.cfg.BatchSize)
		return err
	})
	if err != nil {
		return Stats{}, fmt.Errorf("claim webhook events: %w", err)
	}
	if len(claimed) == 0 {
		return Stats{}, nil
	}

	var delivered, retried, failed, skipped atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(w.cfg.Concurrency)
	for _, ev := range claimed {
		g.Go(func() error {
			res, err := w.deliver(ctx, ev)
			if err != nil {
				return fmt.Errorf("event %s: %w", ev.ID, err)
			}
			metrics.Deliveries.WithLabelValues(string(res)).Inc()
			switch res {
			case resultDelivered:
				delivered.Add(1)
			case resultRetry:
				retried.Add(1)
			case resultFailed, resultInactive:
				failed.Add(1)
			case resultBreakerOpen, resultLost:
				skipped.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	stats := Stats{
		Claimed:   len(claimed),
		Delivered: int(delivered.Load()),
		Retried:   int(retried.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	w.logger.Debug("Webhook delivery pass finished",
		"claimed", stats.Claimed,
		"delivered", stats.Delivered,
		"retried", stats.Retried,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return stats, err
}

type deliveryResult string

const (
	resultDelivered   deliveryResult = "delivered"
	resultRetry       deliveryResult = "retry"
	resultFailed      deliveryResult = "failed"
	resultInactive    deliveryResult = "inactive"
	resultBreakerOpen deliveryResult = "breaker_open"
	// resultLost means our lease ran out and the event was left to
	// whichever claim holds it now.
	resultLost deliveryResult = "lost"
)

func (w *Worker) deliver(ctx context.Context, ev *webhook.Event) (deliveryResult, error) {
	logger := w.logger.With("event_id", ev.ID, "event_type", ev.Type, "attempts", ev.Attempts)
	events, err := w.uow.WebhookEventRepository()
	if err != nil {
		return "", err
	}
	endpoints, err := w.uow.WebhookEndpointRepository()
	if err != nil {
		return "", err
	}

	ep, err := endpoints.Get(ctx, ev.EndpointID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if ep == nil || !ep.IsActive {
		logger.Warn("Webhook endpoint inactive; event failed")
		return settle(events.MarkFailed(ctx, ev.ID, ev.LeaseID, ev.Attempts, w.now(), "endpoint inactive"), resultInactive)
	}

	// Events wait in the batch behind earlier sends. One whose lease ran out
	// meanwhile may already belong to another worker and is left alone.
	dispatchedAt := w.now()
	if err := events.Renew(ctx, ev.ID, ev.LeaseID, dispatchedAt, dispatchedAt.Add(w.cfg.ClaimLease)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Webhook claim lease expired before dispatch; event skipped")
			return resultLost, nil
		}
		return "", err
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.ClaimLease)
	defer cancel()

	cb := w.breaker(ep.ID)
	start := time.Now()
	_, sendErr := cb.Execute(func() (any, error) {
		status, err := w.sender.Send(sendCtx, Delivery{
			URL:       ep.URL,
			Secret:    ep.Secret,
			EventID:   ev.ID,
			EventType: ev.Type,
			Attempt:   ev.Attempts + 1,
			Payload:   ev.Payload,
		})
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, fmt.Errorf("endpoint responded with status %d", status)
		}
		return nil, nil
	})
	at := w.now()

	if errors.Is(sendErr, gobreaker.ErrOpenState) || errors.Is(sendErr, gobreaker.ErrTooManyRequests) {
		logger.Debug("Circuit open for endpoint; event deferred", "endpoint_id", ep.ID)
		return settle(events.Release(ctx, ev.ID, ev.LeaseID, at.Add(w.cfg.PollInterval)), resultBreakerOpen)
	}
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())

	if sendErr == nil {
		logger.Info("Webhook delivered", "endpoint_id", ep.ID)
		return settle(events.MarkDelivered(ctx, ev.ID, ev.LeaseID, ev.Attempts+1, at), resultDelivered)
	}

	decision := w.cfg.Policy.Next(ev.Attempts, at)
	if decision.Exhausted {
		logger.Warn("Webhook delivery failed permanently", "error", sendErr)
		return settle(events.MarkFailed(ctx, ev.ID, ev.LeaseID, decision.Attempts, at, sendErr.Error()), resultFailed)
	}
	logger.Info("Webhook delivery failed; retry scheduled",
		"error", sendErr,
		"next_attempt_at", decision.NextAttemptAt,
	)
	return settle(
		events.ScheduleRetry(ctx, ev.ID, ev.LeaseID, decision.Attempts, at, decision.NextAttemptAt, sendErr.Error()),
		resultRetry,
	)
}

func settle(err error, res deliveryResult) (deliveryResult, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return resultLost, nil
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

// breaker returns the circuit breaker for one endpoint, so a dead receiver
// stops consuming attempts of its queued events.
func (w *Worker) breaker(endpointID uuid.UUID) *gobreaker.CircuitBreaker {
	w.breakersMu.Lock()
	defer w.breakersMu.Unlock()
	if cb, ok := w.breakers[endpointID]; ok {
		return cb
	}
	failures := w.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook-" + endpointID.String(),
		MaxRequests: 1,
		Timeout:     w.cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.logger.Warn("Webhook circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	w.breakers[endpointID] = cb
	return cb
}
