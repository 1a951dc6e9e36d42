package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Store leases pending rows to one relay at a time. Rows whose lease expired
// are eligible again, so a crashed relay never strands events. LockBatch never
// returns a row while an older row with the same aggregate is still waiting
// for a retry or leased elsewhere.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	// MarkFailed puts the row back in the queue, eligible again at retryAt. A row
	// that reached maxRetries is flagged failed and keeps being retried.
	MarkFailed(ctx context.Context, id int64, errMsg string, retryAt time.Time, maxRetries int) error
	// Release returns leased rows to pending without counting an attempt.
	Release(ctx context.Context, ids []int64) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log          *slog.Logger
	store        Store
	dispatch     *Dispatcher
	relayID      string
	batchSize    int
	interval     time.Duration
	lease        time.Duration
	maxRetries   int
	retryInitial time.Duration
	retryMax     time.Duration
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption { return func(r *Relay) { r.interval = d } }
func WithBatchSize(n int) RelayOption          { return func(r *Relay) { r.batchSize = n } }
func WithLease(d time.Duration) RelayOption    { return func(r *Relay) { r.lease = d } }
func WithMaxRetries(n int) RelayOption         { return func(r *Relay) { r.maxRetries = n } }

// WithRetryBackoff sets the exponential delay between attempts of one row.
func WithRetryBackoff(initial, maxDelay time.Duration) RelayOption {
	return func(r *Relay) {
		r.retryInitial = initial
		r.retryMax = maxDelay
	}
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:          log,
		store:        store,
		dispatch:     dispatch,
		relayID:      relayID,
		batchSize:    100,
		interval:     500 * time.Millisecond,
		lease:        5 * time.Second,
		maxRetries:   10,
		retryInitial: time.Second,
		retryMax:     time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Error("relay tick error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Tick drains one batch and reports how many events were sent. Once an event
// fails, later events with the same key are held back until it goes out.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	leasedAt := time.Now()
	ids := make([]int64, 0, len(events))
	blocked := make(map[string]bool)
	var held []int64
	for i, e := range events {
		if time.Since(leasedAt) > r.lease/2 {
			r.extend(ctx, events[i:])
			leasedAt = time.Now()
		}
		if blocked[e.AggregateID] {
			held = append(held, e.ID)
			continue
		}
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			blocked[e.AggregateID] = true
			r.fail(ctx, e, err)
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(held) > 0 {
		if err := r.store.Release(ctx, held); err != nil {
			r.log.Error("relay release error", "relay_id", r.relayID, "outbox_ids", held, "err", err)
		}
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (r *Relay) fail(ctx context.Context, e Event, cause error) {
	attempt := e.RetryCount + 1
	delay := r.retryDelay(attempt)
	if err := r.store.MarkFailed(ctx, e.ID, cause.Error(), time.Now().Add(delay), r.maxRetries); err != nil {
		r.log.Error("relay mark failed error", "outbox_id", e.ID, "err", err)
		return
	}
	if attempt >= r.maxRetries {
		r.log.Error("outbox event keeps failing", "outbox_id", e.ID, "event_id", e.EventID, "key", e.AggregateID, "attempts", attempt, "retry_in", delay)
	}
}

// retryDelay is the wait before the given attempt is followed by another one.
func (r *Relay) retryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval: r.retryInitial,
		Multiplier:      2,
		MaxInterval:     r.retryMax,
	}
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempt && d < r.retryMax; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (r *Relay) extend(ctx context.Context, remaining []Event) {
	ids := make([]int64, 0, len(remaining))
	for _, e := range remaining {
		ids = append(ids, e.ID)
	}
	if err := r.store.ExtendLease(ctx, r.relayID, ids, r.lease); err != nil {
		r.log.Warn("relay extend lease error", "relay_id", r.relayID, "err", err)
	}
}
