package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/food-order-events/internal/order/domain"
	"github.com/dmehra2102/food-order-events/pkg/outbox"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

// OutboxPublisher records order events in the outbox table. The relay ships them
// to the bus, so a broker outage never blocks the request path.
type OutboxPublisher struct {
	log     *slog.Logger
	pool    *pgxpool.Pool
	headers map[string]string
}

func NewOutboxPublisher(log *slog.Logger, pool *pgxpool.Pool, source string) *OutboxPublisher {
	return &OutboxPublisher{log: log, pool: pool, headers: map[string]string{"source": source}}
}

func (p *OutboxPublisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, event_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending') ON CONFLICT (event_id) DO NOTHING`,
		"order", strconv.FormatInt(ev.OrderID, 10), ev.EventID, domain.EventTypeOrderStatusChanged, payload, p.headers, tracing.Traceparent(ctx))
	return err
}

// lockBatchKey is the advisory lock serializing LockBatch across relays.
const lockBatchKey int64 = 0x6f7574626f78

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// One leaser at a time, so the ordering guard below cannot race another relay.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockBatchKey); err != nil {
		return nil, err
	}

	// A row is held back while an older row of the same aggregate is waiting
	// for its retry or leased to a live relay.
	rows, err := tx.Query(ctx, `
		SELECT o.id, o.aggregate_type, o.aggregate_id, o.event_id, o.type, o.payload, o.headers, o.traceparent, o.created_at, o.retry_count
		FROM outbox o
		WHERE ((o.status IN ('pending', 'failed') AND o.next_attempt_at <= now())
		    OR (o.status = 'in_progress' AND o.lease_until < now()))
		  AND NOT EXISTS (
		    SELECT 1 FROM outbox prev
		    WHERE prev.aggregate_type = o.aggregate_type
		      AND prev.aggregate_id = o.aggregate_id
		      AND prev.id < o.id
		      AND ((prev.status IN ('pending', 'failed') AND prev.next_attempt_at > now())
		        OR (prev.status = 'in_progress' AND prev.lease_until >= now())))
		ORDER BY o.id
		FOR UPDATE OF o SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.EventID, &event.Type,
			&event.Payload, &event.Headers, &event.Traceparent, &event.CreatedAt, &event.RetryCount); err != nil {
			return nil, err
		}
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + make_interval(secs => $2) WHERE id = ANY($3)`, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string, retryAt time.Time, maxRetries int) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    lease_until = NULL,
		    next_attempt_at = $3,
		    status = CASE WHEN retry_count + 1 >= $4 THEN 'failed' ELSE 'pending' END
		WHERE id = $1`, id, errMsg, retryAt, maxRetries)
	if err == nil {
		s.log.Warn("outbox event failed", "outbox_id", id, "retry_at", retryAt, "err", errMsg)
	}
	return err
}

func (s *OutboxStore) Release(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='pending', lease_until=NULL WHERE id = ANY($1) AND status='in_progress'`, ids)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id=$3`, lease.Seconds(), ids, relayID)
	return err
}
