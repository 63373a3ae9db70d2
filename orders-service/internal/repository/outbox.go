package repository

import (
	"context"
	"fmt"
)

func (t *txRepository) AppendOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	query := `INSERT INTO orders_outbox (id, aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := t.tx.ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetUnprocessedEvents returns the oldest unpublished events. Event ids are ULIDs, so
// ordering by id is ordering by creation time.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM orders_outbox
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders_outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return expectOneRow(res, fmt.Errorf("outbox event %s not found", id))
}
