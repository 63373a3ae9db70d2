package repository

import (
	"context"
	"fmt"
	"time"
)

// NextOrderSequence bumps the counter row for day and returns the new value. The row stays
// locked until the surrounding transaction ends, so same-day creators queue behind each
// other and a rollback hands the value back.
func (t *txRepository) NextOrderSequence(ctx context.Context, day time.Time) (int64, error) {
	query := `INSERT INTO order_number_sequences (day, last_value)
	          VALUES ($1::date, 1)
	          ON CONFLICT (day) DO UPDATE SET last_value = order_number_sequences.last_value + 1
	          RETURNING last_value`

	var seq int64
	if err := t.tx.QueryRowContext(ctx, query, day.Format(time.DateOnly)).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return seq, nil
}
