package postgres

import (
	"context"
	"fmt"

	"github.com/gatherhall/lifecycle/internal/domain"
)

// AppendTransition writes one immutable audit ledger entry. There is no
// update or delete path for this table.
func (s *Store) AppendTransition(ctx context.Context, rec domain.TransitionRecord) error {
	const stmt = `
INSERT INTO status_transitions (id, aggregate_kind, aggregate_id, from_status, to_status, actor, reason, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var metadata any
	if len(rec.Metadata) > 0 {
		metadata = rec.Metadata
	}

	_, err := s.exec(ctx, stmt,
		rec.ID,
		rec.Kind,
		rec.AggregateID,
		rec.From,
		rec.To,
		rec.Actor,
		rec.Reason,
		metadata,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// ListTransitions returns the aggregate's audit history, newest first.
func (s *Store) ListTransitions(ctx context.Context, kind domain.AggregateKind, id string) ([]domain.TransitionRecord, error) {
	const query = `
SELECT id, aggregate_kind, aggregate_id, from_status, to_status, actor, reason, COALESCE(metadata, '{}'::jsonb), created_at
FROM status_transitions
WHERE aggregate_kind = $1 AND aggregate_id = $2
ORDER BY created_at DESC, id`

	rows, err := s.query(ctx, query, kind, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Kind, &rec.AggregateID,
			&rec.From, &rec.To,
			&rec.Actor, &rec.Reason, &rec.Metadata, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list transitions: %w", err)
		}
		if len(rec.Metadata) == 0 {
			rec.Metadata = nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return records, nil
}
