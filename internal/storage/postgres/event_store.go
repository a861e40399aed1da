package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gatherhall/lifecycle/internal/app"
	"github.com/gatherhall/lifecycle/internal/domain"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, name, status, starts_at, ends_at, created_at, updated_at`

func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (id, name, status, starts_at, ends_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.exec(ctx, stmt,
		event.ID,
		event.Name,
		event.Status,
		event.StartsAt,
		event.EndsAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	ev, err := scanEvent(s.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// UpdateEventStatus is the conditional write the executor relies on:
// the row changes only if the stored status still equals from.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, from, to domain.Status, change app.EventChange, now time.Time) (bool, error) {
	const stmt = `
UPDATE events
SET status = $3,
    starts_at = COALESCE($4, starts_at),
    ends_at = COALESCE($5, ends_at),
    updated_at = $6
WHERE id = $1 AND status = $2`

	tag, err := s.exec(ctx, stmt, id, from, to, change.StartsAt, change.EndsAt, now)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update event status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListEventsDueToStart(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM events
WHERE status = 'published' AND starts_at IS NOT NULL AND starts_at <= $1
ORDER BY starts_at
LIMIT $2`

	return s.listEvents(ctx, "list events due to start", query, now, limit)
}

func (s *Store) ListEventsDueToEnd(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM events
WHERE status = 'live' AND ends_at IS NOT NULL AND ends_at <= $1
ORDER BY ends_at
LIMIT $2`

	return s.listEvents(ctx, "list events due to end", query, now, limit)
}

func (s *Store) ListScheduledEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM events
WHERE status IN ('published', 'live')
ORDER BY starts_at`

	return s.listEvents(ctx, "list scheduled events", query)
}

// Only published and live events can drift by time alone, so the
// reconciler's sample is restricted to them.
func (s *Store) ListRecentlyUpdatedEvents(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM events
WHERE status IN ('published', 'live') AND updated_at >= $1
ORDER BY updated_at DESC
LIMIT $2`

	return s.listEvents(ctx, "list recently updated events", query, since, limit)
}

func (s *Store) listEvents(ctx context.Context, op, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var ev domain.Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.Status, &ev.StartsAt, &ev.EndsAt, &ev.CreatedAt, &ev.UpdatedAt)
	return ev, err
}
