package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/persistence"
)

// EventRepository stores scheduled events. Events are never updated.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	List(ctx context.Context) ([]domain.Event, error)
	Count(ctx context.Context) (int, error)
	ReplaceAll(ctx context.Context, events []domain.Event) error
}

type eventRepository struct {
	sqlStore
}

// NewEventRepository instantiates repository.
func NewEventRepository(db *persistence.Database) EventRepository {
	return &eventRepository{sqlStore{db: db}}
}

const eventColumns = `id, title, event_date, start_time, end_time, location, capacity, track, description`

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return r.insert(ctx, event)
}

func (r *eventRepository) insert(ctx context.Context, event *domain.Event) error {
	const query = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.exec(ctx, query,
		event.ID,
		event.Title,
		event.Date,
		event.StartTime,
		event.EndTime,
		event.Location,
		event.Capacity,
		event.Track,
		event.Description,
	); err != nil {
		return wrapInsertErr("create event", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	event, err := scanEvent(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *eventRepository) List(ctx context.Context) ([]domain.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events ORDER BY event_date, start_time, title, id`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (r *eventRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ReplaceAll deletes every event and inserts events verbatim. Call inside WithTx.
func (r *eventRepository) ReplaceAll(ctx context.Context, events []domain.Event) error {
	if _, err := r.exec(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for i := range events {
		if err := r.insert(ctx, &events[i]); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.StartTime,
		&event.EndTime,
		&event.Location,
		&event.Capacity,
		&event.Track,
		&event.Description,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
