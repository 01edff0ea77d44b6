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

// CheckinRepository is the append-only check-in ledger.
// A second entry for the same ticket fails with ErrDuplicate.
type CheckinRepository interface {
	Append(ctx context.Context, checkin *domain.Checkin) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Checkin, error)
	ListAll(ctx context.Context) ([]domain.Checkin, error)
	// CountByEvent resolves each entry to its event through the registrations table.
	CountByEvent(ctx context.Context) (map[string]int, error)
	ReplaceAll(ctx context.Context, checkins []domain.Checkin) error
}

type checkinRepository struct {
	sqlStore
}

// NewCheckinRepository instantiates repository.
func NewCheckinRepository(db *persistence.Database) CheckinRepository {
	return &checkinRepository{sqlStore{db: db}}
}

func (r *checkinRepository) Append(ctx context.Context, checkin *domain.Checkin) error {
	if checkin.ID == "" {
		checkin.ID = uuid.NewString()
	}
	const query = `INSERT INTO checkins (id, ticket_id, checked_in_at) VALUES (?, ?, ?)`
	if _, err := r.exec(ctx, query, checkin.ID, checkin.TicketID, toMillis(checkin.At)); err != nil {
		return wrapInsertErr("append checkin", err)
	}
	return nil
}

func (r *checkinRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Checkin, error) {
	const query = `SELECT id, ticket_id, checked_in_at FROM checkins WHERE ticket_id = ?`
	checkin, err := scanCheckin(r.queryRow(ctx, query, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return checkin, nil
}

func (r *checkinRepository) ListAll(ctx context.Context) ([]domain.Checkin, error) {
	rows, err := r.query(ctx, `SELECT id, ticket_id, checked_in_at FROM checkins ORDER BY checked_in_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()

	checkins := make([]domain.Checkin, 0)
	for rows.Next() {
		checkin, err := scanCheckin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		checkins = append(checkins, *checkin)
	}
	return checkins, rows.Err()
}

func (r *checkinRepository) CountByEvent(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT r.event_id, COUNT(*)
        FROM checkins c
        JOIN registrations r ON r.ticket_id = c.ticket_id
        GROUP BY r.event_id`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count checkins: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eventID string
			n       int
		)
		if err := rows.Scan(&eventID, &n); err != nil {
			return nil, fmt.Errorf("scan checkin count: %w", err)
		}
		counts[eventID] = n
	}
	return counts, rows.Err()
}

func (r *checkinRepository) ReplaceAll(ctx context.Context, checkins []domain.Checkin) error {
	if _, err := r.exec(ctx, `DELETE FROM checkins`); err != nil {
		return fmt.Errorf("clear checkins: %w", err)
	}
	for i := range checkins {
		if err := r.Append(ctx, &checkins[i]); err != nil {
			return err
		}
	}
	return nil
}

func scanCheckin(row rowScanner) (*domain.Checkin, error) {
	var (
		checkin domain.Checkin
		at      int64
	)
	if err := row.Scan(&checkin.ID, &checkin.TicketID, &at); err != nil {
		return nil, err
	}
	checkin.At = fromMillis(at)
	return &checkin, nil
}
