package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/persistence"
)

// RegistrationRepository persists tickets. Reads report the effective
// check-in flag: the stored flag, or true when a ledger entry exists.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *domain.Registration) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Registration, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Registration, error)
	ListAll(ctx context.Context) ([]domain.Registration, error)
	// SetCheckedIn flips the stored flag from false to true and reports whether it changed.
	SetCheckedIn(ctx context.Context, ticketID string) (bool, error)
	// MarkCheckedIn is the idempotent form of SetCheckedIn.
	MarkCheckedIn(ctx context.Context, ticketID string) (*domain.Registration, error)
	// ReconcileFlags persists the flag for tickets that have a ledger entry but a false flag.
	ReconcileFlags(ctx context.Context) (int, error)
	CountByEvent(ctx context.Context) (map[string]int, error)
	ReplaceAll(ctx context.Context, regs []domain.Registration) error
}

type registrationRepository struct {
	sqlStore
}

// NewRegistrationRepository instantiates repository.
func NewRegistrationRepository(db *persistence.Database) RegistrationRepository {
	return &registrationRepository{sqlStore{db: db}}
}

const registrationSelect = `
        SELECT r.ticket_id, r.event_id, r.name, r.email, r.ticket_type, r.notes, r.created_at,
               (r.checked_in OR EXISTS (SELECT 1 FROM checkins c WHERE c.ticket_id = r.ticket_id))
        FROM registrations r`

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	const query = `
        INSERT INTO registrations (ticket_id, event_id, name, email, ticket_type, notes, created_at, checked_in)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.exec(ctx, query,
		reg.TicketID,
		reg.EventID,
		reg.Name,
		reg.Email,
		reg.TicketType,
		reg.Notes,
		toMillis(reg.CreatedAt),
		reg.CheckedIn,
	); err != nil {
		return wrapInsertErr("create registration", err)
	}
	return nil
}

func (r *registrationRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.queryRow(ctx, registrationSelect+` WHERE r.ticket_id = ?`, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r *registrationRepository) ListByEmail(ctx context.Context, email string) ([]domain.Registration, error) {
	return r.list(ctx, registrationSelect+` WHERE r.email = ? ORDER BY r.created_at, r.ticket_id`, email)
}

func (r *registrationRepository) ListAll(ctx context.Context) ([]domain.Registration, error) {
	return r.list(ctx, registrationSelect+` ORDER BY r.created_at, r.ticket_id`)
}

func (r *registrationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Registration, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *registrationRepository) SetCheckedIn(ctx context.Context, ticketID string) (bool, error) {
	const query = `UPDATE registrations SET checked_in = TRUE WHERE ticket_id = ? AND checked_in = FALSE`
	res, err := r.exec(ctx, query, ticketID)
	if err != nil {
		return false, fmt.Errorf("set checked in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set checked in: %w", err)
	}
	return n > 0, nil
}

func (r *registrationRepository) MarkCheckedIn(ctx context.Context, ticketID string) (*domain.Registration, error) {
	if _, err := r.SetCheckedIn(ctx, ticketID); err != nil {
		return nil, err
	}
	return r.GetByTicketID(ctx, ticketID)
}

func (r *registrationRepository) ReconcileFlags(ctx context.Context) (int, error) {
	const query = `
        UPDATE registrations SET checked_in = TRUE
        WHERE checked_in = FALSE
          AND EXISTS (SELECT 1 FROM checkins c WHERE c.ticket_id = registrations.ticket_id)`
	res, err := r.exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("reconcile flags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reconcile flags: %w", err)
	}
	return int(n), nil
}

func (r *registrationRepository) CountByEvent(ctx context.Context) (map[string]int, error) {
	rows, err := r.query(ctx, `SELECT event_id, COUNT(*) FROM registrations GROUP BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eventID string
			n       int
		)
		if err := rows.Scan(&eventID, &n); err != nil {
			return nil, fmt.Errorf("scan registration count: %w", err)
		}
		counts[eventID] = n
	}
	return counts, rows.Err()
}

// ReplaceAll deletes every registration and inserts regs with their identifiers and flags verbatim.
func (r *registrationRepository) ReplaceAll(ctx context.Context, regs []domain.Registration) error {
	if _, err := r.exec(ctx, `DELETE FROM registrations`); err != nil {
		return fmt.Errorf("clear registrations: %w", err)
	}
	for i := range regs {
		if err := r.Create(ctx, &regs[i]); err != nil {
			return err
		}
	}
	return nil
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	var (
		reg     domain.Registration
		created int64
	)
	if err := row.Scan(
		&reg.TicketID,
		&reg.EventID,
		&reg.Name,
		&reg.Email,
		&reg.TicketType,
		&reg.Notes,
		&created,
		&reg.CheckedIn,
	); err != nil {
		return nil, err
	}
	reg.CreatedAt = fromMillis(created)
	return &reg, nil
}
