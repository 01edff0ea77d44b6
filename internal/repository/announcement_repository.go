package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/persistence"
)

// AnnouncementRepository stores organizer announcements.
type AnnouncementRepository interface {
	Create(ctx context.Context, a *domain.Announcement) error
	List(ctx context.Context) ([]domain.Announcement, error)
	Count(ctx context.Context) (int, error)
	ReplaceAll(ctx context.Context, items []domain.Announcement) error
}

type announcementRepository struct {
	sqlStore
}

// NewAnnouncementRepository instantiates repository.
func NewAnnouncementRepository(db *persistence.Database) AnnouncementRepository {
	return &announcementRepository{sqlStore{db: db}}
}

func (r *announcementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const query = `INSERT INTO announcements (id, title, body, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.exec(ctx, query, a.ID, a.Title, a.Body, toMillis(a.CreatedAt)); err != nil {
		return wrapInsertErr("create announcement", err)
	}
	return nil
}

// List returns announcements newest first.
func (r *announcementRepository) List(ctx context.Context) ([]domain.Announcement, error) {
	rows, err := r.query(ctx, `SELECT id, title, body, created_at FROM announcements ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Announcement, 0)
	for rows.Next() {
		var (
			a       domain.Announcement
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &created); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		a.CreatedAt = fromMillis(created)
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *announcementRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count announcements: %w", err)
	}
	return n, nil
}

func (r *announcementRepository) ReplaceAll(ctx context.Context, items []domain.Announcement) error {
	if _, err := r.exec(ctx, `DELETE FROM announcements`); err != nil {
		return fmt.Errorf("clear announcements: %w", err)
	}
	for i := range items {
		if err := r.Create(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}
