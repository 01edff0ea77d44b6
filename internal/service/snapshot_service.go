package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/repository"
	apperrors "github.com/spec-kit/gate-checkin/pkg/util/errorutil"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = 1

// Snapshot is the portable dump of the store. A nil collection is left
// untouched on import; an empty one clears the table.
type Snapshot struct {
	Version       int                  `json:"version"`
	ExportedAt    int64                `json:"exported_at"`
	Events        []EventRecord        `json:"events"`
	Registrations []RegistrationRecord `json:"registrations"`
	Checkins      []CheckinRecord      `json:"checkins"`
	Announcements []AnnouncementRecord `json:"announcements"`
}

// EventRecord is the snapshot form of an event.
type EventRecord struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Date        string `json:"date" validate:"required,calendar_date"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Capacity    int    `json:"capacity"`
	Track       string `json:"track,omitempty"`
	Description string `json:"description,omitempty"`
}

// RegistrationRecord is the snapshot form of a registration. CheckedIn is the effective flag.
type RegistrationRecord struct {
	TicketID   string `json:"ticket_id" validate:"required,ticket_id"`
	EventID    string `json:"event_id" validate:"required"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	TicketType string `json:"ticket_type"`
	Notes      string `json:"notes,omitempty"`
	CheckedIn  bool   `json:"checked_in"`
	TS         int64  `json:"ts"`
}

// CheckinRecord is the snapshot form of a ledger entry.
type CheckinRecord struct {
	ID       string `json:"id" validate:"required"`
	TicketID string `json:"ticket_id" validate:"required,ticket_id"`
	TS       int64  `json:"ts"`
}

// AnnouncementRecord is the snapshot form of an announcement.
type AnnouncementRecord struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title"`
	Body  string `json:"body"`
	TS    int64  `json:"ts"`
}

// importBatch wraps the collections for validation.
type importBatch struct {
	Events        []EventRecord        `json:"events" validate:"dive"`
	Registrations []RegistrationRecord `json:"registrations" validate:"dive"`
	Checkins      []CheckinRecord      `json:"checkins" validate:"dive"`
	Announcements []AnnouncementRecord `json:"announcements" validate:"dive"`
}

// SnapshotService exports and imports the whole store.
type SnapshotService struct {
	events        repository.EventRepository
	registrations repository.RegistrationRepository
	checkins      repository.CheckinRepository
	announcements repository.AnnouncementRepository
	tx            repository.Transactor
	gate          *auth.Gate
	clock         clock.Clock
	logger        *zap.Logger
}

// SnapshotDependencies bundles requirements.
type SnapshotDependencies struct {
	EventRepo        repository.EventRepository
	RegistrationRepo repository.RegistrationRepository
	CheckinRepo      repository.CheckinRepository
	AnnouncementRepo repository.AnnouncementRepository
	Tx               repository.Transactor
	Gate             *auth.Gate
	Clock            clock.Clock
	Logger           *zap.Logger
}

// NewSnapshotService constructs the service.
func NewSnapshotService(deps SnapshotDependencies) *SnapshotService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		events:        deps.EventRepo,
		registrations: deps.RegistrationRepo,
		checkins:      deps.CheckinRepo,
		announcements: deps.AnnouncementRepo,
		tx:            deps.Tx,
		gate:          deps.Gate,
		clock:         deps.Clock,
		logger:        logger,
	}
}

// Export reads every collection inside one transaction.
func (s *SnapshotService) Export(ctx context.Context, p *auth.Principal) (*Snapshot, error) {
	if err := s.gate.Check(p, auth.CapManageData); err != nil {
		return nil, err
	}

	snap := &Snapshot{Version: SnapshotVersion, ExportedAt: s.clock.Now().UnixMilli()}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		evts, err := s.events.List(ctx)
		if err != nil {
			return storageError("export events", err)
		}
		regs, err := s.registrations.ListAll(ctx)
		if err != nil {
			return storageError("export registrations", err)
		}
		entries, err := s.checkins.ListAll(ctx)
		if err != nil {
			return storageError("export checkins", err)
		}
		items, err := s.announcements.List(ctx)
		if err != nil {
			return storageError("export announcements", err)
		}

		snap.Events = make([]EventRecord, 0, len(evts))
		for _, e := range evts {
			snap.Events = append(snap.Events, EventRecord(e))
		}
		snap.Registrations = make([]RegistrationRecord, 0, len(regs))
		for _, r := range regs {
			snap.Registrations = append(snap.Registrations, RegistrationRecord{
				TicketID:   r.TicketID,
				EventID:    r.EventID,
				Name:       r.Name,
				Email:      r.Email,
				TicketType: r.TicketType,
				Notes:      r.Notes,
				CheckedIn:  r.CheckedIn,
				TS:         r.CreatedAt.UnixMilli(),
			})
		}
		snap.Checkins = make([]CheckinRecord, 0, len(entries))
		for _, c := range entries {
			snap.Checkins = append(snap.Checkins, CheckinRecord{ID: c.ID, TicketID: c.TicketID, TS: c.At.UnixMilli()})
		}
		snap.Announcements = make([]AnnouncementRecord, 0, len(items))
		for _, a := range items {
			snap.Announcements = append(snap.Announcements, AnnouncementRecord{ID: a.ID, Title: a.Title, Body: a.Body, TS: a.CreatedAt.UnixMilli()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Import replaces each collection present in snap, in one transaction.
// Identifiers and flags are stored as given.
func (s *SnapshotService) Import(ctx context.Context, p *auth.Principal, snap *Snapshot) error {
	if err := s.gate.Check(p, auth.CapManageData); err != nil {
		return err
	}
	if snap == nil {
		return apperrors.NewValidationError("empty snapshot", nil)
	}
	if err := apperrors.ValidateStruct("invalid snapshot", importBatch{
		Events:        snap.Events,
		Registrations: snap.Registrations,
		Checkins:      snap.Checkins,
		Announcements: snap.Announcements,
	}); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if snap.Events != nil {
			evts := make([]domain.Event, 0, len(snap.Events))
			for _, e := range snap.Events {
				evts = append(evts, domain.Event(e))
			}
			if err := s.events.ReplaceAll(ctx, evts); err != nil {
				return importError("events", err)
			}
		}
		if snap.Registrations != nil {
			regs := make([]domain.Registration, 0, len(snap.Registrations))
			for _, r := range snap.Registrations {
				regs = append(regs, domain.Registration{
					TicketID:   r.TicketID,
					EventID:    r.EventID,
					Name:       r.Name,
					Email:      normalizeEmail(r.Email),
					TicketType: r.TicketType,
					Notes:      r.Notes,
					CheckedIn:  r.CheckedIn,
					CreatedAt:  time.UnixMilli(r.TS).UTC(),
				})
			}
			if err := s.registrations.ReplaceAll(ctx, regs); err != nil {
				return importError("registrations", err)
			}
		}
		if snap.Checkins != nil {
			entries := make([]domain.Checkin, 0, len(snap.Checkins))
			for _, c := range snap.Checkins {
				entries = append(entries, domain.Checkin{ID: c.ID, TicketID: c.TicketID, At: time.UnixMilli(c.TS).UTC()})
			}
			if err := s.checkins.ReplaceAll(ctx, entries); err != nil {
				return importError("checkins", err)
			}
		}
		if snap.Announcements != nil {
			items := make([]domain.Announcement, 0, len(snap.Announcements))
			for _, a := range snap.Announcements {
				items = append(items, domain.Announcement{ID: a.ID, Title: a.Title, Body: a.Body, CreatedAt: time.UnixMilli(a.TS).UTC()})
			}
			if err := s.announcements.ReplaceAll(ctx, items); err != nil {
				return importError("announcements", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("snapshot imported",
		zap.Int("events", len(snap.Events)),
		zap.Int("registrations", len(snap.Registrations)),
		zap.Int("checkins", len(snap.Checkins)),
		zap.Int("announcements", len(snap.Announcements)))
	return nil
}

// WriteRegistrationsCSV writes every registration as CSV.
func (s *SnapshotService) WriteRegistrationsCSV(ctx context.Context, p *auth.Principal, w io.Writer) error {
	if err := s.gate.Check(p, auth.CapManageData); err != nil {
		return err
	}
	regs, err := s.registrations.ListAll(ctx)
	if err != nil {
		return storageError("list registrations", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"TicketId", "EventId", "Name", "Email", "TicketType", "CheckedIn", "Timestamp"}); err != nil {
		return apperrors.NewInternalError(err)
	}
	for _, r := range regs {
		if err := cw.Write([]string{
			r.TicketID,
			r.EventID,
			r.Name,
			r.Email,
			r.TicketType,
			strconv.FormatBool(r.CheckedIn),
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// DecodeSnapshot parses a JSON snapshot. Unknown top-level keys such as
// user accounts are ignored.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, apperrors.NewValidationError("invalid snapshot JSON", map[string]any{"body": err.Error()})
	}
	return &snap, nil
}

func importError(collection string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewValidationError("invalid snapshot", map[string]any{collection: "duplicate identifier"})
	}
	return storageError(fmt.Sprintf("import %s", collection), err)
}
