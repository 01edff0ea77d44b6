package service

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/persistence"
	"github.com/spec-kit/gate-checkin/internal/repository"
	"github.com/spec-kit/gate-checkin/internal/ticketid"
)

var testStart = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db            *persistence.Database
	clock         *clock.Fake
	gate          *auth.Gate
	tx            *repository.TxManager
	users         repository.UserRepository
	eventRepo     repository.EventRepository
	registrations repository.RegistrationRepository
	checkins      repository.CheckinRepository
	announcements repository.AnnouncementRepository
	dispatcher    events.Dispatcher
	recorded      *recorder

	auth         *AuthService
	events       *EventService
	regs         *RegistrationService
	redemption   *RedemptionService
	ledger       *LedgerService
	snapshot     *SnapshotService
	announcement *AnnouncementService

	organizer *auth.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, config.StoreConfig{
		Driver: persistence.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "gate.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(ctx, db, zap.NewNop()))
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	env := &testEnv{
		db:            db,
		clock:         clock.NewFake(testStart),
		gate:          auth.NewGate(),
		tx:            repository.NewTxManager(db),
		users:         repository.NewUserRepository(db),
		eventRepo:     repository.NewEventRepository(db),
		registrations: repository.NewRegistrationRepository(db),
		checkins:      repository.NewCheckinRepository(db),
		announcements: repository.NewAnnouncementRepository(db),
		dispatcher:    events.NewInMemoryDispatcher(logger),
		recorded:      &recorder{},
	}
	for _, et := range []events.EventType{
		events.EventTicketIssued,
		events.EventTicketRedeemed,
		events.EventDuplicateScan,
		events.EventUnknownScan,
		events.EventAnnouncementPosted,
	} {
		env.dispatcher.Subscribe(et, env.recorded.handle)
	}

	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
		OrganizerInviteCode:   "INVITE",
		DefaultOrganizerEmail: "Admin@Campus.test",
		DefaultOrganizerName:  "Admin",
		DefaultOrganizerPass:  "Admin@123",
	}}
	env.auth = NewAuthService(cfg, AuthDependencies{UserRepo: env.users, Gate: env.gate, Clock: env.clock, Logger: logger})
	env.events = NewEventService(EventDependencies{EventRepo: env.eventRepo, Gate: env.gate, Clock: env.clock, Logger: logger})
	env.regs = NewRegistrationService(RegistrationDependencies{
		RegistrationRepo: env.registrations,
		EventRepo:        env.eventRepo,
		Gate:             env.gate,
		IDs:              ticketid.New(env.clock),
		Clock:            env.clock,
		Dispatcher:       env.dispatcher,
		Logger:           logger,
	})
	env.redemption = env.newRedemption(env.registrations, env.checkins)
	env.ledger = NewLedgerService(LedgerDependencies{
		CheckinRepo:      env.checkins,
		RegistrationRepo: env.registrations,
		EventRepo:        env.eventRepo,
		Gate:             env.gate,
	})
	env.snapshot = NewSnapshotService(SnapshotDependencies{
		EventRepo:        env.eventRepo,
		RegistrationRepo: env.registrations,
		CheckinRepo:      env.checkins,
		AnnouncementRepo: env.announcements,
		Tx:               env.tx,
		Gate:             env.gate,
		Clock:            env.clock,
		Logger:           logger,
	})
	env.announcement = NewAnnouncementService(AnnouncementDependencies{
		AnnouncementRepo: env.announcements,
		Gate:             env.gate,
		Clock:            env.clock,
		Dispatcher:       env.dispatcher,
	})
	env.organizer = &auth.Principal{UserID: "org-1", Email: "admin@campus.test", Name: "Admin", Role: domain.RoleOrganizer}
	return env
}

func (env *testEnv) newRedemption(regs repository.RegistrationRepository, checkins repository.CheckinRepository) *RedemptionService {
	return NewRedemptionService(RedemptionDependencies{
		RegistrationRepo: regs,
		CheckinRepo:      checkins,
		EventRepo:        env.eventRepo,
		Tx:               env.tx,
		Gate:             env.gate,
		Clock:            env.clock,
		Dispatcher:       env.dispatcher,
		Logger:           zap.NewNop(),
	})
}

func attendee(email string) *auth.Principal {
	return &auth.Principal{UserID: "user-" + email, Email: email, Name: "Holder " + email, Role: domain.RoleAttendee}
}

func (env *testEnv) mustEvent(t *testing.T, title string) *domain.Event {
	t.Helper()
	e, err := env.events.Create(context.Background(), env.organizer, EventCreateInput{
		Title:     title,
		Date:      "2025-03-20",
		StartTime: "10:00",
		EndTime:   "12:00",
		Capacity:  100,
	})
	require.NoError(t, err)
	return e
}

func (env *testEnv) mustTicket(t *testing.T, eventID, email string) *domain.Registration {
	t.Helper()
	reg, err := env.regs.Create(context.Background(), attendee(email), RegistrationInput{
		EventID:    eventID,
		TicketType: "General",
	})
	require.NoError(t, err)
	return reg
}

func (env *testEnv) ledgerCount(t *testing.T, ticketID string) int {
	t.Helper()
	var n int
	require.NoError(t, env.db.DB.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM checkins WHERE ticket_id = ?`, ticketID).Scan(&n))
	return n
}

func (env *testEnv) storedFlag(t *testing.T, ticketID string) bool {
	t.Helper()
	var flag bool
	require.NoError(t, env.db.DB.QueryRowContext(context.Background(),
		`SELECT checked_in FROM registrations WHERE ticket_id = ?`, ticketID).Scan(&flag))
	return flag
}

func jsonEncode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
