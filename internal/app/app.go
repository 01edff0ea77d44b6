// Package app wires repositories, services and transports into one
// container shared by the HTTP server and the command line tools.
package app

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/gate-checkin/internal/api/http"
	"github.com/spec-kit/gate-checkin/internal/api/http/handlers"
	"github.com/spec-kit/gate-checkin/internal/auth"
	"github.com/spec-kit/gate-checkin/internal/clock"
	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/debounce"
	"github.com/spec-kit/gate-checkin/internal/events"
	"github.com/spec-kit/gate-checkin/internal/observability"
	"github.com/spec-kit/gate-checkin/internal/persistence"
	"github.com/spec-kit/gate-checkin/internal/repository"
	"github.com/spec-kit/gate-checkin/internal/scanner"
	"github.com/spec-kit/gate-checkin/internal/service"
	"github.com/spec-kit/gate-checkin/internal/ticketid"
	"github.com/spec-kit/gate-checkin/internal/worker"
)

// Options carries optional collaborators. Zero values fall back to defaults.
type Options struct {
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics
	// Redis backs the debounce window when the redis backend is configured.
	Redis *persistence.Redis
	// Camera overrides the camera configured by path.
	Camera scanner.CameraSource
	// CameraPath overrides SCANNER_CAMERA_PATH when Camera is nil.
	CameraPath string
	// OnScan receives every scanner result, for kiosk displays.
	OnScan func(scanner.Result)
}

// Container holds every long-lived component.
type Container struct {
	Config     *config.Config
	DB         *persistence.Database
	Redis      *persistence.Redis
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Gate       *auth.Gate
	Dispatcher events.Dispatcher
	Tx         *repository.TxManager

	Users         repository.UserRepository
	Events        repository.EventRepository
	Registrations repository.RegistrationRepository
	Checkins      repository.CheckinRepository
	Announcements repository.AnnouncementRepository

	AuthService         *service.AuthService
	EventService        *service.EventService
	AnnouncementService *service.AnnouncementService
	RegistrationService *service.RegistrationService
	RedemptionService   *service.RedemptionService
	LedgerService       *service.LedgerService
	SnapshotService     *service.SnapshotService
	NotificationService *service.NotificationService

	Scanner *scanner.Manager
	camera  scanner.CameraSource
	onScan  func(scanner.Result)
}

// New builds the container on an open, migrated database.
func New(cfg *config.Config, db *persistence.Database, opts Options) *Container {
	c := &Container{
		Config:  cfg,
		DB:      db,
		Redis:   opts.Redis,
		Clock:   opts.Clock,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
		Gate:    auth.NewGate(),
		Tx:      repository.NewTxManager(db),
		camera:  opts.Camera,
		onScan:  opts.OnScan,
	}
	if c.Clock == nil {
		c.Clock = clock.NewSystem()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Metrics == nil {
		c.Metrics = observability.NewMetrics()
	}
	if c.camera == nil {
		path := opts.CameraPath
		if path == "" {
			path = cfg.Scanner.CameraPath
		}
		if path != "" {
			c.camera = scanner.FileCameraSource(path, cfg.Scanner.MaxFramePixels)
		}
	}
	c.Dispatcher = events.NewInMemoryDispatcher(c.Logger)

	c.Users = repository.NewUserRepository(db)
	c.Events = repository.NewEventRepository(db)
	c.Registrations = repository.NewRegistrationRepository(db)
	c.Checkins = repository.NewCheckinRepository(db)
	c.Announcements = repository.NewAnnouncementRepository(db)

	c.AuthService = service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: c.Users,
		Gate:     c.Gate,
		Clock:    c.Clock,
		Logger:   c.Logger,
	})
	c.EventService = service.NewEventService(service.EventDependencies{
		EventRepo: c.Events,
		Gate:      c.Gate,
		Clock:     c.Clock,
		Logger:    c.Logger,
	})
	c.AnnouncementService = service.NewAnnouncementService(service.AnnouncementDependencies{
		AnnouncementRepo: c.Announcements,
		Gate:             c.Gate,
		Clock:            c.Clock,
		Dispatcher:       c.Dispatcher,
	})
	c.RegistrationService = service.NewRegistrationService(service.RegistrationDependencies{
		RegistrationRepo: c.Registrations,
		EventRepo:        c.Events,
		Gate:             c.Gate,
		IDs:              ticketid.New(c.Clock),
		Clock:            c.Clock,
		Dispatcher:       c.Dispatcher,
		Logger:           c.Logger,
	})
	c.RedemptionService = service.NewRedemptionService(service.RedemptionDependencies{
		RegistrationRepo: c.Registrations,
		CheckinRepo:      c.Checkins,
		EventRepo:        c.Events,
		Tx:               c.Tx,
		Gate:             c.Gate,
		Clock:            c.Clock,
		Dispatcher:       c.Dispatcher,
		Logger:           c.Logger,
	})
	c.LedgerService = service.NewLedgerService(service.LedgerDependencies{
		CheckinRepo:      c.Checkins,
		RegistrationRepo: c.Registrations,
		EventRepo:        c.Events,
		Gate:             c.Gate,
	})
	c.SnapshotService = service.NewSnapshotService(service.SnapshotDependencies{
		EventRepo:        c.Events,
		RegistrationRepo: c.Registrations,
		CheckinRepo:      c.Checkins,
		AnnouncementRepo: c.Announcements,
		Tx:               c.Tx,
		Gate:             c.Gate,
		Clock:            c.Clock,
		Logger:           c.Logger,
	})
	c.NotificationService = service.NewNotificationService(c.Dispatcher, c.Logger, cfg.Notification)

	c.Scanner = scanner.NewManager(c.Gate, c.NewSession)

	worker.StartNotificationWorker(c.NotificationService)
	worker.StartScanMetricsWorker(c.Dispatcher, c.Metrics)
	return c
}

// NewSession builds a scanner session for operator p using the configured
// camera, timings and debounce backend.
func (c *Container) NewSession(p *auth.Principal) *scanner.Session {
	return scanner.NewSession(scanner.SessionConfig{
		Principal:     p,
		Decoder:       scanner.NewQRDecoder(),
		Window:        c.debounceWindow(),
		Redeemer:      c.RedemptionService,
		Camera:        c.camera,
		PollInterval:  c.Config.Scanner.PollInterval(),
		DecodeTimeout: c.Config.Scanner.DecodeTimeout(),
		Clock:         c.Clock,
		Logger:        c.Logger.With(zap.String("operator", p.Email)),
		Metrics:       c.Metrics,
		OnResult:      c.onScan,
	})
}

func (c *Container) debounceWindow() debounce.Window {
	window := c.Config.Scanner.DebounceWindow()
	if c.Config.Scanner.DebounceBackend == "redis" && c.Redis != nil {
		return debounce.NewRedis(c.Redis.Client, c.Config.Scanner.DebounceRedisKey, window)
	}
	return debounce.NewMemory(c.Clock, window)
}

// Seed creates the default organizer and, when enabled, sample content.
// Each step only runs against an empty table.
func (c *Container) Seed(ctx context.Context) error {
	if err := c.AuthService.SeedDefaultOrganizer(ctx); err != nil {
		return err
	}
	if !c.Config.Seed.SampleData {
		return nil
	}
	if err := c.EventService.SeedSamples(ctx); err != nil {
		return err
	}
	return c.AnnouncementService.SeedWelcome(ctx)
}

// HTTPApp builds the fiber application with middlewares and routes.
func (c *Container) HTTPApp() *fiber.App {
	appCfg := fiber.Config{AppName: c.Config.App.Name}
	if c.Config.App.BodyLimitBytes > 0 {
		appCfg.BodyLimit = c.Config.App.BodyLimitBytes
	}
	app := fiber.New(appCfg)
	httptransport.RegisterMiddlewares(app, c.Logger, c.Metrics, c.Config.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(c.Config.App.Name, c.Config.App.Version, c.DB, c.Redis, c.Metrics),
		Auth:           handlers.NewAuthHandler(c.AuthService, c.Gate),
		Events:         handlers.NewEventsHandler(c.EventService, c.AnnouncementService),
		Tickets:        handlers.NewTicketsHandler(c.RegistrationService),
		Scanner:        handlers.NewScannerHandler(c.Scanner, c.Config.Scanner.MaxFramePixels),
		Analytics:      handlers.NewAnalyticsHandler(c.LedgerService),
		Admin:          handlers.NewAdminHandler(c.SnapshotService, c.RegistrationService),
		AuthMiddleware: auth.NewAuthMiddleware(c.AuthService.TokenManager(), c.Users),
		Gate:           c.Gate,
	})
	return app
}

// Close stops the scanner. The database and redis are owned by the caller.
func (c *Container) Close() {
	c.Scanner.Shutdown()
}
