package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/config"
	"github.com/templui/bullseye/internal/db"
	"github.com/templui/bullseye/internal/keylock"
	"github.com/templui/bullseye/internal/registry"
	"github.com/templui/bullseye/internal/repository"
	"github.com/templui/bullseye/internal/service"
	"github.com/templui/bullseye/internal/service/transfer"
	"github.com/templui/bullseye/internal/storage"
)

type App struct {
	Cfg              *config.Config
	DB               *sqlx.DB
	Registry         *registry.Registry
	IdentityService  *service.IdentityService
	EventService     *service.EventService
	EmailService     *service.EmailService
	ArchiveService   *service.ArchiveService
	TransferProvider transfer.Provider
	Ledger           *service.VerificationLedger
	Settlement       *service.SettlementEngine
	GoalService      *service.GoalService
}

func New(cfg *config.Config) (*App, error) {
	// Registry is loaded once and never reloaded
	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %v", err)
	}

	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(context.Background(), database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	goalRepository := repository.NewGoalRepository(database)
	verificationRepository := repository.NewVerificationRepository(database)
	settlementRepository := repository.NewSettlementRepository(database)
	eventRepository := repository.NewEventRepository(database)
	transferRepository := repository.NewTransferRepository(database)

	// Storage (optional receipt archive)
	var archive *service.ArchiveService
	if cfg.ArchiveEnabled() {
		receiptStorage, err := storage.New(cfg)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize storage: %v", err)
		}
		archive = service.NewArchiveService(receiptStorage)
	} else {
		archive = service.NewArchiveService(nil)
	}

	// Initialize transfer provider based on config
	transferProvider, err := transfer.NewProvider(cfg, transferRepository)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize transfer provider: %v", err)
	}

	// Services
	eventService, err := service.NewEventService(eventRepository, cfg.EventWebhookURL, cfg.EventWebhookSecret)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize event service: %v", err)
	}
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.OpsAlertEmail,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	identityService := service.NewIdentityService(cfg.JWTSecret, cfg.JWTExpiry)

	locks := keylock.New()
	ledger := service.NewVerificationLedger(goalRepository, verificationRepository, locks, eventService, nil)
	settlement := service.NewSettlementEngine(
		goalRepository,
		settlementRepository,
		reg,
		transferProvider,
		archive,
		emailService,
		eventService,
		locks,
		cfg.SettlementTimeout,
		nil,
	)
	goalService := service.NewGoalService(goalRepository, reg, ledger, settlement, eventService, locks, cfg.AppURL, nil)

	return &App{
		Cfg:              cfg,
		DB:               database,
		Registry:         reg,
		IdentityService:  identityService,
		EventService:     eventService,
		EmailService:     emailService,
		ArchiveService:   archive,
		TransferProvider: transferProvider,
		Ledger:           ledger,
		Settlement:       settlement,
		GoalService:      goalService,
	}, nil
}

// Close waits for in-flight event deliveries and closes the database.
func (a *App) Close() error {
	if a.EventService != nil {
		a.EventService.Wait()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
