package cli

import (
	"fmt"
	"path/filepath"

	"github.com/picmigrate/picmigrate/internal/bling"
	"github.com/picmigrate/picmigrate/internal/config"
	"github.com/picmigrate/picmigrate/internal/history"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/migrate"
	"github.com/picmigrate/picmigrate/internal/models"
	"github.com/picmigrate/picmigrate/internal/notify"
	"github.com/picmigrate/picmigrate/internal/oauth"
	"github.com/picmigrate/picmigrate/internal/tokenstore"
	"github.com/picmigrate/picmigrate/internal/transfer"
)

// app holds the wired components shared by the serve and migrate commands.
type app struct {
	config       *config.Config
	loader       *config.Loader
	logger       *logging.Logger
	journal      *logging.Journal
	tokens       *tokenstore.Store
	authorizer   *oauth.Authorizer
	metrics      *metrics.Metrics
	history      *history.Store
	orchestrator *migrate.Orchestrator
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("failed to close history store", "error", err)
		}
	}
}

// buildApp loads the configuration and wires every component.
func buildApp(configPath string) (*app, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := logging.LevelInfo
	if globalFlags.Verbose {
		logLevel = logging.LevelDebug
	} else if cfg.Server.LogLevel != "" {
		logLevel = logging.LogLevel(cfg.Server.LogLevel)
	}
	logger := logging.NewLogger(logging.WithLevel(logLevel))
	loader.SetLogger(logger)

	journal, err := logging.NewJournal(cfg.Storage.Root)
	if err != nil {
		return nil, err
	}

	tokens, err := tokenstore.New(cfg.Storage.Root, journal, logger)
	if err != nil {
		return nil, err
	}

	accounts := cfg.AccountModels()
	authorizer, err := oauth.New(accounts, tokens, cfg.Bling.AuthURL, cfg.Bling.TokenURL, journal, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics("picmigrate")
	authorizer.SetMetrics(m)

	historyPath := cfg.Storage.HistoryDB
	if historyPath == "" {
		historyPath = filepath.Join(cfg.Storage.Root, "history.db")
	}
	hist, err := history.Open(historyPath)
	if err != nil {
		return nil, err
	}

	var notifier *notify.Notifier
	if cfg.Notify.TelegramEnabled {
		notifier = notify.NewNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		authorizer.SetNotifier(notifier)
	}

	client := bling.NewClient(cfg.Bling.APIBaseURL, cfg.Bling.RequestTimeout, logger)
	locator := bling.NewLocator(client, journal, logger, cfg.Migration.VariantBackoff, m)
	downloader := transfer.NewDownloader(
		transfer.NewDownloadClient(),
		filepath.Join(cfg.Storage.Root, "images"),
		journal, logger, m,
	)
	uploader := transfer.NewUploader(client, journal, logger, m)

	origin, _ := accounts.FindByRole(models.RoleOrigin)
	dest, _ := accounts.FindByRole(models.RoleDestination)

	orchestrator := migrate.New(
		locator, downloader, uploader,
		origin.Name, dest.Name,
		journal, logger, m, hist, notifier,
	)

	return &app{
		config:       cfg,
		loader:       loader,
		logger:       logger,
		journal:      journal,
		tokens:       tokens,
		authorizer:   authorizer,
		metrics:      m,
		history:      hist,
		orchestrator: orchestrator,
	}, nil
}
