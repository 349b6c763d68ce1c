package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/api"
	"github.com/mramzani/barghalarm/internal/calendar"
	"github.com/mramzani/barghalarm/internal/config"
	"github.com/mramzani/barghalarm/internal/integration"
	"github.com/mramzani/barghalarm/internal/observability"
	"github.com/mramzani/barghalarm/internal/repository"
	"github.com/mramzani/barghalarm/internal/usecases"
)

// app holds what every command needs: settings, logger, storage,
// metrics and the operator alerter
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	repo    *repository.SQLRepository
	metrics *observability.Metrics
	alerter usecases.Alerter
	clock   clockwork.Clock
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	repo, err := repository.NewSQLRepository(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	var alerter usecases.Alerter = usecases.NopAlerter{}
	if cfg.AlertsEnabled() {
		tg, err := api.NewTelegramAlerter(cfg.TelegramBotToken, "", cfg.TelegramAdminChatID, logger)
		if err != nil {
			// Alerts are best effort; the importer still runs without them.
			logger.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			alerter = tg
		}
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		metrics: observability.NewMetrics(),
		alerter: alerter,
		clock:   clockwork.NewRealClock(),
	}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("failed to close repository", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newPortal creates a portal client with a fresh cookie jar for one run
func (a *app) newPortal() (*integration.PortalClient, error) {
	return integration.NewPortalClient(integration.PortalOptions{
		BaseURL:     a.cfg.PortalURL,
		Timeout:     a.cfg.PortalTimeout,
		MaxDuration: a.cfg.PortalMaxDuration,
		UserAgent:   a.cfg.PortalUserAgent,
	}, a.logger)
}

func (a *app) areas(flagAreas []string) []string {
	if len(flagAreas) > 0 {
		return flagAreas
	}
	return a.cfg.ImportAreas
}

func (a *app) today() string {
	return calendar.Today(a.clock, a.cfg.Location)
}

func (a *app) tomorrow() string {
	return calendar.Tomorrow(a.clock, a.cfg.Location)
}

func (a *app) runImport(ctx context.Context, dateFrom, dateTo string, areaCodes []string) (usecases.ImportResult, error) {
	portal, err := a.newPortal()
	if err != nil {
		return usecases.ImportResult{}, err
	}
	defer portal.Close()

	importer := usecases.NewBlackoutImporter(portal, a.repo, a.repo, a.alerter, a.metrics, a.logger, a.cfg.ImportWorkers)
	return importer.Import(ctx, dateFrom, dateTo, a.areas(areaCodes))
}

func (a *app) runPrune(ctx context.Context) (int64, error) {
	return usecases.NewOutagePruner(a.repo, a.clock, a.cfg.Location, a.metrics, a.logger).Prune(ctx)
}

func (a *app) runDiscover(ctx context.Context, dateFrom, dateTo string, areaCodes []string) (usecases.DiscoveryResult, error) {
	portal, err := a.newPortal()
	if err != nil {
		return usecases.DiscoveryResult{}, err
	}
	defer portal.Close()

	discovery := usecases.NewAddressDiscovery(portal, a.repo, a.alerter, a.metrics, a.logger)
	return discovery.Discover(ctx, dateFrom, dateTo, a.areas(areaCodes))
}

// alertFailure tells the operator about a failed job. A missing search
// form has already been reported by the use case.
func (a *app) alertFailure(ctx context.Context, job string, err error) {
	if errors.Is(err, integration.ErrFormNotFound) || errors.Is(err, context.Canceled) {
		return
	}
	msg := fmt.Sprintf("Scheduled job %s failed: %v", job, err)
	if alertErr := a.alerter.Alert(context.WithoutCancel(ctx), msg); alertErr != nil {
		a.logger.Warn("failed to alert operator", zap.Error(alertErr))
	}
}
