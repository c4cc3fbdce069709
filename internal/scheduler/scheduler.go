package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vendgate/internal/config"
	"vendgate/internal/service/reporting"
	"vendgate/pkg/clients/storefront"
)

// Scheduler manages the periodic session keepalive and the stock report.
type Scheduler struct {
	cron         *cron.Cron
	client       storefront.Client
	reportingSvc *reporting.Service
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.Config, client storefront.Client, reportingSvc *reporting.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to local", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
		location = time.Local
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(location)),
		client:       client,
		reportingSvc: reportingSvc,
		cfg:          cfg,
		logger:       logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.String("keepalive", s.cfg.Reporting.KeepaliveCronSchedule),
		zap.String("report", s.cfg.Reporting.ReportCronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.KeepaliveCronSchedule, s.keepSessionAlive); err != nil {
		s.logger.Error("failed to schedule session keepalive", zap.Error(err))
	}

	if s.reportingSvc != nil {
		if _, err := s.cron.AddFunc(s.cfg.Reporting.ReportCronSchedule, s.appendStockReport); err != nil {
			s.logger.Error("failed to schedule stock report", zap.Error(err))
		}
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// keepSessionAlive pings the storefront so the session does not idle out,
// and re-authenticates when the server has already dropped it.
func (s *Scheduler) keepSessionAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := s.client.ListDevices(ctx)
	if err == nil {
		s.logger.Debug("storefront session still valid")
		return
	}

	if !errors.Is(err, storefront.ErrNotAuthenticated) {
		s.logger.Warn("session keepalive ping failed", zap.Error(err))
		return
	}

	s.logger.Info("storefront session expired, re-authenticating")
	if err := s.client.Login(ctx); err != nil {
		s.logger.Error("storefront re-authentication failed", zap.Error(err))
	}
}

func (s *Scheduler) appendStockReport() {
	s.logger.Info("generating stock report")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now()
	if _, err := s.reportingSvc.AppendStockSnapshot(ctx, now); err != nil {
		s.logger.Error("failed to append stock snapshot", zap.Error(err))
		return
	}

	summary, err := s.reportingSvc.Summary(ctx, now)
	if err != nil {
		s.logger.Error("failed to build stock summary", zap.Error(err))
		return
	}
	s.logger.Info("stock report complete", zap.String("summary", summary))
}
