// Package heartbeat keeps the hosting process and its platform
// connections warm with a periodic no-op ping. It is a side activity,
// never part of the per-event pipeline.
package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

// Pinger is anything that can perform a cheap liveness call against a
// remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the heartbeat service.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Logger   *slog.Logger
}

// Service pings the registered targets on a fixed interval.
type Service struct {
	enabled  bool
	interval time.Duration
	targets  []Pinger
	logger   *slog.Logger
}

func New(cfg Config, targets ...Pinger) *Service {
	if cfg.Interval < time.Minute {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		enabled:  cfg.Enabled,
		interval: cfg.Interval,
		targets:  targets,
		logger:   cfg.Logger,
	}
}

// Start runs the heartbeat loop. Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if !s.enabled || len(s.targets) == 0 {
		return
	}

	s.logger.Info("heartbeat started", "interval", s.interval, "targets", len(s.targets))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("heartbeat stopped")
			return
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Service) beat(ctx context.Context) {
	for _, target := range s.targets {
		pctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := target.Ping(pctx); err != nil {
			s.logger.Warn("heartbeat ping failed", "err", err)
		}
		cancel()
	}
	s.logger.Debug("heartbeat sent")
}
