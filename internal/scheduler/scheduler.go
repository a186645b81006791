// Package scheduler runs periodic free-rider detection sweeps across all
// known projects.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/groupward/contrib-engine/internal/database"
	"github.com/groupward/contrib-engine/internal/engine"
)

// Scheduler drives the detection engine on a cron cadence.
type Scheduler struct {
	cron   *cron.Cron
	eng    *engine.Engine
	repo   *database.Repository
	logger *slog.Logger
}

// New creates a scheduler. Spec is a standard 5-field cron expression.
func New(eng *engine.Engine, repo *database.Repository, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		eng:    eng,
		repo:   repo,
		logger: logger,
	}
}

// Start registers the detection job and begins ticking. Returns an error for
// an invalid cron expression.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runSweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("detection scheduler started", "schedule", spec)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("timed out waiting for detection sweep to finish")
	}
}

// runSweep detects across every project with members. Per-project failures
// are logged and do not stop the sweep.
func (s *Scheduler) runSweep() {
	start := time.Now()
	projectIDs, err := s.repo.ListProjectIDs()
	if err != nil {
		s.logger.Error("scheduled sweep could not list projects", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failures int
	for _, projectID := range projectIDs {
		report, err := s.eng.DetectFreeRiders(ctx, projectID)
		if err != nil {
			failures++
			s.logger.Error("scheduled detection failed",
				"project_id", projectID,
				"error", err,
			)
			continue
		}
		if report.CasesCreated > 0 {
			s.logger.Info("scheduled detection opened cases",
				"project_id", projectID,
				"cases_created", report.CasesCreated,
			)
		}
	}

	s.logger.Info("scheduled sweep finished",
		"projects", len(projectIDs),
		"failures", failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
