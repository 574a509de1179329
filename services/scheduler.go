package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type statusRunner interface {
	Run(ctx context.Context) (*StatusUpdateReport, error)
}

// Scheduler déclenche le moteur de mise à jour des statuts : une fois au
// démarrage, puis à intervalle fixe. Le cycle suivant n'est armé qu'une fois
// le précédent terminé, succès ou échec — jamais deux cycles en parallèle.
type Scheduler struct {
	engine statusRunner
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	timer    *time.Timer
	interval time.Duration
	ctx      context.Context
}

func NewScheduler(engine statusRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{engine: engine, logger: logger}
}

// Start lance le planificateur. Un second Start pendant l'exécution est un
// no-op journalisé en warning.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("status update scheduler already running")
		return
	}
	s.running = true
	s.interval = interval
	s.ctx = ctx

	s.logger.Info("status update scheduler started", slog.Duration("interval", interval))
	go s.runCycle()
}

// Stop arrête le planificateur et annule le timer en attente. Le cycle en
// cours, s'il y en a un, se termine mais ne se réarme pas.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.logger.Info("status update scheduler stopped")
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runCycle() {
	report, err := s.engine.Run(s.ctx)
	if err != nil {
		s.logger.Error("status update cycle failed", slog.Any("error", err))
	} else {
		s.logger.Info("status update cycle completed",
			slog.Int("total", report.Stats.Total),
			slog.Int("updated", report.Stats.Updated),
			slog.Int("errors", report.Stats.Errors),
			slog.Duration("duration", report.Stats.Duration))
	}

	// Re-arm only after the cycle has fully completed, and only while the
	// scheduler has not been stopped in the meantime.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.timer = time.AfterFunc(s.interval, s.runCycle)
}
