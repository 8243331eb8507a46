package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs a refresh job on a cron schedule such as "@every 2m".
// Overlapping runs are skipped.
type Scheduler struct {
	spec    string
	refresh func(context.Context)
	log     zerolog.Logger

	mu      gosync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a Scheduler. An empty spec disables scheduling.
func NewScheduler(spec string, refresh func(context.Context), logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		spec:    spec,
		refresh: refresh,
		log:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the refresh job and starts the cron engine. Jobs run
// with ctx, and the scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		s.log.Debug().Msg("no refresh schedule configured")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.log.Debug().Msg("scheduled refresh")
		s.refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling refresh %q: %w", s.spec, err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.Info().Str("schedule", s.spec).Msg("refresh scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
}
