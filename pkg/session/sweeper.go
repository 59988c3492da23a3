package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule runs eviction every ten minutes
const DefaultSweepSchedule = "@every 10m"

// Sweeper periodically evicts expired sessions from a Store
type Sweeper struct {
	store    *Store
	schedule string
	cron     *cron.Cron
	running  bool
	mu       sync.Mutex
}

// NewSweeper creates a sweeper for store. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(store *Store, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Sweeper{
		store:    store,
		schedule: schedule,
	}
}

// Start schedules the sweep. It is an error to start a running sweeper.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.running = true

	log.Info().
		Str("schedule", s.schedule).
		Str("policy", s.store.Retention().Name()).
		Msg("Session sweeper started")

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}

	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false

	log.Info().Msg("Session sweeper stopped")

	return nil
}

// IsRunning returns whether the sweeper is scheduled
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Sweep evicts expired sessions now and returns how many were removed
func (s *Sweeper) Sweep() int {
	removed := s.store.Evict(time.Now())
	return len(removed)
}
