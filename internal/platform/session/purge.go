package session

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Sweeper drops per-session state that was last touched before cutoff.
type Sweeper func(cutoff time.Time) int

// Janitor periodically purges expired sessions and sweeps idle view state.
type Janitor struct {
	manager   *Manager
	sweepers  []Sweeper
	idle      time.Duration
	logger    zerolog.Logger
	scheduler *gocron.Scheduler
}

// NewJanitor creates a janitor. View state untouched for idle is swept.
func NewJanitor(m *Manager, idle time.Duration, logger zerolog.Logger, sweepers ...Sweeper) *Janitor {
	return &Janitor{
		manager:  m,
		sweepers: sweepers,
		idle:     idle,
		logger:   logger.With().Str("component", "session_janitor").Logger(),
	}
}

// RunOnce performs a single purge and sweep.
func (j *Janitor) RunOnce(ctx context.Context) {
	n, err := j.manager.Purge(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("purge expired sessions failed")
	} else if n > 0 {
		j.logger.Info().Int("count", n).Msg("purged expired sessions")
	}

	cutoff := time.Now().Add(-j.idle)
	swept := 0
	for _, sweep := range j.sweepers {
		swept += sweep(cutoff)
	}
	if swept > 0 {
		j.logger.Debug().Int("count", swept).Msg("swept idle view state")
	}
}

// Start schedules RunOnce every interval until Stop.
func (j *Janitor) Start(interval time.Duration) error {
	j.scheduler = gocron.NewScheduler(time.UTC)
	_, err := j.scheduler.Every(interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		j.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	j.scheduler.StartAsync()
	j.logger.Info().Dur("interval", interval).Msg("session janitor started")
	return nil
}

func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}
