package quota

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ResetScheduler periodically zeroes all session counters on a cron schedule
type ResetScheduler struct {
	gate   *Gate
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewResetScheduler creates a scheduler for the given cron expression
// (standard five-field syntax, e.g. "0 0 * * *" for midnight daily)
func NewResetScheduler(gate *Gate, expr string, logger zerolog.Logger) (*ResetScheduler, error) {
	if gate == nil {
		return nil, fmt.Errorf("quota gate is required")
	}
	if expr == "" {
		return nil, fmt.Errorf("cron expression is required")
	}

	c := cron.New()
	rs := &ResetScheduler{
		gate:   gate,
		cron:   c,
		logger: logger,
	}

	if _, err := c.AddFunc(expr, rs.runReset); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	return rs, nil
}

// Start begins the schedule in a background goroutine
func (rs *ResetScheduler) Start() {
	rs.cron.Start()
	rs.logger.Info().Msg("Quota reset scheduler started")
}

// Stop stops the schedule and waits for a running reset to finish
func (rs *ResetScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
	rs.logger.Info().Msg("Quota reset scheduler stopped")
}

func (rs *ResetScheduler) runReset() {
	if err := rs.gate.ResetAll(context.Background()); err != nil {
		rs.logger.Error().Err(err).Msg("Scheduled quota reset failed")
	}
}
