package jobs

import (
	"context"
	"fmt"

	"github.com/ycwu/twstock/backend/internal/roster"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// RosterRefreshJob refreshes the stock roster before the market opens,
// so the day's first search doesn't pay the cold-start fetch.
// ⭐ SSOT: 股票清單排程更新只在這個 Job
type RosterRefreshJob struct {
	roster *roster.Roster
	logger *logger.Logger
}

// NewRosterRefreshJob creates a roster refresh job.
func NewRosterRefreshJob(r *roster.Roster, log *logger.Logger) *RosterRefreshJob {
	return &RosterRefreshJob{
		roster: r,
		logger: log,
	}
}

// Name returns the job name
func (j *RosterRefreshJob) Name() string {
	return "roster_refresh"
}

// Schedule runs daily at 08:30, half an hour before the TWSE open.
func (j *RosterRefreshJob) Schedule() string {
	return "0 30 8 * * *"
}

// Run forces a roster refresh.
func (j *RosterRefreshJob) Run(ctx context.Context) error {
	j.roster.Refresh(ctx)

	if !j.roster.Available(ctx) {
		return fmt.Errorf("roster refresh left no stocks")
	}

	j.logger.Info("Roster refreshed")
	return nil
}
