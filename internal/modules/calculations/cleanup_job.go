package calculations

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes calculation history older than the retention window.
// It should be scheduled to run daily.
type CleanupJob struct {
	repo      HistoryStore
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewCleanupJob creates a new history cleanup job.
func NewCleanupJob(repo HistoryStore, retention time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "calculation_history_cleanup").Logger(),
		now:       time.Now,
	}
}

// Run deletes every calculation created before now - retention.
func (j *CleanupJob) Run() error {
	cutoff := j.now().Add(-j.retention)

	deleted, err := j.repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete old calculations")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Calculation history cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "calculation_history_cleanup"
}
