package di

import (
	"fmt"

	"github.com/aristath/tvm/internal/config"
	"github.com/aristath/tvm/internal/modules/calculations"
	"github.com/aristath/tvm/internal/reliability"
	"github.com/aristath/tvm/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers them with a new scheduler.
// The scheduler is stored on the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: calculation history retention
	instances.HistoryCleanup = calculations.NewCleanupJob(container.HistoryRepo, cfg.History.Retention(), log)
	if err := sched.AddJob(cfg.History.CleanupSchedule, instances.HistoryCleanup); err != nil {
		return nil, fmt.Errorf("failed to register history cleanup job: %w", err)
	}

	// Job 2: integrity check, WAL checkpoint and disk space
	instances.Maintenance = reliability.NewMaintenanceJob(
		container.CalculationsDB,
		cfg.DataDir,
		cfg.Maintenance.MinFreeDiskGB,
		log,
	)
	if err := sched.AddJob(cfg.Maintenance.Schedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	// Job 3: offsite backup
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Scheduler = sched
	return instances, nil
}
