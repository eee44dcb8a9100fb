// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/tvm/internal/database"
	"github.com/aristath/tvm/internal/metrics"
	"github.com/aristath/tvm/internal/modules/calculations"
	"github.com/aristath/tvm/internal/reliability"
	"github.com/aristath/tvm/internal/scheduler"
)

// Container holds every long-lived dependency of the service
type Container struct {
	// Databases
	CalculationsDB *database.DB // Calculation history (inputs, results, errors)

	// Repositories
	HistoryRepo *calculations.Repository

	// Services
	Metrics            *metrics.Metrics
	CalculationService *calculations.Service
	BackupService      *reliability.BackupService // nil when backups are disabled

	// Scheduler runs the registered jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	HistoryCleanup *calculations.CleanupJob
	Maintenance    *reliability.MaintenanceJob
	Backup         *reliability.BackupJob // nil when backups are disabled
}

// Close releases the container's databases
func (c *Container) Close() error {
	if c.CalculationsDB == nil {
		return nil
	}
	return c.CalculationsDB.Close()
}
