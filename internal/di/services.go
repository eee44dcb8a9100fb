package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tvm/internal/config"
	"github.com/aristath/tvm/internal/metrics"
	"github.com/aristath/tvm/internal/modules/calculations"
	"github.com/aristath/tvm/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.CalculationsDB == nil {
		return fmt.Errorf("calculations database not initialized")
	}

	container.HistoryRepo = calculations.NewRepository(container.CalculationsDB.Conn(), log)
	return nil
}

// InitializeServices creates metrics, the calculation service, and the
// backup service when a bucket is configured
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.HistoryRepo == nil {
		return fmt.Errorf("repositories not initialized")
	}

	repo := container.HistoryRepo
	container.Metrics = metrics.New(func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		n, err := repo.Count(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count calculation history for metrics")
			return 0
		}
		return float64(n)
	})

	container.CalculationService = calculations.NewService(
		repo,
		cfg.Solver.ToSolver(),
		container.Metrics,
		log,
	)
	container.CalculationService.SetBatchWorkers(cfg.BatchWorkers)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.CalculationsDB,
			store,
			cfg.DataDir,
			cfg.Backup.Prefix,
			log,
		)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	} else {
		log.Info().Msg("No backup bucket configured, backups disabled")
	}

	return nil
}
