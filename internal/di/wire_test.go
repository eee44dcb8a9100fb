package di

import (
	"context"
	"testing"

	"github.com/aristath/tvm/internal/config"
	"github.com/aristath/tvm/internal/modules/calculations"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:  t.TempDir(),
		Port:     8001,
		LogLevel: "info",
		Solver: config.SolverConfig{
			Guess:         0.1,
			Tolerance:     1e-10,
			MaxIterations: 100,
		},
		History: config.HistoryConfig{
			RetentionDays:   30,
			CleanupSchedule: "0 0 3 * * *",
		},
		Backup: config.BackupConfig{
			Region:   "auto",
			Prefix:   "tvm",
			Schedule: "0 30 3 * * *",
		},
		Maintenance: config.MaintenanceConfig{
			Schedule:      "0 0 2 * * *",
			MinFreeDiskGB: 0,
		},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.CalculationsDB)
	assert.NotNil(t, container.HistoryRepo)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.CalculationService)
	assert.NotNil(t, container.Scheduler)
	assert.Nil(t, container.BackupService, "backups disabled without a bucket")

	assert.NotNil(t, jobs.HistoryCleanup)
	assert.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Backup)

	names := []string{}
	for _, job := range container.Scheduler.Jobs() {
		names = append(names, job.Name)
	}
	assert.Equal(t, []string{"calculation_history_cleanup", "daily_maintenance"}, names)
}

func TestWire_CalculationsArePersistedAndCounted(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	ctx := context.Background()
	res, err := container.CalculationService.NetPresentValue(ctx, calculations.NPVRequest{
		Rate:   0.1,
		Values: []float64{-100, 110},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Value, 1e-9)

	count, err := container.HistoryRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	n, err := testutil.GatherAndCount(container.Metrics.Gatherer(), "tvm_calculation_history_rows")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, container.Scheduler.RunNow(jobs.HistoryCleanup))
	require.NoError(t, container.Scheduler.RunNow(jobs.Maintenance))
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.CleanupSchedule = "not a schedule"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_BackupEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Bucket = "tvm-backups"
	cfg.Backup.Endpoint = "http://127.0.0.1:9000"
	cfg.Backup.AccessKeyID = "key"
	cfg.Backup.SecretAccessKey = "secret"

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.BackupService)
	assert.NotNil(t, jobs.Backup)
	assert.Len(t, container.Scheduler.Jobs(), 3)
}
