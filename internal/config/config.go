// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/tvm/pkg/formulas"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Directory holding calculations.db (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	BatchWorkers int // concurrent batch evaluations, 0 = one per CPU

	Solver      SolverConfig
	History     HistoryConfig
	Backup      BackupConfig
	Maintenance MaintenanceConfig
}

// SolverConfig holds the IRR solver tunables
type SolverConfig struct {
	Guess         float64
	Tolerance     float64
	MaxIterations int
}

// HistoryConfig controls calculation history retention
type HistoryConfig struct {
	RetentionDays   int
	CleanupSchedule string // cron expression with seconds
}

// BackupConfig holds the S3-compatible backup target. Backups are disabled
// when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Custom endpoint for R2/MinIO, empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Schedule        string // cron expression with seconds
	RetentionDays   int    // 0 keeps every backup
}

// MaintenanceConfig controls the database maintenance job
type MaintenanceConfig struct {
	Schedule      string  // cron expression with seconds
	MinFreeDiskGB float64 // maintenance fails below this much free space
}

// Enabled reports whether a backup bucket is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// ToSolver converts the solver settings into a formulas.Solver
func (s SolverConfig) ToSolver() formulas.Solver {
	return formulas.Solver{
		Guess:         s.Guess,
		Tolerance:     s.Tolerance,
		MaxIterations: s.MaxIterations,
	}
}

// Retention returns the history retention window as a duration
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("TVM_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BatchWorkers: getEnvAsInt("BATCH_WORKERS", 0),
		Solver: SolverConfig{
			Guess:         getEnvAsFloat("IRR_GUESS", formulas.DefaultIRRGuess),
			Tolerance:     getEnvAsFloat("IRR_TOLERANCE", formulas.DefaultIRRTolerance),
			MaxIterations: getEnvAsInt("IRR_MAX_ITERATIONS", formulas.DefaultIRRMaxIterations),
		},
		History: HistoryConfig{
			RetentionDays:   getEnvAsInt("HISTORY_RETENTION_DAYS", 30),
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 0 3 * * *"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_PREFIX", "tvm"),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		Maintenance: MaintenanceConfig{
			Schedule:      getEnv("MAINTENANCE_SCHEDULE", "0 0 2 * * *"),
			MinFreeDiskGB: getEnvAsFloat("MIN_FREE_DISK_GB", 0.5),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BatchWorkers < 0 {
		return fmt.Errorf("batch workers must not be negative, got %d", c.BatchWorkers)
	}
	if math.IsNaN(c.Solver.Guess) || math.IsInf(c.Solver.Guess, 0) {
		return fmt.Errorf("IRR guess must be finite, got %g", c.Solver.Guess)
	}
	if c.Solver.Tolerance <= 0 {
		return fmt.Errorf("IRR tolerance must be positive, got %g", c.Solver.Tolerance)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("IRR max iterations must be positive, got %d", c.Solver.MaxIterations)
	}
	if c.History.RetentionDays <= 0 {
		return fmt.Errorf("history retention must be positive, got %d days", c.History.RetentionDays)
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("backup credentials require both access key id and secret")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup retention must not be negative, got %d days", c.Backup.RetentionDays)
	}
	return nil
}

// DatabasePath returns the location of the calculation history database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "calculations.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
