package di

import (
	"fmt"

	"github.com/aristath/tvm/internal/config"
	"github.com/aristath/tvm/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens calculations.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	calculationsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "calculations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calculations database: %w", err)
	}

	if err := calculationsDB.Migrate(); err != nil {
		calculationsDB.Close()
		return nil, fmt.Errorf("failed to apply calculations schema: %w", err)
	}
	container.CalculationsDB = calculationsDB

	log.Info().Str("path", calculationsDB.Path()).Msg("Calculations database initialized")

	return container, nil
}
