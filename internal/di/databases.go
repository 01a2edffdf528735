package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// navs.db - imported NAV tables
	navsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameNavs+".db"),
		Profile: database.ProfileStandard,
		Name:    database.NameNavs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize navs database: %w", err)
	}
	container.NavsDB = navsDB

	// cache.db - ephemeral calculation results
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, database.NameCache+".db"),
		Profile: database.ProfileCache,
		Name:    database.NameCache,
	})
	if err != nil {
		navsDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range container.Databases() {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
