package di

import (
	"context"
	"fmt"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/events"
	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/calculations"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories and services on top of the
// container's databases
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.NavsDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	container.NavsRepo = navs.NewRepository(container.NavsDB.Conn(), log)
	container.Importer = navs.NewImporter(cfg.NavsCSV, navs.LoadOptions{
		DateColumn: cfg.Analysis.DateColumn,
		Benchmark:  cfg.Analysis.Benchmark,
	}, container.NavsRepo, container.EventManager, log)

	container.CalculationsCache = calculations.NewCache(container.CacheDB.Conn(), cfg.CacheTTL, log)

	// A nil *R2Client must not become a non-nil Uploader.
	var uploader analysis.Uploader
	if cfg.Publisher.Enabled() {
		client, err := reliability.NewR2Client(ctx, cfg.Publisher, log)
		if err != nil {
			return fmt.Errorf("failed to create object storage client: %w", err)
		}
		container.R2Client = client
		container.BackupService = reliability.NewR2BackupService(client, container.Databases(), cfg.DataDir, log)
		uploader = client
	} else {
		log.Info().Msg("Publisher bucket not configured, report publishing and backups disabled")
	}

	container.AnalysisService = analysis.NewService(
		container.NavsRepo,
		container.CalculationsCache,
		uploader,
		container.EventManager,
		cfg.Analysis,
		log,
	)
	container.EventBus.Subscribe(events.NavsImported, container.AnalysisService.HandleNavsImported)

	log.Info().Msg("Services initialized")
	return nil
}
