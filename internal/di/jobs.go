package di

import (
	"fmt"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/calculations"
	"github.com/aristath/whalewatch/internal/reliability"
	"github.com/aristath/whalewatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules for housekeeping jobs (cron with seconds)
const (
	cacheCleanupSchedule  = "0 15 * * * *"
	walCheckpointSchedule = "0 */30 * * * *"
	coreDatabasesSchedule = "0 0 3 * * *"
)

// RegisterJobs creates the scheduler and registers every job with it.
// Jobs with an empty schedule can still be triggered through the API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.AnalysisService == nil {
		return nil, fmt.Errorf("services must be initialized first")
	}

	sched := scheduler.New(log)
	instances := &JobInstances{}

	// ==========================================
	// NAV import and report jobs
	// ==========================================
	instances.NavsImport = container.Importer
	if err := sched.AddJob(cfg.Schedule.ImportCron, instances.NavsImport); err != nil {
		return nil, fmt.Errorf("failed to register navs import job: %w", err)
	}

	instances.ReportPublish = analysis.NewPublishJob(container.AnalysisService)
	if err := sched.AddJob(cfg.Schedule.PublishCron, instances.ReportPublish); err != nil {
		return nil, fmt.Errorf("failed to register report publish job: %w", err)
	}

	// ==========================================
	// Housekeeping jobs
	// ==========================================
	instances.CacheCleanup = calculations.NewCleanupJob(container.CalculationsCache, log)
	if err := sched.AddJob(cacheCleanupSchedule, instances.CacheCleanup); err != nil {
		return nil, fmt.Errorf("failed to register cache cleanup job: %w", err)
	}

	databases := container.Databases()

	instances.WALCheckpoints = scheduler.NewCheckWALCheckpointsJob(log, databases...)
	if err := sched.AddJob(walCheckpointSchedule, instances.WALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	instances.CoreDatabases = scheduler.NewCheckCoreDatabasesJob(log, databases...)
	if err := sched.AddJob(coreDatabasesSchedule, instances.CoreDatabases); err != nil {
		return nil, fmt.Errorf("failed to register database integrity job: %w", err)
	}

	instances.WeeklyMaintenance = reliability.NewWeeklyMaintenanceJob(databases, log)
	if err := sched.AddJob(cfg.Schedule.MaintenanceCron, instances.WeeklyMaintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	// ==========================================
	// Backups (publisher only)
	// ==========================================
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Publisher.RetentionDays, log)
		if err := sched.AddJob(cfg.Schedule.BackupCron, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(sched.Jobs())).Msg("Jobs registered")

	return instances, nil
}
