// Package di wires databases, services and jobs into a Container.
package di

import (
	"github.com/aristath/whalewatch/internal/database"
	"github.com/aristath/whalewatch/internal/events"
	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/calculations"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/reliability"
	"github.com/aristath/whalewatch/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// Databases:
//   - navs.db: imported NAV tables and the import log
//   - cache.db: ephemeral calculation results
//
// R2Client and BackupService are nil when no publisher bucket is configured.
type Container struct {
	NavsDB  *database.DB
	CacheDB *database.DB

	EventBus     *events.Bus
	EventManager *events.Manager

	NavsRepo          *navs.Repository
	Importer          *navs.Importer
	CalculationsCache *calculations.Cache
	AnalysisService   *analysis.Service

	R2Client      *reliability.R2Client
	BackupService *reliability.R2BackupService

	Scheduler *scheduler.Scheduler
}

// Databases returns the open databases
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.NavsDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every database. The first error is returned.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// JobInstances holds job references for manual triggering and tests.
// Jobs that need the publisher are nil when it is disabled.
type JobInstances struct {
	NavsImport        *navs.Importer
	CacheCleanup      *calculations.CleanupJob
	ReportPublish     *analysis.PublishJob
	Backup            *reliability.BackupJob
	WeeklyMaintenance *reliability.WeeklyMaintenanceJob
	WALCheckpoints    *scheduler.CheckWALCheckpointsJob
	CoreDatabases     *scheduler.CheckCoreDatabasesJob
}
