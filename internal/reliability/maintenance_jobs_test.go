package reliability

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aristath/whalewatch/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	memoryStore
}

func (s *failingStore) UploadStream(context.Context, string, io.Reader, int64) error {
	return errors.New("bucket unavailable")
}

func TestBackupJob(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	navsDB := setupFileDB(t, database.NameNavs)

	store := newMemoryStore()
	job := NewBackupJob(NewR2BackupService(store, []*database.DB{navsDB}, t.TempDir(), log), 30, log)
	assert.Equal(t, "r2_backup", job.Name())

	require.NoError(t, job.Run())
	assert.Len(t, store.objects, 1)

	broken := NewBackupJob(NewR2BackupService(&failingStore{*newMemoryStore()}, []*database.DB{navsDB}, t.TempDir(), log), 30, log)
	assert.ErrorContains(t, broken.Run(), "bucket unavailable")
}

func TestWeeklyMaintenanceJob(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	navsDB := setupFileDB(t, database.NameNavs)
	cacheDB := setupFileDB(t, database.NameCache)

	job := NewWeeklyMaintenanceJob([]*database.DB{navsDB, cacheDB}, log)
	assert.Equal(t, "weekly_maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestWeeklyMaintenanceJob_ReportsFailures(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	navsDB := setupFileDB(t, database.NameNavs)
	require.NoError(t, navsDB.Close())

	job := NewWeeklyMaintenanceJob([]*database.DB{navsDB}, log)
	assert.Error(t, job.Run())
}
