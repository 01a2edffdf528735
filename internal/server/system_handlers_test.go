package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/whalewatch/internal/database"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	jobs []scheduler.JobStatus
	ran  []string
	err  error
}

func (f *fakeRunner) Jobs() []scheduler.JobStatus { return f.jobs }

func (f *fakeRunner) RunNow(name string) error {
	for _, j := range f.jobs {
		if j.Name == name {
			f.ran = append(f.ran, name)
			return f.err
		}
	}
	return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
}

type fakeImports struct {
	record *navs.ImportRecord
	err    error
}

func (f *fakeImports) LatestImport(context.Context) (*navs.ImportRecord, error) {
	return f.record, f.err
}

func memoryDB(t *testing.T, name string) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Name: name})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data     json.RawMessage        `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Metadata, "timestamp")
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func jobRouter(h *SystemHandlers) http.Handler {
	r := chi.NewRouter()
	r.Get("/jobs", h.HandleJobsStatus)
	r.Post("/jobs/{name}", h.HandleTriggerJob)
	return r
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	finished := time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		imports      ImportStatus
		expectedCode int
		validate     func(t *testing.T, resp SystemStatusResponse)
	}{
		{
			name:         "reports latest import",
			imports:      &fakeImports{record: &navs.ImportRecord{ID: "imp-1", Source: "navs.csv", Rows: 30, FinishedAt: finished}},
			expectedCode: http.StatusOK,
			validate: func(t *testing.T, resp SystemStatusResponse) {
				assert.Equal(t, "healthy", resp.Status)
				require.NotNil(t, resp.LatestImport)
				assert.Equal(t, "imp-1", resp.LatestImport.ID)
				assert.Equal(t, 30, resp.LatestImport.Rows)
				require.Len(t, resp.Databases, 2)
				assert.Equal(t, database.NameNavs, resp.Databases[0].Name)
				assert.Positive(t, resp.Goroutines)
			},
		},
		{
			name:         "nothing imported yet",
			imports:      &fakeImports{},
			expectedCode: http.StatusOK,
			validate: func(t *testing.T, resp SystemStatusResponse) {
				assert.Nil(t, resp.LatestImport)
			},
		},
		{
			name:         "import lookup fails",
			imports:      &fakeImports{err: errors.New("disk gone")},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbs := []*database.DB{memoryDB(t, database.NameNavs), memoryDB(t, database.NameCache)}
			h := NewSystemHandlers(log, t.TempDir(), dbs, tt.imports, nil)

			rec := httptest.NewRecorder()
			h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
			require.Equal(t, tt.expectedCode, rec.Code)

			if tt.validate != nil {
				var resp SystemStatusResponse
				decodeData(t, rec, &resp)
				tt.validate(t, resp)
			}
		})
	}
}

func TestSystemHandlers_StatusDegradedOnClosedDatabase(t *testing.T) {
	db := memoryDB(t, database.NameNavs)
	require.NoError(t, db.Close())
	h := NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), "", []*database.DB{db, nil}, nil, nil)

	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Empty(t, resp.Databases)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	dbs := []*database.DB{memoryDB(t, database.NameNavs), memoryDB(t, database.NameCache)}
	h := NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), "", dbs, nil, nil)

	rec := httptest.NewRecorder()
	h.HandleDatabaseStats(rec, httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Databases []database.Stats `json:"databases"`
	}
	decodeData(t, rec, &resp)
	require.Len(t, resp.Databases, 2)
	assert.Equal(t, database.NameCache, resp.Databases[1].Name)
	assert.Positive(t, resp.Databases[0].PageSize)
}

func TestSystemHandlers_Jobs(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	runner := &fakeRunner{jobs: []scheduler.JobStatus{
		{Name: "navs_import", Schedule: "0 0 7 * * *"},
		{Name: "report_publish"},
	}}
	router := jobRouter(NewSystemHandlers(log, "", nil, nil, runner))

	tests := []struct {
		name         string
		method       string
		path         string
		expectedCode int
	}{
		{"list jobs", http.MethodGet, "/jobs", http.StatusOK},
		{"trigger job", http.MethodPost, "/jobs/navs_import", http.StatusOK},
		{"unknown job", http.MethodPost, "/jobs/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedCode, rec.Code)
		})
	}

	assert.Equal(t, []string{"navs_import"}, runner.ran)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var resp struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	decodeData(t, rec, &resp)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "0 0 7 * * *", resp.Jobs[0].Schedule)
}

func TestSystemHandlers_TriggerJobFailure(t *testing.T) {
	runner := &fakeRunner{jobs: []scheduler.JobStatus{{Name: "r2_backup"}}, err: errors.New("bucket unavailable")}
	router := jobRouter(NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), "", nil, nil, runner))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/r2_backup", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket unavailable")
}

func TestSystemHandlers_NoScheduler(t *testing.T) {
	router := jobRouter(NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), "", nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/navs_import", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	decodeData(t, rec, &resp)
	assert.Empty(t, resp.Jobs)
}
