package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
	"github.com/yeleman/anam-desktop/internal/config"
	"github.com/yeleman/anam-desktop/internal/progress"
	rediscommon "github.com/yeleman/anam-desktop/internal/redis"
	"github.com/yeleman/anam-desktop/internal/runlock"
)

const testLocations = `
regions:
  - id: 2
    slug: koulikoro
    cercles:
      - id: 21
        slug: kati
        communes:
          - {id: 2101, slug: kati}
`

const collectR1 = `{
  "status": "success",
  "collect": {
    "id": 12,
    "cercle": "Kati",
    "commune": "Kati",
    "dataset": {
      "targets": [
        {
          "ident": "R1",
          "certificat-indigence": true,
          "enquete/nom": "Keita",
          "enquete/prenoms": "Sekou",
          "enquete/sexe": "masculin",
          "localisation-enquete/lieu_cercle": "kati",
          "localisation-enquete/lieu_commune": "kati",
          "epouses": [{"epouses/e_nom": "Traore", "epouses/e_prenoms": "Awa"}],
          "_hamed_attachments": {
            "certificat-indigence": {"labels": {"slug": "certificat-indigence"}}
          }
        },
        {"ident": "R2", "certificat-indigence": false}
      ]
    }
  }
}`

type fakeStore struct {
	mu     sync.Mutex
	marked map[string]map[string]any
	paths  []string
}

func (f *fakeStore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)

		switch r.URL.Path {
		case "/api/collects/12":
			_, _ = io.WriteString(w, collectR1)
		case "/api/collects/12/mark_imported":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.marked))
			_, _ = io.WriteString(w, `{"status": "success"}`)
		case "/api/collects":
			_, _ = io.WriteString(w, `{"status": "success", "collects": [{"id": 12}, {"id": 13, "archived": true}]}`)
		default:
			_, _ = io.WriteString(w, `{"status": "success"}`)
		}
	}
}

func setupService(t *testing.T) (*ImportService, sqlmock.Sqlmock, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	srv := httptest.NewServer(store.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	locations := filepath.Join(dir, "locations.yaml")
	require.NoError(t, os.WriteFile(locations, []byte(testLocations), 0o644))

	cfg := config.Defaults()
	cfg.Store.URL = srv.URL
	cfg.Store.Timeout = 5 * time.Second
	cfg.Import.LocationsFile = locations
	cfg.Import.ReportDir = filepath.Join(dir, "reports")

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := newImportService(cfg, zap.NewNop(), db)
	require.NoError(t, err)
	return svc, mock, store
}

func TestImport_EndToEnd(t *testing.T) {
	svc, mock, store := setupService(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT LPAD`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0001-17102026"))
	mock.ExpectExec(`INSERT INTO anam.im_dossiers_mobile`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO anam.im_personnes_mobile`).
		WillReturnRows(sqlmock.NewRows([]string{"perso_id"}).AddRow(101))
	mock.ExpectExec(`INSERT INTO anam.im_perso_pj_mobile`).
		WithArgs(int64(101), "CERTIND", sqlmock.AnyArg(), "0001-17102026", nil, nil, 12, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO anam.im_personnes_mobile`).
		WillReturnRows(sqlmock.NewRows([]string{"perso_id"}).AddRow(102))
	mock.ExpectCommit()

	rep, err := svc.Import(context.Background(), "12", ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, batch.StateSucceeded, rep.State)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Committed)
	assert.NoError(t, mock.ExpectationsWereMet())

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Contains(t, store.marked, "R1")
	assert.Equal(t, map[string]any{
		"dossier":  "0001-17102026",
		"indigent": float64(101),
		"epouse1":  float64(102),
	}, store.marked["R1"])

	reports, err := filepath.Glob(filepath.Join(svc.config.Import.ReportDir, "import-12-*.xlsx"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	f, err := excelize.OpenFile(reports[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Identifiers")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestImport_RollbackLeavesCollectUnmarked(t *testing.T) {
	svc, mock, store := setupService(t)

	mock.ExpectPing()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT LPAD`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0001-17102026"))
	mock.ExpectExec(`INSERT INTO anam.im_dossiers_mobile`).
		WillReturnError(errors.New("value too large for column"))
	mock.ExpectRollback()

	rep, err := svc.Import(context.Background(), "12", ImportOptions{ReportPath: filepath.Join(t.TempDir(), "run.xlsx")})
	require.Error(t, err)
	assert.Equal(t, batch.StateFailed, rep.State)
	assert.Equal(t, 1, rep.FailedIndex)
	assert.False(t, rep.DataWritten())
	assert.NoError(t, mock.ExpectationsWereMet())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Nil(t, store.marked)
	assert.NotContains(t, store.paths, "POST /api/collects/12/mark_imported")
}

func TestImport_SecondRunIsLocked(t *testing.T) {
	svc, _, _ := setupService(t)

	lock, err := svc.locker.Acquire(context.Background(), svc.config.Database.Identity())
	require.NoError(t, err)
	defer lock.Release(context.Background())

	_, err = svc.Import(context.Background(), "12", ImportOptions{})
	assert.ErrorIs(t, err, runlock.ErrLocked)
}

func TestCollects_FiltersArchived(t *testing.T) {
	svc, _, _ := setupService(t)

	active, err := svc.Collects(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := svc.Collects(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestArchive(t *testing.T) {
	svc, _, store := setupService(t)
	require.NoError(t, svc.Archive(context.Background(), "12"))
	require.NoError(t, svc.Unarchive(context.Background(), "12"))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"POST /api/collects/12/archive", "POST /api/collects/12/unarchive"}, store.paths)
}

func TestCheck(t *testing.T) {
	svc, mock, _ := setupService(t)
	mock.ExpectPing()
	assert.NoError(t, svc.Check(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("no route to host"))
	err := svc.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case database")
}

func TestRecentProgress(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.RecentProgress(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoProgressStream)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	svc.redisClient = rediscommon.NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer rediscommon.Close(svc.redisClient)
	svc.config.Redis.ProgressStream = "anam:import:progress"

	stream := progress.NewStream(svc.redisClient, svc.config.Redis.ProgressStream, zap.NewNop())
	stream.OnProgress(batch.Progress{RunID: "run-1", CollectID: "12", StateName: "succeeded", Total: 1, Processed: 1, Committed: 1})

	updates, err := svc.RecentProgress(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "run-1", updates[0].RunID)
	assert.Equal(t, 1, updates[0].Committed)
}
