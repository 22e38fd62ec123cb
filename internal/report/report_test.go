package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yeleman/anam-desktop/internal/batch"
	"github.com/yeleman/anam-desktop/internal/domain"
)

func sampleReport() *batch.Report {
	return &batch.Report{
		RunID:     "run-1",
		CollectID: "12",
		State:     batch.StateSucceeded,
		Total:     2,
		Processed: 2,
		Committed: 2,
		Identifiers: domain.IdentifierMap{
			"R2": {"dossier": "0002-17102026", "indigent": int64(103)},
			"R1": {"dossier": "0001-17102026", "indigent": int64(101), "epouse1": int64(102)},
		},
	}
}

func TestGenerate(t *testing.T) {
	meta := Meta{CollectID: "12", CollectName: "Enquête sociale de Kati, cercle de Kati", GeneratedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	data, err := Generate(meta, sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetIdentifiers, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetIdentifiers)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Ident", "Role", "Generated ID"},
		{"R1", "dossier", "0001-17102026"},
		{"R1", "indigent", "101"},
		{"R1", "epouse1", "102"},
		{"R2", "dossier", "0002-17102026"},
		{"R2", "indigent", "103"},
	}, rows)

	state, err := f.GetCellValue(SheetSummary, "B4")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", state)
	committed, err := f.GetCellValue(SheetSummary, "B7")
	require.NoError(t, err)
	assert.Equal(t, "2", committed)
}

func TestWrite_CreatesDirectories(t *testing.T) {
	r := sampleReport()
	r.State = batch.StateFailed
	r.FailedIndex = 2
	r.FailedIdent = "R2"

	path := filepath.Join(t.TempDir(), "reports", FileName("12", time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, Write(path, Meta{CollectID: "12"}, r))
	assert.Equal(t, "import-12-20261017-090000.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	failed, err := f.GetCellValue(SheetSummary, "B9")
	require.NoError(t, err)
	assert.Equal(t, "2 R2", failed)
}
