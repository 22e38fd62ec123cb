package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yeleman/anam-desktop/internal/batch"
)

// Sheet names of a run workbook
const (
	SheetIdentifiers = "Identifiers"
	SheetSummary     = "Summary"
)

var identifierHeader = []string{"Ident", "Role", "Generated ID"}

// Meta describes the dataset an import run worked on
type Meta struct {
	CollectID   string
	CollectName string
	GeneratedAt time.Time
}

// Generate builds the run workbook: one row per generated identifier and a
// summary of the outcome.
func Generate(meta Meta, r *batch.Report) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetIdentifiers)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeIdentifiers(f, r, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, meta, r, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// Write generates the workbook into path, creating parent directories
func Write(path string, meta Meta, r *batch.Report) error {
	data, err := Generate(meta, r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// FileName default workbook name for a run
func FileName(collectID string, at time.Time) string {
	return fmt.Sprintf("import-%s-%s.xlsx", collectID, at.Format("20060102-150405"))
}

func writeIdentifiers(f *excelize.File, r *batch.Report, headerStyle int) error {
	sheet := SheetIdentifiers
	for col, header := range identifierHeader {
		if err := setCellValue(f, sheet, col+1, 1, header); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "C", 24); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	row := 2
	for _, ident := range r.Identifiers.Idents() {
		ids := r.Identifiers[ident]
		for _, label := range ids.Labels() {
			values := []interface{}{ident, label, fmt.Sprint(ids[label])}
			for col, v := range values {
				if err := setCellValue(f, sheet, col+1, row, v); err != nil {
					return fmt.Errorf("failed to set cell value at row %d: %w", row, err)
				}
			}
			row++
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, meta Meta, r *batch.Report, headerStyle int) error {
	sheet := SheetSummary
	failed := ""
	if r.FailedIndex > 0 {
		failed = fmt.Sprintf("%d %s", r.FailedIndex, r.FailedIdent)
	}
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	rows := [][2]interface{}{
		{"Collect", meta.CollectID},
		{"Name", meta.CollectName},
		{"Run", r.RunID},
		{"State", r.State.String()},
		{"Records", r.Total},
		{"Processed", r.Processed},
		{"Committed", r.Committed},
		{"Rolled back", r.RolledBack},
		{"Failed record", failed},
		{"Message", r.Message()},
		{"Generated at", generated.Format(time.RFC3339)},
	}
	for i, kv := range rows {
		if err := setCellValue(f, sheet, 1, i+1, kv[0]); err != nil {
			return fmt.Errorf("failed to set summary label: %w", err)
		}
		if err := setCellValue(f, sheet, 2, i+1, kv[1]); err != nil {
			return fmt.Errorf("failed to set summary value: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return fmt.Errorf("failed to set label style: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(sheet, "B", "B", 80)
}

func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
