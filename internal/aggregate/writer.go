// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Columns is the report header, in order.
var Columns = []string{"Title", "Authors", "Affiliations", "Keywords", "Highlights"}

// Row is one paper in the aggregated report.
type Row struct {
	Title        string `json:"title" yaml:"title"`
	Authors      string `json:"authors" yaml:"authors"`
	Affiliations string `json:"affiliations" yaml:"affiliations"`
	Keywords     string `json:"keywords" yaml:"keywords"`
	Highlights   string `json:"highlights" yaml:"highlights"`
}

// Values returns the row in Columns order.
func (r Row) Values() []string {
	return []string{r.Title, r.Authors, r.Affiliations, r.Keywords, r.Highlights}
}

// Writer renders rows to a file.
type Writer interface {
	// Ext is the file extension written, including the dot.
	Ext() string
	Write(path string, rows []Row) error
}

const sheetName = "Summary"

// columnWidths are character widths for the Columns.
var columnWidths = []float64{50, 40, 50, 40, 100}

// ExcelWriter writes rows as a single-sheet xlsx workbook.
type ExcelWriter struct{}

// Ext implements Writer.
func (ExcelWriter) Ext() string { return ".xlsx" }

// Write implements Writer.
func (ExcelWriter) Write(path string, rows []Row) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("creating cell style: %w", err)
	}

	for i, name := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("sizing column %s: %w", col, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for r, row := range rows {
		for c, v := range row.Values() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", r+1, err)
			}
		}
	}
	if len(rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(Columns), len(rows)+1)
		if err := f.SetCellStyle(sheetName, "A2", end, wrap); err != nil {
			return fmt.Errorf("styling rows: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// MarkdownWriter writes rows as a GitHub-flavored Markdown table.
type MarkdownWriter struct{}

// Ext implements Writer.
func (MarkdownWriter) Ext() string { return ".md" }

// Write implements Writer.
func (MarkdownWriter) Write(path string, rows []Row) error {
	var b strings.Builder
	b.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(Columns)) + "\n")
	for _, row := range rows {
		vals := row.Values()
		for i, v := range vals {
			vals[i] = markdownCell(v)
		}
		b.WriteString("| " + strings.Join(vals, " | ") + " |\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func markdownCell(s string) string {
	return cellEscaper.Replace(strings.TrimSpace(s))
}
