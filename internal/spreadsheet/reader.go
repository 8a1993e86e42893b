// Package spreadsheet reads and writes the Excel workbooks the analysts
// exchange with the service.
package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/awacs/annotate/internal/audit"
	"github.com/awacs/annotate/internal/model"
)

// Input column names. Matching is case-insensitive.
const (
	ColAdID      = "Ad ID"
	ColImageURLs = "Image_URLs"
)

var breadcrumbCols = []string{"Breadcrumb_Top1", "Breadcrumb_Top2", "Breadcrumb_Top3"}

type sheetData struct {
	header map[string]int // lowered column name -> index
	rows   [][]string
}

func readFirstSheet(path string) (*sheetData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return &sheetData{header: header, rows: rows[1:]}, nil
}

func (s *sheetData) col(name string) (int, bool) {
	i, ok := s.header[strings.ToLower(name)]
	return i, ok
}

func (s *sheetData) cell(row []string, name string) string {
	i, ok := s.col(name)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// cleanAdID strips the trailing ".0" Excel appends to numeric ids.
func cleanAdID(raw string) string {
	return strings.TrimSpace(strings.TrimSuffix(raw, ".0"))
}

// ReadAds loads ad records from an uploaded workbook. The Ad ID column
// is required; breadcrumb and image columns are optional (they get
// populated by scraping).
func ReadAds(path string) ([]*model.AdRecord, error) {
	sheet, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.col(ColAdID); !ok {
		return nil, fmt.Errorf("workbook must have an %q column", ColAdID)
	}

	var records []*model.AdRecord
	for _, row := range sheet.rows {
		adID := cleanAdID(sheet.cell(row, ColAdID))
		if adID == "" {
			continue
		}
		var breadcrumbs []string
		for _, col := range breadcrumbCols {
			if v := sheet.cell(row, col); v != "" {
				breadcrumbs = append(breadcrumbs, v)
			}
		}
		var imageURLs []string
		for _, u := range strings.Split(sheet.cell(row, ColImageURLs), ",") {
			if u = strings.TrimSpace(u); u != "" {
				imageURLs = append(imageURLs, u)
			}
		}
		records = append(records, model.NewAdRecord(adID, breadcrumbs, imageURLs))
	}
	return records, nil
}

// RequireScrapedColumns verifies a workbook already carries scraped
// data, which re-annotation depends on.
func RequireScrapedColumns(path string) error {
	sheet, err := readFirstSheet(path)
	if err != nil {
		return err
	}
	var missing []string
	for _, col := range []string{ColAdID, breadcrumbCols[0], ColImageURLs} {
		if _, ok := sheet.col(col); !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("file appears to not be scraped yet, missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AI output column names from the annotated workbook.
var annotatedCols = []string{"Annotated_Top1", "Annotated_Top2", "Annotated_Top3"}

// Manual feedback column names from the data team's workbook.
var manualCols = []string{"Primary Category", "Add'l Category 1", "Add'l Category 2"}

// ReadAIRecords loads the AI-annotated side of an audit.
func ReadAIRecords(path string) ([]audit.Record, error) {
	sheet, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.col(ColAdID); !ok {
		return nil, fmt.Errorf("AI annotated file must have an %q column", ColAdID)
	}

	var records []audit.Record
	for _, row := range sheet.rows {
		adID := cleanAdID(sheet.cell(row, ColAdID))
		if adID == "" {
			continue
		}
		rec := audit.Record{AdID: adID, Status: sheet.cell(row, "Status")}
		for _, col := range annotatedCols {
			if v := sheet.cell(row, col); v != "" {
				rec.Categories = append(rec.Categories, v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadManualRecords loads the human-labeled side of an audit. An ad is
// inactive when its status column, or any category cell, says so.
func ReadManualRecords(path string) ([]audit.Record, error) {
	sheet, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.col(ColAdID); !ok {
		return nil, fmt.Errorf("manual feedback file must have an %q column", ColAdID)
	}

	var records []audit.Record
	for _, row := range sheet.rows {
		adID := cleanAdID(sheet.cell(row, ColAdID))
		if adID == "" {
			continue
		}
		rec := audit.Record{AdID: adID, Status: sheet.cell(row, "Status")}
		for _, col := range manualCols {
			if v := sheet.cell(row, col); v != "" {
				rec.Categories = append(rec.Categories, v)
			}
		}
		rec.Inactive = markedInactive(rec)
		records = append(records, rec)
	}
	return records, nil
}

func markedInactive(rec audit.Record) bool {
	if strings.Contains(strings.ToLower(rec.Status), "inactive") {
		return true
	}
	for _, c := range rec.Categories {
		if strings.Contains(strings.ToLower(c), "inactive") {
			return true
		}
	}
	return false
}
