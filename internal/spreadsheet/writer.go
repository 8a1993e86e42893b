package spreadsheet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/awacs/annotate/internal/model"
)

// Output workbook column order is part of the analyst-facing contract.
var outputCols = []string{
	"Ad ID", "Breadcrumb_Top1", "Breadcrumb_Top2", "Breadcrumb_Top3",
	"Annotated_Top1", "Annotated_Top2", "Annotated_Top3",
	"Annotated_Top1_Score", "Annotated_Top2_Score", "Annotated_Top3_Score",
	"Image_Count", "Image_URLs", "Status", "Cost_Cents",
}

func newSheet(f *excelize.File, name string) error {
	if idx, _ := f.GetSheetIndex(name); idx == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	idx, _ := f.GetSheetIndex(name)
	f.SetActiveSheet(idx)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// WriteAnnotated saves the final annotated workbook for a completed job.
func WriteAnnotated(path string, records []*model.AdRecord) error {
	f := excelize.NewFile()
	const sheet = "Annotated"
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")

	header := make([]interface{}, len(outputCols))
	for i, c := range outputCols {
		header[i] = c
	}
	writeRow(f, sheet, 1, header)

	for i, rec := range records {
		row := []interface{}{rec.AdID}
		for j := 0; j < 3; j++ {
			row = append(row, pick(rec.Breadcrumbs, j))
		}
		for j := 0; j < 3; j++ {
			if j < len(rec.Annotations) {
				row = append(row, rec.Annotations[j].Category)
			} else {
				row = append(row, "")
			}
		}
		for j := 0; j < 3; j++ {
			if j < len(rec.Annotations) {
				row = append(row, rec.Annotations[j].Confidence)
			} else {
				row = append(row, 0)
			}
		}
		row = append(row,
			len(rec.ImageURLs),
			strings.Join(rec.ImageURLs, ", "),
			rec.Status,
			rec.CostCents,
		)
		writeRow(f, sheet, i+2, row)
	}

	return f.SaveAs(path)
}

// WriteAds saves a plain ad workbook (the db-fetch artifact that later
// becomes a job input).
func WriteAds(path string, records []*model.AdRecord) error {
	f := excelize.NewFile()
	const sheet = "Ads"
	if err := newSheet(f, sheet); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")

	writeRow(f, sheet, 1, []interface{}{
		"Ad ID", "Breadcrumb_Top1", "Breadcrumb_Top2", "Breadcrumb_Top3", "Image_URLs",
	})
	for i, rec := range records {
		writeRow(f, sheet, i+2, []interface{}{
			rec.AdID,
			pick(rec.Breadcrumbs, 0),
			pick(rec.Breadcrumbs, 1),
			pick(rec.Breadcrumbs, 2),
			strings.Join(rec.ImageURLs, ", "),
		})
	}
	return f.SaveAs(path)
}

// WriteAuditReport saves the two-sheet audit workbook: the per-ad diff
// and a summary with the most common mismatch patterns.
func WriteAuditReport(path string, result *model.AuditResult) error {
	f := excelize.NewFile()
	const detailSheet = "Detailed Audit"
	const summarySheet = "Summary"
	if err := newSheet(f, detailSheet); err != nil {
		return err
	}
	if err := newSheet(f, summarySheet); err != nil {
		return err
	}
	f.DeleteSheet("Sheet1")

	writeRow(f, detailSheet, 1, []interface{}{"Ad ID", "Outcome", "AI Categories", "Manual Categories"})
	for i, d := range result.Details {
		writeRow(f, detailSheet, i+2, []interface{}{d.AdID, d.Outcome, d.AICategories, d.ManualCategories})
	}

	s := result.Summary
	summaryRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Ads Audited", s.TotalAudited},
		{"Total Inactive Ads", s.TotalInactive},
		{"Total Accepted", s.TotalAccepted},
		{"Total Rejected", s.TotalRejected},
		{"Global Accuracy (Including Inactive)", fmt.Sprintf("%.1f%%", s.GlobalAccuracy)},
		{"Active Accuracy (Excluding Inactive)", fmt.Sprintf("%.1f%%", s.ActiveAccuracy)},
	}
	for i, row := range summaryRows {
		writeRow(f, summarySheet, i+1, row)
	}

	// Hall of shame: most common mismatch patterns.
	patterns := mismatchPatterns(result)
	start := len(summaryRows) + 2
	if len(patterns) > 0 {
		writeRow(f, summarySheet, start, []interface{}{"Mismatch Scenario", "Count"})
		for i, p := range patterns {
			writeRow(f, summarySheet, start+1+i, []interface{}{p.pattern, p.count})
		}
	} else {
		writeRow(f, summarySheet, start, []interface{}{"No rejections"})
	}

	return f.SaveAs(path)
}

type patternCount struct {
	pattern string
	count   int
}

func mismatchPatterns(result *model.AuditResult) []patternCount {
	counts := make(map[string]int)
	for _, d := range result.Details {
		if d.Outcome != model.AuditRejected {
			continue
		}
		counts[fmt.Sprintf("AI: [%s] vs Manual: [%s]", d.AICategories, d.ManualCategories)]++
	}
	patterns := make([]patternCount, 0, len(counts))
	for p, c := range counts {
		patterns = append(patterns, patternCount{p, c})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].count != patterns[j].count {
			return patterns[i].count > patterns[j].count
		}
		return patterns[i].pattern < patterns[j].pattern
	})
	return patterns
}

func pick(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
