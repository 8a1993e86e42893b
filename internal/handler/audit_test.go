package handler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/awacs/annotate/internal/model"
	"github.com/awacs/annotate/internal/spreadsheet"
)

func writeAIWorkbook(t *testing.T) string {
	t.Helper()
	records := []*model.AdRecord{
		annotated("1", "Box Truck"),
		annotated("2", "Dump Truck"),
		annotated("3", "Box Truck"),
	}
	path := filepath.Join(t.TempDir(), "ai.xlsx")
	if err := spreadsheet.WriteAnnotated(path, records); err != nil {
		t.Fatalf("write AI workbook: %v", err)
	}
	return path
}

func annotated(adID, category string) *model.AdRecord {
	rec := model.NewAdRecord(adID, []string{category}, []string{"http://img/1.jpg"})
	rec.SetAnnotations([]model.Annotation{{Category: category, Confidence: 0.9}})
	rec.Status = model.RecordStatusNoChange
	return rec
}

func writeManualWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Ad ID", "Primary Category", "Add'l Category 1", "Add'l Category 2", "Status"},
		{"1", "Box Trucks", "", "", ""},
		{"2", "Flatbed Truck", "", "", ""},
		{"3", "", "", "", "Inactive ad"},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			_ = f.SetCellValue("Sheet1", cell, v)
		}
	}
	path := filepath.Join(t.TempDir(), "manual.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("write manual workbook: %v", err)
	}
	return path
}

func TestAuditRun(t *testing.T) {
	app := setupApp(t, "")

	req := multipartRequest(t, "/api/audit", map[string]string{
		"ai_file":     writeAIWorkbook(t),
		"manual_file": writeManualWorkbook(t),
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		AuditID string `json:"audit_id"`
		Summary struct {
			ActiveAccuracy float64 `json:"active_accuracy"`
			GlobalAccuracy float64 `json:"global_accuracy"`
			TotalAccepted  int     `json:"total_accepted"`
			TotalRejected  int     `json:"total_rejected"`
			TotalInactive  int     `json:"total_inactive"`
		} `json:"summary"`
		Stats struct {
			MatchingAdsCompared int `json:"matching_ads_compared"`
		} `json:"stats"`
	}
	decodeJSON(t, resp, &body)

	if body.AuditID == "" {
		t.Fatal("no audit_id")
	}
	if body.Stats.MatchingAdsCompared != 3 {
		t.Errorf("matched = %d", body.Stats.MatchingAdsCompared)
	}
	// Ad 1 accepted, ad 2 rejected, ad 3 inactive.
	if body.Summary.TotalAccepted != 1 || body.Summary.TotalRejected != 1 || body.Summary.TotalInactive != 1 {
		t.Fatalf("summary = %+v", body.Summary)
	}
	if body.Summary.ActiveAccuracy != 50.0 {
		t.Errorf("active accuracy = %v", body.Summary.ActiveAccuracy)
	}
	if body.Summary.GlobalAccuracy != 33.3 {
		t.Errorf("global accuracy = %v", body.Summary.GlobalAccuracy)
	}

	// The stored report is retrievable and downloadable.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/audit/"+body.AuditID, nil), -1)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get audit: %v status %d", err, resp.StatusCode)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/audit/"+body.AuditID+"/download", nil), -1)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("download audit: %v status %d", err, resp.StatusCode)
	}
}

func TestAuditRejectsDisjointFiles(t *testing.T) {
	app := setupApp(t, "")

	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Ad ID")
	_ = f.SetCellValue("Sheet1", "B1", "Primary Category")
	_ = f.SetCellValue("Sheet1", "A2", "999")
	_ = f.SetCellValue("Sheet1", "B2", "Box Trucks")
	manual := filepath.Join(t.TempDir(), "manual.xlsx")
	if err := f.SaveAs(manual); err != nil {
		t.Fatal(err)
	}

	req := multipartRequest(t, "/api/audit", map[string]string{
		"ai_file":     writeAIWorkbook(t),
		"manual_file": manual,
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body map[string]map[string]interface{}
	decodeJSON(t, resp, &body)
	if body["error"]["code"] != "AUDIT_INPUT_ERROR" {
		t.Errorf("error = %v", body)
	}
}

func TestAuditMissingFile(t *testing.T) {
	app := setupApp(t, "")

	req := multipartRequest(t, "/api/audit", map[string]string{
		"ai_file": writeAIWorkbook(t),
	})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
