package service

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/awacs/annotate/internal/annotate"
	"github.com/awacs/annotate/internal/audit"
	"github.com/awacs/annotate/internal/model"
	"github.com/awacs/annotate/internal/spreadsheet"
)

// AuditService compares an annotated output workbook against a manually
// labeled one and keeps finished reports around for download. Audits are
// synchronous; they never touch the job store.
type AuditService struct {
	norm     *annotate.Normalizer
	auditDir string

	mu      sync.Mutex
	reports map[string]*model.AuditReport
}

func NewAuditService(norm *annotate.Normalizer, auditDir string) *AuditService {
	return &AuditService{
		norm:     norm,
		auditDir: auditDir,
		reports:  make(map[string]*model.AuditReport),
	}
}

// Run reads both workbooks, diffs them and writes the report workbook.
func (s *AuditService) Run(aiPath, aiFilename, manualPath, manualFilename string) (*model.AuditReport, error) {
	aiRecords, err := spreadsheet.ReadAIRecords(aiPath)
	if err != nil {
		return nil, &AuditInputError{Msg: fmt.Sprintf("AI file: %v", err)}
	}
	manualRecords, err := spreadsheet.ReadManualRecords(manualPath)
	if err != nil {
		return nil, &AuditInputError{Msg: fmt.Sprintf("manual file: %v", err)}
	}

	result := audit.Compare(aiRecords, manualRecords, s.norm)
	if result.Stats.MatchingAdsCompared == 0 {
		return nil, &AuditInputError{Msg: "no matching Ad IDs between the two files"}
	}

	reportFilename := fmt.Sprintf("Audit_Report_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	reportPath := filepath.Join(s.auditDir, reportFilename)
	if err := spreadsheet.WriteAuditReport(reportPath, result); err != nil {
		return nil, fmt.Errorf("save audit report: %w", err)
	}

	report := &model.AuditReport{
		ID:             newShortID(),
		AIFilename:     aiFilename,
		ManualFilename: manualFilename,
		ReportFilename: reportFilename,
		ReportPath:     reportPath,
		Result:         result,
		CreatedAt:      time.Now(),
	}

	s.mu.Lock()
	s.reports[report.ID] = report
	s.mu.Unlock()

	return report, nil
}

func (s *AuditService) Get(id string) (*model.AuditReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("audit %s not found", id)
	}
	return report, nil
}
