package model

import "time"

// Per-ad audit outcome.
const (
	AuditAccepted = "Accepted"
	AuditRejected = "Rejected"
	AuditInactive = "Inactive"
)

// AuditSummary holds the headline accuracy numbers. Accuracies are
// percentages rounded to one decimal place; 0 when nothing matched.
type AuditSummary struct {
	ActiveAccuracy float64 `json:"active_accuracy"`
	GlobalAccuracy float64 `json:"global_accuracy"`
	TotalAudited   int     `json:"total_audited"`
	TotalAccepted  int     `json:"total_accepted"`
	TotalRejected  int     `json:"total_rejected"`
	TotalInactive  int     `json:"total_inactive"`
}

// AuditStats describes the two input files and their overlap.
type AuditStats struct {
	AIFileTotalAds      int `json:"ai_file_total_ads"`
	ManualFileTotalAds  int `json:"manual_file_total_ads"`
	MatchingAdsCompared int `json:"matching_ads_compared"`
}

// AuditDetail is one matched ad's comparison row in the report.
type AuditDetail struct {
	AdID             string
	Outcome          string
	AICategories     string
	ManualCategories string
}

// AuditResult is the full diff of AI output against manual labels.
// Derived and immutable once computed; not part of any job.
type AuditResult struct {
	Summary AuditSummary
	Stats   AuditStats
	Details []AuditDetail
}

// AuditReport is a stored, downloadable audit run.
type AuditReport struct {
	ID             string    `json:"audit_id"`
	AIFilename     string    `json:"ai_file"`
	ManualFilename string    `json:"manual_file"`
	ReportFilename string    `json:"report_filename"`
	ReportPath     string    `json:"-"`
	Result         *AuditResult `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
