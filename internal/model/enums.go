package model

// Job status
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusScraping        JobStatus = "scraping"
	JobStatusProcessing      JobStatus = "processing"
	JobStatusVerifyingDually JobStatus = "verifying_dually"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusFailed          JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Per-record progress, independent of job-level status.
// Transitions are monotonic: pending -> in_flight -> done|failed.
type ProcessingState string

const (
	StatePending  ProcessingState = "pending"
	StateInFlight ProcessingState = "in_flight"
	StateDone     ProcessingState = "done"
	StateFailed   ProcessingState = "failed"
)

// Terminal reports whether the record has finished processing.
func (s ProcessingState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Verification outcome of the dually re-check pass.
type VerificationStatus string

const (
	VerificationNotApplicable VerificationStatus = "not_applicable"
	VerificationPending       VerificationStatus = "pending_verification"
	VerificationKept          VerificationStatus = "verified_kept"
	VerificationRemoved       VerificationStatus = "verified_removed"
)

// Per-record status strings written to the output workbook.
const (
	RecordStatusNoChange      = "No change"
	RecordStatusRequireUpdate = "Require Update"
	RecordStatusInactive      = "Inactive ad"
	RecordStatusNoImages      = "No Images Present"
	RecordStatusNotClear      = "Image not clear"
)
