package model

import "time"

// DuallyVerification carries the second-pass counters, only meaningful
// once the verifying_dually stage has been entered.
type DuallyVerification struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Removed  int `json:"removed"`
}

// Job is a classification job. Owned exclusively by the job service;
// workers report results, the service aggregates.
type Job struct {
	ID             string    `json:"id"`
	Status         JobStatus `json:"status"`
	SourceFilename string    `json:"source_filename"`
	SourcePath     string    `json:"source_path"`
	OutputFilename string    `json:"output_filename,omitempty"`
	OutputPath     string    `json:"output_path,omitempty"`
	Reannotation   bool      `json:"is_reannotation,omitempty"`

	AdCount      int `json:"ad_count"`
	CompletedAds int `json:"completed_ads"`

	// Monotonically increasing accumulators, in cents.
	TotalCost              float64 `json:"total_cost"`
	AnnotationCost         float64 `json:"annotation_cost"`
	DuallyVerificationCost float64 `json:"dually_verification_cost"`

	DuallyVerification *DuallyVerification `json:"dually_verification,omitempty"`

	// Set exactly once, on transition to failed.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to readers while the job is
// still being mutated.
func (j *Job) Clone() *Job {
	c := *j
	if j.DuallyVerification != nil {
		dv := *j.DuallyVerification
		c.DuallyVerification = &dv
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobSnapshot is the polled API view of a job. Field names are a
// compatibility contract with the dashboard.
type JobSnapshot struct {
	JobID                  string              `json:"job_id"`
	Status                 JobStatus           `json:"status"`
	Filename               string              `json:"filename"`
	OutputFilename         string              `json:"output_filename,omitempty"`
	TotalAds               int                 `json:"total_ads"`
	CompletedAds           int                 `json:"completed_ads"`
	TotalCost              float64             `json:"total_cost"`
	AnnotationCost         float64             `json:"annotation_cost"`
	DuallyVerificationCost float64             `json:"dually_verification_cost"`
	DuallyVerification     *DuallyVerification `json:"dually_verification,omitempty"`
	Error                  string              `json:"error,omitempty"`
	Elapsed                int                 `json:"elapsed"`
}

// JobCreated is the creation response: the snapshot fields plus the
// ad_count the dashboard shows right after an upload.
type JobCreated struct {
	*JobSnapshot
	AdCount int `json:"ad_count"`
}

// Created renders the creation view of the job.
func (j *Job) Created() *JobCreated {
	return &JobCreated{JobSnapshot: j.Snapshot(), AdCount: j.AdCount}
}

// Snapshot renders the API view of the job.
func (j *Job) Snapshot() *JobSnapshot {
	elapsed := 0
	if j.StartedAt != nil {
		end := time.Now()
		if j.CompletedAt != nil {
			end = *j.CompletedAt
		}
		elapsed = int(end.Sub(*j.StartedAt).Seconds())
	}
	return &JobSnapshot{
		JobID:                  j.ID,
		Status:                 j.Status,
		Filename:               j.SourceFilename,
		OutputFilename:         j.OutputFilename,
		TotalAds:               j.AdCount,
		CompletedAds:           j.CompletedAds,
		TotalCost:              j.TotalCost,
		AnnotationCost:         j.AnnotationCost,
		DuallyVerificationCost: j.DuallyVerificationCost,
		DuallyVerification:     j.DuallyVerification,
		Error:                  j.Error,
		Elapsed:                elapsed,
	}
}
