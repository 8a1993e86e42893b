package service

import (
	"fmt"

	"github.com/awacs/annotate/internal/model"
)

// InvalidStateError rejects an operation attempted in the wrong job
// status. The job is left unchanged.
type InvalidStateError struct {
	JobID  string
	Status model.JobStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s is already %s", e.JobID, e.Status)
}

// IngestionError is a scrape or bulk-fetch failure. It fails the job.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// AuditInputError is a malformed or unusable audit upload, surfaced
// synchronously with no partial result.
type AuditInputError struct {
	Msg string
}

func (e *AuditInputError) Error() string {
	return e.Msg
}
