package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/awacs/annotate/internal/model"
)

// Request carries everything the external model gets to see for one listing.
type Request struct {
	AdID        string
	Breadcrumbs []string
	ImageURLs   []string
}

// Result is one classification call's output: up to three ranked
// categories plus the call's token usage and estimated cost.
type Result struct {
	Annotations  []model.Annotation
	InputTokens  int
	OutputTokens int
	CostCents    float64
}

// Verification is the outcome of a dually re-check call.
type Verification struct {
	IsDually     bool
	Confidence   float64
	InputTokens  int
	OutputTokens int
	CostCents    float64
}

// Classifier is the external AI model boundary. Implementations must be
// safe for concurrent use; the pool issues one call per worker at a time
// per key.
type Classifier interface {
	Classify(ctx context.Context, apiKey string, req Request) (*Result, error)
	VerifyDually(ctx context.Context, apiKey string, req Request) (*Verification, error)
}

// APIError is a non-2xx answer from the classifier endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("classifier API error (status %d): %s", e.StatusCode, e.Body)
}

// Transient reports whether a failed call is worth retrying: timeouts,
// rate limits and 5xx-class answers. Malformed requests (4xx other than
// 429) are not.
func Transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
