package model

import "strings"

// Annotation is a single predicted category with its confidence score.
type Annotation struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// AdRecord is one listing's classification record within a job.
// Workers write only the result fields of their own assigned records;
// the controller never touches them while a dispatch is running.
type AdRecord struct {
	AdID        string   `json:"ad_id"`
	Breadcrumbs []string `json:"breadcrumbs"` // up to 3 category hints, may be empty
	ImageURLs   []string `json:"image_urls"`

	// Result fields, absent until processed.
	Annotations        []Annotation       `json:"annotations,omitempty"`
	PredictedCategory  string             `json:"predicted_category,omitempty"`
	Confidence         float64            `json:"confidence,omitempty"`
	Status             string             `json:"status,omitempty"`
	Error              string             `json:"error,omitempty"`
	CostCents          float64            `json:"cost_cents"`
	ProcessingState    ProcessingState    `json:"processing_state"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// NewAdRecord returns a record in its initial state.
func NewAdRecord(adID string, breadcrumbs, imageURLs []string) *AdRecord {
	return &AdRecord{
		AdID:               adID,
		Breadcrumbs:        breadcrumbs,
		ImageURLs:          imageURLs,
		ProcessingState:    StatePending,
		VerificationStatus: VerificationNotApplicable,
	}
}

// SetAnnotations stores the classifier output and mirrors the top
// prediction into the flat fields.
func (r *AdRecord) SetAnnotations(anns []Annotation) {
	r.Annotations = anns
	if len(anns) > 0 {
		r.PredictedCategory = anns[0].Category
		r.Confidence = anns[0].Confidence
	} else {
		r.PredictedCategory = ""
		r.Confidence = 0
	}
}

// Inactive reports whether the listing was flagged inactive during
// ingestion. Inactive ads skip classification entirely.
func (r *AdRecord) Inactive() bool {
	for _, b := range r.Breadcrumbs {
		if strings.Contains(strings.ToLower(b), "inactive") {
			return true
		}
	}
	return false
}

// HasCategory reports whether any annotation contains the given
// category name (case-insensitive substring, matching how compound
// labels like "Box Truck Dually" carry the subtype).
func (r *AdRecord) HasCategory(name string) bool {
	needle := strings.ToLower(name)
	for _, a := range r.Annotations {
		if strings.Contains(strings.ToLower(a.Category), needle) {
			return true
		}
	}
	return false
}

// RemoveCategory strips the given category from every annotation,
// dropping annotations that become empty and keeping the remainder
// ordered by confidence. Used by the dually verifier on refutation.
func (r *AdRecord) RemoveCategory(name string) {
	needle := strings.ToLower(name)
	kept := r.Annotations[:0]
	for _, a := range r.Annotations {
		lower := strings.ToLower(a.Category)
		switch {
		case lower == needle:
			// whole label was the subtype, drop it
		case strings.Contains(lower, needle):
			if i := strings.Index(lower, needle); i >= 0 {
				a.Category = strings.TrimSpace(a.Category[:i] + a.Category[i+len(needle):])
			}
			if a.Category != "" {
				kept = append(kept, a)
			}
		default:
			kept = append(kept, a)
		}
	}
	r.SetAnnotations(kept)
}
