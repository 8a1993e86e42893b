// Package audit diffs AI classification output against human-labeled
// ground truth and produces accuracy statistics.
package audit

import (
	"math"
	"sort"
	"strings"

	"github.com/awacs/annotate/internal/annotate"
	"github.com/awacs/annotate/internal/model"
)

// Record is one ad's labels from either input file.
type Record struct {
	AdID       string
	Categories []string
	// Status is the free-form per-ad status column, when present.
	Status string
	// Inactive marks the ad as delisted in the manual file.
	Inactive bool
}

// Compare joins the two record sets on ad id and classifies every
// matched pair as accepted, rejected or inactive. Ads present in only
// one set are excluded from the comparison but counted in each file's
// own total. The result does not depend on input ordering.
func Compare(ai, manual []Record, norm *annotate.Normalizer) *model.AuditResult {
	aiByID := indexByID(ai)
	manualByID := indexByID(manual)

	matched := make([]string, 0, len(aiByID))
	for id := range aiByID {
		if _, ok := manualByID[id]; ok {
			matched = append(matched, id)
		}
	}
	sort.Strings(matched)

	result := &model.AuditResult{
		Stats: model.AuditStats{
			AIFileTotalAds:      len(aiByID),
			ManualFileTotalAds:  len(manualByID),
			MatchingAdsCompared: len(matched),
		},
	}

	for _, id := range matched {
		aiRec, manualRec := aiByID[id], manualByID[id]
		aiSet := norm.NormalizeSet(aiRec.Categories)
		manualSet := norm.NormalizeSet(manualRec.Categories)

		outcome := classify(aiRec, aiSet, manualRec, manualSet)
		switch outcome {
		case model.AuditAccepted:
			result.Summary.TotalAccepted++
		case model.AuditRejected:
			result.Summary.TotalRejected++
		case model.AuditInactive:
			result.Summary.TotalInactive++
		}

		result.Details = append(result.Details, model.AuditDetail{
			AdID:             id,
			Outcome:          outcome,
			AICategories:     joinSorted(aiSet),
			ManualCategories: joinSorted(manualSet),
		})
	}

	accepted := result.Summary.TotalAccepted
	rejected := result.Summary.TotalRejected
	inactive := result.Summary.TotalInactive

	result.Summary.TotalAudited = len(matched)
	result.Summary.ActiveAccuracy = percentage(accepted, accepted+rejected)
	result.Summary.GlobalAccuracy = percentage(accepted, accepted+rejected+inactive)
	return result
}

// classify decides one matched pair's outcome. The inactive flag on the
// manual label wins over everything else.
func classify(aiRec Record, aiSet map[string]struct{}, manualRec Record, manualSet map[string]struct{}) string {
	if manualRec.Inactive {
		return model.AuditInactive
	}
	if annotate.SetsEqual(aiSet, manualSet) {
		return model.AuditAccepted
	}
	if len(manualSet) == 0 {
		// An empty manual label agrees with the AI declining to
		// classify, or with the ad having gone inactive since.
		if _, ok := aiSet["image not clear"]; ok {
			return model.AuditAccepted
		}
		if strings.Contains(strings.ToLower(aiRec.Status), "inactive") {
			return model.AuditAccepted
		}
		if _, ok := aiSet["inactive ad"]; ok {
			return model.AuditAccepted
		}
	}
	return model.AuditRejected
}

func indexByID(records []Record) map[string]Record {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		if id := strings.TrimSpace(r.AdID); id != "" {
			byID[id] = r
		}
	}
	return byID
}

func joinSorted(set map[string]struct{}) string {
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)
	return strings.Join(items, ", ")
}

// percentage returns num/den as a percentage rounded to one decimal,
// and 0 when the denominator is zero.
func percentage(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*1000) / 10
}
