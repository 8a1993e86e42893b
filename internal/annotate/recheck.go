package annotate

import (
	"context"
	"log"
	"sync"

	"github.com/awacs/annotate/internal/classifier"
	"github.com/awacs/annotate/internal/model"
)

// VerifyFunc issues one independent re-check call for a record and
// reports whether its current classification should be kept.
type VerifyFunc func(ctx context.Context, worker int, rec *model.AdRecord) (keep bool, costCents float64, err error)

// Recheck is a conditional second-pass stage: records matching Predicate
// get re-checked by Verify under the same bounded-concurrency discipline
// as the annotation pool. A failed verification call keeps the record
// (prefer a false positive over losing it).
type Recheck struct {
	Predicate func(*model.AdRecord) bool
	Verify    VerifyFunc
	Workers   int

	// OnRefuted mutates a record whose classification was refuted.
	OnRefuted func(*model.AdRecord)
}

// RecheckSummary aggregates one re-check run.
type RecheckSummary struct {
	Total     int
	Kept      int
	Removed   int
	Errors    int
	CostCents float64
}

// Run re-checks every matching record and returns once all of them are
// decided. onVerified, when non-nil, fires after each record and may be
// called from any worker goroutine.
func (s *Recheck) Run(ctx context.Context, records []*model.AdRecord, onVerified func(rec *model.AdRecord, removed bool, costCents float64)) RecheckSummary {
	var matched []*model.AdRecord
	for _, rec := range records {
		if rec.ProcessingState == model.StateDone && s.Predicate(rec) {
			rec.VerificationStatus = model.VerificationPending
			matched = append(matched, rec)
		}
	}

	summary := RecheckSummary{Total: len(matched)}
	if len(matched) == 0 {
		return summary
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < len(matched); i += workers {
				rec := matched[i]
				keep, cost, err := s.Verify(ctx, worker, rec)
				rec.CostCents += cost

				removed := false
				switch {
				case err != nil:
					// Fail-safe: keep the classification.
					rec.VerificationStatus = model.VerificationKept
					log.Printf("ad %s: verification error, keeping classification: %v", rec.AdID, err)
				case keep:
					rec.VerificationStatus = model.VerificationKept
				default:
					rec.VerificationStatus = model.VerificationRemoved
					removed = true
					if s.OnRefuted != nil {
						s.OnRefuted(rec)
					}
				}

				mu.Lock()
				switch {
				case err != nil:
					summary.Errors++
					summary.Kept++
				case keep:
					summary.Kept++
				default:
					summary.Removed++
				}
				summary.CostCents += cost
				mu.Unlock()

				if onVerified != nil {
					onVerified(rec, removed, cost)
				}
			}
		}(w)
	}
	wg.Wait()

	return summary
}

// NewDuallyVerifier builds the dually false-positive suppression pass:
// predicate matches any record whose annotations mention the dually
// subtype, verification is a second model call against the primary photo.
func NewDuallyVerifier(c classifier.Classifier, keys *classifier.KeyPool, norm *Normalizer) *Recheck {
	return &Recheck{
		Predicate: func(rec *model.AdRecord) bool {
			return rec.HasCategory("dually")
		},
		Verify: func(ctx context.Context, worker int, rec *model.AdRecord) (bool, float64, error) {
			key, err := keys.Acquire(ctx, worker)
			if err != nil {
				return true, 0, err
			}
			v, err := c.VerifyDually(ctx, key.Secret, classifier.Request{
				AdID:        rec.AdID,
				Breadcrumbs: rec.Breadcrumbs,
				ImageURLs:   rec.ImageURLs,
			})
			if err != nil {
				return true, 0, err
			}
			return v.IsDually, v.CostCents, nil
		},
		Workers: keys.Size(),
		OnRefuted: func(rec *model.AdRecord) {
			rec.RemoveCategory("dually")
			rec.Status = recheckStatus(rec, norm)
		},
	}
}

func recheckStatus(rec *model.AdRecord, norm *Normalizer) string {
	cats := make([]string, 0, len(rec.Annotations))
	for _, a := range rec.Annotations {
		cats = append(cats, a.Category)
	}
	if SetsEqual(norm.NormalizeSet(rec.Breadcrumbs), norm.NormalizeSet(cats)) {
		return model.RecordStatusNoChange
	}
	return model.RecordStatusRequireUpdate
}
