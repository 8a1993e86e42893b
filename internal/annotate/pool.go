package annotate

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/awacs/annotate/internal/classifier"
	"github.com/awacs/annotate/internal/model"
)

// Progress is a worker's report for one finished record. Workers write
// only their own record's fields; aggregation onto the job happens in
// the callback's owner.
type Progress struct {
	AdID      string
	State     model.ProcessingState
	CostCents float64
}

// Summary is the aggregate outcome of one dispatch.
type Summary struct {
	Processed int
	Done      int
	Failed    int
	CostCents float64
}

// Pool classifies pending ad records through the external model with
// one logical worker per configured API credential, respecting per-key
// rate limits.
type Pool struct {
	classifier  classifier.Classifier
	keys        *classifier.KeyPool
	norm        *Normalizer
	maxAttempts int
	retryBase   time.Duration
}

func NewPool(c classifier.Classifier, keys *classifier.KeyPool, norm *Normalizer, maxAttempts int, retryBase time.Duration) *Pool {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pool{
		classifier:  c,
		keys:        keys,
		norm:        norm,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
	}
}

// Dispatch processes every pending record and returns only after each
// one has reached a terminal processing state. Records are distributed
// across workers round-robin; each worker runs its share sequentially.
// onProgress, when non-nil, is invoked once per finished record and may
// be called from any worker goroutine.
func (p *Pool) Dispatch(ctx context.Context, records []*model.AdRecord, onProgress func(Progress)) Summary {
	workers := p.keys.Size()
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		summary Summary
	)
	report := func(rec *model.AdRecord) {
		mu.Lock()
		summary.Processed++
		if rec.ProcessingState == model.StateDone {
			summary.Done++
		} else {
			summary.Failed++
		}
		summary.CostCents += rec.CostCents
		mu.Unlock()
		if onProgress != nil {
			onProgress(Progress{AdID: rec.AdID, State: rec.ProcessingState, CostCents: rec.CostCents})
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < len(records); i += workers {
				rec := records[i]
				if rec.ProcessingState != model.StatePending {
					continue
				}
				p.processRecord(ctx, worker, rec)
				report(rec)
			}
		}(w)
	}
	wg.Wait()

	return summary
}

func (p *Pool) processRecord(ctx context.Context, worker int, rec *model.AdRecord) {
	rec.ProcessingState = model.StateInFlight

	// Inactive and image-less listings are decided without a model call.
	if rec.Inactive() {
		rec.Status = model.RecordStatusInactive
		rec.ProcessingState = model.StateDone
		return
	}

	req := classifier.Request{
		AdID:        rec.AdID,
		Breadcrumbs: rec.Breadcrumbs,
		ImageURLs:   rec.ImageURLs,
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		key, err := p.keys.Acquire(ctx, worker)
		if err != nil {
			lastErr = err
			break
		}

		result, err := p.classifier.Classify(ctx, key.Secret, req)
		if err == nil {
			rec.SetAnnotations(result.Annotations)
			rec.CostCents = result.CostCents
			rec.Status = p.recordStatus(rec)
			rec.ProcessingState = model.StateDone
			return
		}

		lastErr = err
		if !classifier.Transient(err) {
			break
		}
		if attempt < p.maxAttempts {
			backoff := p.retryBase << (attempt - 1)
			log.Printf("ad %s: transient classifier error (attempt %d/%d), retrying in %s: %v",
				rec.AdID, attempt, p.maxAttempts, backoff, err)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = p.maxAttempts
			case <-time.After(backoff):
			}
		}
	}

	// Retry ceiling reached: the error lives on the record, not the job.
	rec.Error = lastErr.Error()
	rec.ProcessingState = model.StateFailed
	log.Printf("ad %s: classification failed: %v", rec.AdID, lastErr)
}

// recordStatus compares the normalized breadcrumb set against the
// normalized annotation set.
func (p *Pool) recordStatus(rec *model.AdRecord) string {
	if len(rec.ImageURLs) == 0 && len(rec.Annotations) == 0 {
		return model.RecordStatusNoImages
	}
	if len(rec.Annotations) > 0 && strings.EqualFold(rec.Annotations[0].Category, model.RecordStatusNotClear) {
		return model.RecordStatusNotClear
	}
	cats := make([]string, 0, len(rec.Annotations))
	for _, a := range rec.Annotations {
		cats = append(cats, a.Category)
	}
	if SetsEqual(p.norm.NormalizeSet(rec.Breadcrumbs), p.norm.NormalizeSet(cats)) {
		return model.RecordStatusNoChange
	}
	return model.RecordStatusRequireUpdate
}
