package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/awacs/annotate/internal/annotate"
	"github.com/awacs/annotate/internal/model"
	"github.com/awacs/annotate/internal/scrape"
	"github.com/awacs/annotate/internal/spreadsheet"
	"github.com/awacs/annotate/internal/store"
)

// JobService is the job controller: it owns the job state machine and
// sequences ingestion, annotation, verification and completion. Workers
// report results through callbacks; only the service mutates jobs.
type JobService struct {
	store    store.JobStore
	scraper  scrape.Scraper
	pool     *annotate.Pool
	verifier *annotate.Recheck

	outputDir    string
	verifyDually bool

	mu      sync.Mutex
	records map[string][]*model.AdRecord
	running map[string]bool
}

func NewJobService(st store.JobStore, scraper scrape.Scraper, pool *annotate.Pool, verifier *annotate.Recheck, outputDir string, verifyDually bool) *JobService {
	return &JobService{
		store:        st,
		scraper:      scraper,
		pool:         pool,
		verifier:     verifier,
		outputDir:    outputDir,
		verifyDually: verifyDually,
		records:      make(map[string][]*model.AdRecord),
		running:      make(map[string]bool),
	}
}

func newShortID() string {
	return uuid.New().String()[:8]
}

// CreateFromFile creates a job from an uploaded workbook. Reannotation
// jobs must carry scraped columns already and skip the scraping stage.
func (s *JobService) CreateFromFile(ctx context.Context, filename, path string, reannotation bool) (*model.Job, error) {
	if reannotation {
		if err := spreadsheet.RequireScrapedColumns(path); err != nil {
			return nil, err
		}
	}
	records, err := spreadsheet.ReadAds(path)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, filename, path, records, reannotation)
}

// CreateFromRecords creates a job from records ingested elsewhere
// (bulk db-fetch). Scraping is skipped; the fetch supplied the hints.
func (s *JobService) CreateFromRecords(ctx context.Context, filename, path string, records []*model.AdRecord) (*model.Job, error) {
	return s.create(ctx, filename, path, records, true)
}

func (s *JobService) create(ctx context.Context, filename, path string, records []*model.AdRecord, skipScrape bool) (*model.Job, error) {
	job := &model.Job{
		ID:             newShortID(),
		Status:         model.JobStatusPending,
		SourceFilename: filename,
		SourcePath:     path,
		Reannotation:   skipScrape,
		AdCount:        len(records),
		CreatedAt:      time.Now(),
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.records[job.ID] = records
	s.mu.Unlock()

	return job, nil
}

// Get returns a point-in-time snapshot; it never blocks on in-flight
// work.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.store.Get(ctx, id)
}

// Start transitions a pending job into its pipeline and dispatches the
// work asynchronously. At most one dispatch can be active per job.
func (s *JobService) Start(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusPending || s.running[id] {
		return nil, &InvalidStateError{JobID: id, Status: job.Status}
	}

	now := time.Now()
	job.StartedAt = &now
	if job.Reannotation {
		job.Status = model.JobStatusProcessing
	} else {
		job.Status = model.JobStatusScraping
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}
	s.running[id] = true

	go s.runPipeline(id)

	return job, nil
}

// update applies a mutation to the stored job under the service lock so
// no partial update is ever visible to readers.
func (s *JobService) update(id string, fn func(*model.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := context.Background()
	job, err := s.store.Get(ctx, id)
	if err != nil {
		log.Printf("job %s: update load failed: %v", id, err)
		return
	}
	fn(job)
	if err := s.store.Save(ctx, job); err != nil {
		log.Printf("job %s: update save failed: %v", id, err)
	}
}

func (s *JobService) fail(id string, err error) {
	log.Printf("job %s failed: %v", id, err)
	s.update(id, func(job *model.Job) {
		job.Status = model.JobStatusFailed
		job.Error = err.Error()
		now := time.Now()
		job.CompletedAt = &now
	})
}

// runPipeline drives one job from ingestion to a terminal status.
func (s *JobService) runPipeline(id string) {
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	job, err := s.store.Get(ctx, id)
	if err != nil {
		log.Printf("job %s: pipeline load failed: %v", id, err)
		return
	}

	s.mu.Lock()
	records := s.records[id]
	s.mu.Unlock()

	log.Printf("job %s started: %d ads (%s)", id, len(records), job.SourceFilename)

	// Phase 1: scraping, unless the input already carries the hints.
	if !job.Reannotation {
		if err := s.scrapeRecords(ctx, records); err != nil {
			s.fail(id, &IngestionError{Err: err})
			return
		}
		s.update(id, func(job *model.Job) {
			job.Status = model.JobStatusProcessing
		})
	}

	// Phase 2: annotation. Dispatch returns only once every record is
	// terminal; cost and progress flow back through the callback.
	summary := s.pool.Dispatch(ctx, records, func(p annotate.Progress) {
		s.update(id, func(job *model.Job) {
			job.CompletedAds++
			job.AnnotationCost += p.CostCents
			job.TotalCost += p.CostCents
		})
	})
	log.Printf("job %s annotated: %d done, %d failed, %.4f cents",
		id, summary.Done, summary.Failed, summary.CostCents)

	if len(records) > 0 && summary.Done == 0 {
		s.fail(id, fmt.Errorf("classification failed for all %d records", len(records)))
		return
	}

	// Phase 3: dually verification, only when something matched.
	if s.verifyDually && s.verifier != nil {
		if total := s.countDually(records); total > 0 {
			s.update(id, func(job *model.Job) {
				job.Status = model.JobStatusVerifyingDually
				job.DuallyVerification = &model.DuallyVerification{Total: total}
			})
			vs := s.verifier.Run(ctx, records, func(rec *model.AdRecord, removed bool, cost float64) {
				s.update(id, func(job *model.Job) {
					job.DuallyVerification.Verified++
					if removed {
						job.DuallyVerification.Removed++
					}
					job.DuallyVerificationCost += cost
					job.TotalCost += cost
				})
			})
			log.Printf("job %s dually verification: %d checked, %d kept, %d removed, %d errors",
				id, vs.Total, vs.Kept, vs.Removed, vs.Errors)
		}
	}

	// Phase 4: persist the output workbook and complete.
	outputFilename := s.outputFilename(job)
	outputPath := filepath.Join(s.outputDir, outputFilename)
	if err := spreadsheet.WriteAnnotated(outputPath, records); err != nil {
		s.fail(id, fmt.Errorf("save output workbook: %w", err))
		return
	}

	s.update(id, func(job *model.Job) {
		job.Status = model.JobStatusCompleted
		job.OutputFilename = outputFilename
		job.OutputPath = outputPath
		now := time.Now()
		job.CompletedAt = &now
	})
	log.Printf("job %s completed: %s", id, outputFilename)
}

// scrapeRecords populates breadcrumbs and images. A single listing's
// scrape error marks that ad inactive; only a full wipeout fails the
// stage.
func (s *JobService) scrapeRecords(ctx context.Context, records []*model.AdRecord) error {
	if len(records) == 0 {
		return nil
	}
	var lastErr error
	failures := 0
	for _, rec := range records {
		res, err := s.scraper.ScrapeAd(ctx, rec.AdID)
		if err != nil {
			rec.Breadcrumbs = []string{model.RecordStatusInactive}
			failures++
			lastErr = err
			continue
		}
		if res.Inactive {
			rec.Breadcrumbs = []string{model.RecordStatusInactive}
			continue
		}
		rec.Breadcrumbs = res.Breadcrumbs
		rec.ImageURLs = res.ImageURLs
	}
	if failures == len(records) {
		return fmt.Errorf("scraping failed for every listing: %w", lastErr)
	}
	return nil
}

func (s *JobService) countDually(records []*model.AdRecord) int {
	n := 0
	for _, rec := range records {
		if rec.ProcessingState == model.StateDone && s.verifier.Predicate(rec) {
			n++
		}
	}
	return n
}

func (s *JobService) outputFilename(job *model.Job) string {
	ts := time.Now().Format("2006-01-02_15-04-05")
	if job.Reannotation {
		return fmt.Sprintf("output_reannotated_%s.xlsx", ts)
	}
	return fmt.Sprintf("output_annotated_%s.xlsx", ts)
}

// ProgressSnapshot is the live view for the polling dashboard.
type ProgressSnapshot struct {
	JobID          string  `json:"job_id"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Percentage     float64 `json:"percentage"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ETASeconds     *int    `json:"eta_seconds"`
}

// Progress computes completion and a rough ETA from the job counters.
func (s *JobService) Progress(ctx context.Context, id string) (*ProgressSnapshot, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &ProgressSnapshot{
		JobID:     id,
		Total:     job.AdCount,
		Completed: job.CompletedAds,
	}
	if job.AdCount > 0 {
		p.Percentage = float64(int(float64(job.CompletedAds)/float64(job.AdCount)*1000)) / 10
	}
	if job.StartedAt != nil {
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		p.ElapsedSeconds = int(end.Sub(*job.StartedAt).Seconds())
	}
	if job.CompletedAds > 5 && job.CompletedAds < job.AdCount {
		avg := float64(p.ElapsedSeconds) / float64(job.CompletedAds)
		eta := int(avg * float64(job.AdCount-job.CompletedAds))
		p.ETASeconds = &eta
	}
	return p, nil
}

// ValidExtension reports whether an uploaded filename looks like a
// workbook we can read.
func ValidExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".xlsx" || ext == ".xls"
}
