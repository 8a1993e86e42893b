package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/awacs/annotate/internal/client"
	"github.com/awacs/annotate/internal/model"
	"github.com/awacs/annotate/internal/spreadsheet"
)

const previewRows = 10

// DBFetchService pulls listings from the partner database in bulk and
// stages them for annotation jobs that skip the scraping phase.
type DBFetchService struct {
	client    *client.DBAPIClient
	uploadDir string

	mu      sync.Mutex
	fetches map[string]*fetchEntry
}

type fetchEntry struct {
	result  *model.DBFetchResult
	records []*model.AdRecord
}

func NewDBFetchService(c *client.DBAPIClient, uploadDir string) *DBFetchService {
	return &DBFetchService{
		client:    c,
		uploadDir: uploadDir,
		fetches:   make(map[string]*fetchEntry),
	}
}

func (s *DBFetchService) Configured() bool {
	return s.client != nil && s.client.IsConfigured()
}

// Fetch queries the listing database for one page, applies optional
// category filters and writes the staged workbook.
func (s *DBFetchService) Fetch(ctx context.Context, req *model.DBFetchRequest) (*model.DBFetchResult, error) {
	maxUpdate := req.MaxLastUpdate
	if maxUpdate == req.MinLastUpdate {
		// A single-day query arrives with identical timestamps; widen
		// the window to the end of that day.
		maxUpdate += 86399
	}

	page, err := s.client.Search(ctx, client.Credentials{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		GrantType:    req.GrantType,
	}, client.SearchRequest{
		MinLastUpdate: req.MinLastUpdate,
		MaxLastUpdate: maxUpdate,
		ListingStart:  req.ListingStart,
		ListingEnd:    req.ListingEnd,
	})
	if err != nil {
		return nil, &IngestionError{Err: err}
	}

	fetched := len(page.Listings)
	listings := filterByCategory(page.Listings, req.CategoryFilters)

	records := make([]*model.AdRecord, 0, len(listings))
	for _, l := range listings {
		var crumbs []string
		if l.Category != "" {
			crumbs = []string{l.Category}
		}
		records = append(records, model.NewAdRecord(l.AdID, crumbs, l.ImageURLs))
	}

	filename := fmt.Sprintf("dbfetch_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.uploadDir, filename)
	if err := spreadsheet.WriteAds(path, records); err != nil {
		return nil, fmt.Errorf("save fetched listings: %w", err)
	}

	result := &model.DBFetchResult{
		ID:          newShortID(),
		Filename:    filename,
		FilePath:    path,
		TotalTrucks: len(records),
		Preview:     buildPreview(records),
		Pagination:  Paginate(req.ListingStart, req.ListingEnd, page.TotalAvailable),
		CreatedAt:   time.Now(),
	}
	result.Pagination.FiltersApplied = len(req.CategoryFilters) > 0
	result.Pagination.FetchedBeforeFilter = fetched
	result.Pagination.MatchedAfterFilter = len(records)
	result.Pagination.CategoryFilters = req.CategoryFilters
	if len(records) > 0 {
		result.Pagination.FirstAdID = records[0].AdID
		result.Pagination.LastAdID = records[len(records)-1].AdID
	}

	s.mu.Lock()
	s.fetches[result.ID] = &fetchEntry{result: result, records: records}
	s.mu.Unlock()

	return result, nil
}

// StartAnnotation hands a staged fetch to the job layer. A fetch can be
// consumed once.
func (s *DBFetchService) StartAnnotation(id string) ([]*model.AdRecord, string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.fetches[id]
	if !ok {
		return nil, "", "", fmt.Errorf("fetch %s not found", id)
	}
	delete(s.fetches, id)
	return entry.records, entry.result.Filename, entry.result.FilePath, nil
}

// Paginate derives the continuation window from a completed page. The
// next window keeps the same size the caller asked for.
func Paginate(start, end, total int) model.Pagination {
	p := model.Pagination{
		ListingStart:   start,
		ListingEnd:     end,
		TotalAvailable: total,
		HasMoreData:    total > end,
	}
	if p.HasMoreData {
		p.NextSuggestedStart = end
		p.NextSuggestedEnd = end + (end - start)
		p.RemainingListings = total - end
	}
	return p
}

func filterByCategory(listings []client.Listing, filters []string) []client.Listing {
	if len(filters) == 0 {
		return listings
	}
	lowered := make([]string, len(filters))
	for i, f := range filters {
		lowered[i] = strings.ToLower(strings.TrimSpace(f))
	}
	var out []client.Listing
	for _, l := range listings {
		cat := strings.ToLower(l.Category)
		for _, f := range lowered {
			if f != "" && strings.Contains(cat, f) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

func buildPreview(records []*model.AdRecord) []map[string]string {
	n := len(records)
	if n > previewRows {
		n = previewRows
	}
	preview := make([]map[string]string, 0, n)
	for _, rec := range records[:n] {
		preview = append(preview, map[string]string{
			"Ad ID":      rec.AdID,
			"Category":   strings.Join(rec.Breadcrumbs, " > "),
			"Image_URLs": strings.Join(rec.ImageURLs, ", "),
		})
	}
	return preview
}
