// Package scrape is the listing-page ingestion boundary. The real
// extraction rules live in the scraping deployment; the service only
// depends on this interface.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Result is what ingestion learns about one listing.
type Result struct {
	Breadcrumbs []string // up to 3 category hints
	ImageURLs   []string
	Inactive    bool
}

// Scraper fetches breadcrumbs and images for a listing.
type Scraper interface {
	ScrapeAd(ctx context.Context, adID string) (*Result, error)
}

// ListingScraper is a plain HTTP implementation against the listing
// site. A listing that redirects away or answers 404 is inactive.
type ListingScraper struct {
	httpClient *http.Client
	baseURL    string
	maxImages  int
}

func NewListingScraper(baseURL string, maxImages int) *ListingScraper {
	return &ListingScraper{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		baseURL:   baseURL,
		maxImages: maxImages,
	}
}

var (
	breadcrumbRe = regexp.MustCompile(`(?s)<nav[^>]*breadcrumbs[^>]*>(.*?)</nav>`)
	anchorRe     = regexp.MustCompile(`(?s)<a[^>]*>(.*?)</a>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	imageRe      = regexp.MustCompile(`<img[^>]+class="[^"]*rsImg[^"]*"[^>]+src="([^"]+)"`)
)

func (s *ListingScraper) ScrapeAd(ctx context.Context, adID string) (*Result, error) {
	url := fmt.Sprintf("%s/listing/%s", s.baseURL, adID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", adID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return &Result{Inactive: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing %s: status %d", adID, resp.StatusCode)
	}
	// A redirect off the listing path means the ad was pulled.
	if !strings.Contains(resp.Request.URL.Path, "/listing/"+adID) {
		return &Result{Inactive: true}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", adID, err)
	}
	page := string(body)

	lower := strings.ToLower(page)
	if strings.Contains(lower, "no longer available") || strings.Contains(lower, "listing not found") {
		return &Result{Inactive: true}, nil
	}

	result := &Result{
		Breadcrumbs: extractBreadcrumbs(page),
		ImageURLs:   extractImages(page, s.maxImages),
	}
	if len(result.Breadcrumbs) == 0 {
		result.Inactive = true
	}
	return result, nil
}

// extractBreadcrumbs pulls up to 3 category crumbs, skipping the
// navigation noise entries.
func extractBreadcrumbs(page string) []string {
	nav := breadcrumbRe.FindStringSubmatch(page)
	if nav == nil {
		return nil
	}
	var crumbs []string
	for _, m := range anchorRe.FindAllStringSubmatch(nav[1], -1) {
		text := strings.TrimSpace(strings.TrimSuffix(tagRe.ReplaceAllString(m[1], ""), ","))
		lower := strings.ToLower(text)
		if text == "" {
			continue
		}
		skip := false
		for _, noise := range []string{"home", "browse", "commercial trucks", "for sale"} {
			if strings.Contains(lower, noise) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		crumbs = append(crumbs, text)
		if len(crumbs) == 3 {
			break
		}
	}
	return crumbs
}

func extractImages(page string, max int) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range imageRe.FindAllStringSubmatch(page, -1) {
		src := m[1]
		if strings.Contains(strings.ToLower(src), "placeholder") {
			continue
		}
		if !strings.HasPrefix(src, "http") && !strings.HasPrefix(src, "//") {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		urls = append(urls, src)
		if max > 0 && len(urls) == max {
			break
		}
	}
	return urls
}
