package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const listingPage = `<html><body>
<nav class="breadcrumbs">
  <a href="/">Home</a>
  <a href="/browse">Browse</a>
  <a href="/commercial-trucks">Commercial Trucks For Sale</a>
  <a href="/box-trucks">Box Trucks,</a>
  <a href="/box-trucks/straight">Straight Box Trucks</a>
</nav>
<img class="gallery rsImg" src="https://cdn.example.com/a.jpg">
<img class="rsImg" src="https://cdn.example.com/a.jpg">
<img class="rsImg" src="https://cdn.example.com/placeholder.jpg">
<img class="rsImg" src="https://cdn.example.com/b.jpg">
<img class="rsImg" src="https://cdn.example.com/c.jpg">
<img class="rsImg" src="https://cdn.example.com/d.jpg">
</body></html>`

func testServer(t *testing.T, handler http.HandlerFunc) *ListingScraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewListingScraper(srv.URL, 3)
}

func TestScrapeAdExtractsBreadcrumbsAndImages(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage)
	})

	res, err := s.ScrapeAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if res.Inactive {
		t.Fatal("listing should be active")
	}

	want := []string{"Box Trucks", "Straight Box Trucks"}
	if len(res.Breadcrumbs) != len(want) {
		t.Fatalf("breadcrumbs = %v", res.Breadcrumbs)
	}
	for i, b := range want {
		if res.Breadcrumbs[i] != b {
			t.Errorf("breadcrumb %d = %q, want %q", i, res.Breadcrumbs[i], b)
		}
	}

	// Deduped, placeholder skipped, capped at 3.
	wantImgs := []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.jpg",
		"https://cdn.example.com/c.jpg",
	}
	if len(res.ImageURLs) != len(wantImgs) {
		t.Fatalf("images = %v", res.ImageURLs)
	}
	for i, u := range wantImgs {
		if res.ImageURLs[i] != u {
			t.Errorf("image %d = %q, want %q", i, res.ImageURLs[i], u)
		}
	}
}

func TestScrapeAdNotFoundIsInactive(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	res, err := s.ScrapeAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !res.Inactive {
		t.Error("404 listing should be inactive")
	}
}

func TestScrapeAdRemovedMessageIsInactive(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>This listing is no longer available.</body></html>")
	})

	res, err := s.ScrapeAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !res.Inactive {
		t.Error("removed listing should be inactive")
	}
}

func TestScrapeAdRedirectOffListingIsInactive(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			fmt.Fprint(w, "<html><body>search results</body></html>")
			return
		}
		http.Redirect(w, r, "/search", http.StatusFound)
	})

	res, err := s.ScrapeAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !res.Inactive {
		t.Error("redirected listing should be inactive")
	}
}

func TestScrapeAdNoBreadcrumbsIsInactive(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>bare page</p></body></html>")
	})

	res, err := s.ScrapeAd(context.Background(), "123")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !res.Inactive {
		t.Error("listing without breadcrumbs should be inactive")
	}
}

func TestScrapeAdServerErrorPropagates(t *testing.T) {
	s := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := s.ScrapeAd(context.Background(), "123"); err == nil {
		t.Fatal("5xx should surface as an error")
	}
}
