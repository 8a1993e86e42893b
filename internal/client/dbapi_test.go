package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/awacs/annotate/internal/config"
)

func newFakeDBAPI(t *testing.T, tokenCalls *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(tokenCalls, 1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("client_id") == "" || r.FormValue("client_secret") == "" {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-" + r.FormValue("client_id"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/listings/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(SearchPage{
			Listings:       []Listing{{AdID: "1", Category: "Box Trucks"}},
			TotalAvailable: 1,
		})
	})
	return httptest.NewServer(mux)
}

func TestSearchConcurrentSharesToken(t *testing.T) {
	var tokenCalls int64
	srv := newFakeDBAPI(t, &tokenCalls)
	defer srv.Close()

	c := NewDBAPIClient(&config.DBAPIConfig{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		GrantType:    "client_credentials",
	})

	const searches = 8
	errs := make([]error, searches)
	var wg sync.WaitGroup
	for i := 0; i < searches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Search(context.Background(), Credentials{}, SearchRequest{ListingEnd: 10})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("search %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&tokenCalls); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestSearchAdHocCredentialsBypassCache(t *testing.T) {
	var tokenCalls int64
	srv := newFakeDBAPI(t, &tokenCalls)
	defer srv.Close()

	c := NewDBAPIClient(&config.DBAPIConfig{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
	})

	if _, err := c.Search(context.Background(), Credentials{}, SearchRequest{ListingEnd: 5}); err != nil {
		t.Fatalf("configured search: %v", err)
	}
	if _, err := c.Search(context.Background(), Credentials{ClientID: "other", ClientSecret: "s2"}, SearchRequest{ListingEnd: 5}); err != nil {
		t.Fatalf("ad-hoc search: %v", err)
	}
	// The ad-hoc identity must fetch its own token without evicting the
	// configured one.
	if _, err := c.Search(context.Background(), Credentials{}, SearchRequest{ListingEnd: 5}); err != nil {
		t.Fatalf("configured search after ad-hoc: %v", err)
	}
	if got := atomic.LoadInt64(&tokenCalls); got != 2 {
		t.Errorf("token requests = %d, want 2", got)
	}
}
