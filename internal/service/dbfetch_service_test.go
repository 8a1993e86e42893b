package service

import (
	"testing"

	"github.com/awacs/annotate/internal/client"
)

func TestPaginate(t *testing.T) {
	p := Paginate(0, 1000, 2500)

	if !p.HasMoreData {
		t.Fatal("2500 total past a 0-1000 window must have more data")
	}
	if p.NextSuggestedStart != 1000 || p.NextSuggestedEnd != 2000 {
		t.Errorf("next window = %d-%d, want 1000-2000", p.NextSuggestedStart, p.NextSuggestedEnd)
	}
	if p.RemainingListings != 1500 {
		t.Errorf("remaining = %d, want 1500", p.RemainingListings)
	}
}

func TestPaginateKeepsWindowSize(t *testing.T) {
	p := Paginate(500, 750, 10000)

	if p.NextSuggestedStart != 750 || p.NextSuggestedEnd != 1000 {
		t.Errorf("next window = %d-%d, want 750-1000", p.NextSuggestedStart, p.NextSuggestedEnd)
	}
}

func TestPaginateLastPage(t *testing.T) {
	cases := []struct {
		start, end, total int
	}{
		{1000, 2000, 2000},
		{0, 1000, 500},
		{0, 1000, 0},
	}
	for _, tc := range cases {
		p := Paginate(tc.start, tc.end, tc.total)
		if p.HasMoreData {
			t.Errorf("Paginate(%d, %d, %d): has_more_data = true", tc.start, tc.end, tc.total)
		}
		if p.NextSuggestedStart != 0 || p.NextSuggestedEnd != 0 || p.RemainingListings != 0 {
			t.Errorf("Paginate(%d, %d, %d): continuation fields set on last page: %+v",
				tc.start, tc.end, tc.total, p)
		}
	}
}

func TestFilterByCategory(t *testing.T) {
	listings := []client.Listing{
		{AdID: "1", Category: "Box Trucks"},
		{AdID: "2", Category: "Dump Trucks"},
		{AdID: "3", Category: "Flatbed Trucks"},
	}

	out := filterByCategory(listings, []string{"box", "FLATBED"})
	if len(out) != 2 {
		t.Fatalf("matched %d listings, want 2", len(out))
	}
	if out[0].AdID != "1" || out[1].AdID != "3" {
		t.Errorf("matched %v", out)
	}

	// No filters passes everything through.
	if got := filterByCategory(listings, nil); len(got) != 3 {
		t.Errorf("no filters: matched %d", len(got))
	}
}
