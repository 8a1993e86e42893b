package model

import "time"

// DBFetchRequest is the bulk-fetch request against the partner database.
// Timestamps are unix seconds. Credentials override the configured ones
// when present.
type DBFetchRequest struct {
	MinLastUpdate   int64    `json:"min_last_update" validate:"required"`
	MaxLastUpdate   int64    `json:"max_last_update" validate:"required"`
	ListingStart    int      `json:"listing_start" validate:"min=0"`
	ListingEnd      int      `json:"listing_end" validate:"required,gtfield=ListingStart"`
	CategoryFilters []string `json:"category_filters,omitempty"`
	ClientID        string   `json:"client_id,omitempty"`
	ClientSecret    string   `json:"client_secret,omitempty"`
	GrantType       string   `json:"grant_type,omitempty"`
}

// Pagination tells the caller how to continue a paged fetch.
type Pagination struct {
	FirstAdID          string   `json:"first_ad_id"`
	LastAdID           string   `json:"last_ad_id"`
	ListingStart       int      `json:"listing_start"`
	ListingEnd         int      `json:"listing_end"`
	TotalAvailable     int      `json:"total_available"`
	HasMoreData        bool     `json:"has_more_data"`
	NextSuggestedStart int      `json:"next_suggested_start"`
	NextSuggestedEnd   int      `json:"next_suggested_end"`
	RemainingListings  int      `json:"remaining_listings"`
	FiltersApplied     bool     `json:"filters_applied"`
	FetchedBeforeFilter int     `json:"fetched_before_filter"`
	MatchedAfterFilter  int     `json:"matched_after_filter"`
	CategoryFilters    []string `json:"category_filters"`
}

// DBFetchResult is a completed bulk fetch, held until the caller turns
// it into an annotation job.
type DBFetchResult struct {
	ID          string              `json:"fetch_id"`
	Filename    string              `json:"filename"`
	FilePath    string              `json:"-"`
	TotalTrucks int                 `json:"total_trucks"`
	Preview     []map[string]string `json:"preview_data"`
	Pagination  Pagination          `json:"pagination"`
	CreatedAt   time.Time           `json:"created_at"`
}
