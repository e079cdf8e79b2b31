// Package store implements the persisted-entity boundary (spec §3,
// §6, §7): stations, listings, search/calendar snapshots, and crawl
// logs. Store is a small interface so crawl jobs and tests never talk
// to a live database directly, the same separation the teacher keeps
// between its Provider interface and concrete connectors.
package store

import (
	"context"
	"time"
)

// RoomType is the closed set of listing room types (spec §3); an
// unrecognized upstream value maps to RoomTypeUnknown.
type RoomType string

const (
	RoomTypeEntireHome  RoomType = "entire_home"
	RoomTypePrivateRoom RoomType = "private_room"
	RoomTypeSharedRoom  RoomType = "shared_room"
	RoomTypeHotel       RoomType = "hotel"
	RoomTypeUnknown     RoomType = "unknown"
)

// CrawlStatus is the CrawlLog outcome (spec §3, §7).
type CrawlStatus string

const (
	CrawlStatusSuccess CrawlStatus = "success"
	CrawlStatusPartial CrawlStatus = "partial"
	CrawlStatusFailed  CrawlStatus = "failed"
)

// Station is a seeded, immutable subway-station record.
type Station struct {
	ID        string
	Name      string
	Line      string
	District  string
	Latitude  float64
	Longitude float64
	Priority  int
}

// Listing is upserted by the search and detail jobs, keyed on
// UpstreamID.
type Listing struct {
	ID             string
	UpstreamID     string
	Name           string
	HostID         string
	RoomType       RoomType
	Latitude       float64
	Longitude      float64
	NearestStation string
	Bedrooms       *int
	Bathrooms      *int
	MaxGuests      *int
	BasePrice      *float64
	Rating         *float64
	ReviewCount    *int
	FirstSeen      time.Time
	LastSeen       time.Time
}

// SearchSnapshot is an append-only per-station, per-crawl-instant
// aggregate (spec §3).
type SearchSnapshot struct {
	ID           string
	StationID    string
	CrawledAt    time.Time
	TotalListings int
	AvgPrice     float64
	MinPrice     float64
	MaxPrice     float64
	MedianPrice  float64
	AvailableCount int
	CheckIn      time.Time
	CheckOut     time.Time
	ContentDigest string
}

// CalendarSnapshot is an append-only per-listing, per-date, per-crawl-
// instant observation (spec §3).
type CalendarSnapshot struct {
	ID          string
	ListingID   string
	Date        time.Time
	CrawledAt   time.Time
	Available   bool
	NightlyPrice *float64
	MinNights   *int
}

// CrawlLog is the per-job-invocation record (spec §3, §4.8).
type CrawlLog struct {
	ID           string
	JobType      string
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       CrawlStatus
	TotalRequests int
	SuccessfulRequests int
	FailedRequests int
	BlockedRequests int
	ErrorMessage *string
}

// Store is the persisted-entity boundary every crawl job writes
// through.
type Store interface {
	LoadStations(ctx context.Context) ([]Station, error)

	// UpsertListing inserts a listing by upstream id, or updates the
	// non-empty fields of l (partial update is legal) and stamps
	// LastSeen, leaving FirstSeen untouched on update.
	UpsertListing(ctx context.Context, l Listing) error
	ListListings(ctx context.Context) ([]Listing, error)

	AppendSearchSnapshot(ctx context.Context, s SearchSnapshot) error
	AppendCalendarSnapshot(ctx context.Context, c CalendarSnapshot) error

	// LatestCalendarObservations returns, for a listing, the most
	// recent CalendarSnapshot per date. HadEarlierAvailableObservation
	// reports whether an observation for that date crawled before
	// beforeCrawledAt had Available=true; together they are the input
	// the actual-booking-vs-host-block heuristic needs (spec §4.8).
	LatestCalendarObservations(ctx context.Context, listingID string) ([]CalendarSnapshot, error)
	HadEarlierAvailableObservation(ctx context.Context, listingID string, date time.Time, beforeCrawledAt time.Time) (bool, error)

	InsertCrawlLog(ctx context.Context, c CrawlLog) error
}
