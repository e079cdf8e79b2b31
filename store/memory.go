package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store backing unit tests without a
// live database, mirroring the teacher's habit of keeping real
// transports behind a small interface so tests never touch the
// network.
type MemoryStore struct {
	mu sync.Mutex

	stations  []Station
	listings  map[string]Listing // keyed by UpstreamID
	searches  []SearchSnapshot
	calendars []CalendarSnapshot
	logs      []CrawlLog
}

// NewMemoryStore constructs an empty MemoryStore, optionally seeded
// with stations.
func NewMemoryStore(stations []Station) *MemoryStore {
	return &MemoryStore{
		stations: stations,
		listings: make(map[string]Listing),
	}
}

func (m *MemoryStore) LoadStations(ctx context.Context) ([]Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Station, len(m.stations))
	copy(out, m.stations)
	return out, nil
}

func (m *MemoryStore) UpsertListing(ctx context.Context, l Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.listings[l.UpstreamID]
	if !ok {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.FirstSeen = l.LastSeen
		m.listings[l.UpstreamID] = l
		return nil
	}

	merged := existing
	if l.Name != "" {
		merged.Name = l.Name
	}
	if l.HostID != "" {
		merged.HostID = l.HostID
	}
	if l.RoomType != "" && l.RoomType != RoomTypeUnknown {
		merged.RoomType = l.RoomType
	}
	if l.Latitude != 0 {
		merged.Latitude = l.Latitude
	}
	if l.Longitude != 0 {
		merged.Longitude = l.Longitude
	}
	if l.NearestStation != "" {
		merged.NearestStation = l.NearestStation
	}
	if l.Bedrooms != nil {
		merged.Bedrooms = l.Bedrooms
	}
	if l.Bathrooms != nil {
		merged.Bathrooms = l.Bathrooms
	}
	if l.MaxGuests != nil {
		merged.MaxGuests = l.MaxGuests
	}
	if l.BasePrice != nil {
		merged.BasePrice = l.BasePrice
	}
	if l.Rating != nil {
		merged.Rating = l.Rating
	}
	if l.ReviewCount != nil {
		merged.ReviewCount = l.ReviewCount
	}
	if !l.LastSeen.IsZero() {
		merged.LastSeen = l.LastSeen
	}
	m.listings[l.UpstreamID] = merged
	return nil
}

func (m *MemoryStore) ListListings(ctx context.Context) ([]Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, l)
	}
	return out, nil
}

func (m *MemoryStore) AppendSearchSnapshot(ctx context.Context, s SearchSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.searches = append(m.searches, s)
	return nil
}

func (m *MemoryStore) AppendCalendarSnapshot(ctx context.Context, c CalendarSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.calendars = append(m.calendars, c)
	return nil
}

func (m *MemoryStore) LatestCalendarObservations(ctx context.Context, listingID string) ([]CalendarSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latestByDate := map[string]CalendarSnapshot{}
	for _, c := range m.calendars {
		if c.ListingID != listingID {
			continue
		}
		key := c.Date.Format("2006-01-02")
		if existing, ok := latestByDate[key]; !ok || c.CrawledAt.After(existing.CrawledAt) {
			latestByDate[key] = c
		}
	}

	out := make([]CalendarSnapshot, 0, len(latestByDate))
	for _, c := range latestByDate {
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) HadEarlierAvailableObservation(ctx context.Context, listingID string, date time.Time, beforeCrawledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.calendars {
		if c.ListingID != listingID {
			continue
		}
		if !c.Date.Equal(date) {
			continue
		}
		if c.CrawledAt.Before(beforeCrawledAt) && c.Available {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertCrawlLog(ctx context.Context, c CrawlLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.logs = append(m.logs, c)
	return nil
}

// Logs returns the recorded CrawlLog rows, for tests.
func (m *MemoryStore) Logs() []CrawlLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CrawlLog, len(m.logs))
	copy(out, m.logs)
	return out
}
