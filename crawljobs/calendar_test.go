package crawljobs

import (
	"context"
	"testing"
	"time"

	"github.com/windowhan/airbnb-demands-research/store"
)

func TestParseCalendarResponsePrimaryPath(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"merlin": map[string]interface{}{
				"pdpAvailabilityCalendar": map[string]interface{}{
					"calendarMonths": []interface{}{
						map[string]interface{}{
							"days": []interface{}{
								map[string]interface{}{
									"calendarDate": "2026-03-01",
									"available":    true,
									"minNights":    2.0,
									"price":        map[string]interface{}{"amount": 150000.0},
								},
								map[string]interface{}{
									"calendarDate": "2026-03-02",
									"available":    false,
									"price":        map[string]interface{}{"localPriceFormatted": "₩180,000"},
								},
							},
						},
					},
				},
			},
		},
	}

	days := parseCalendarResponse(body)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].NightlyPrice == nil || *days[0].NightlyPrice != 150000 {
		t.Fatalf("day 0 NightlyPrice = %v, want 150000 (amount preferred)", days[0].NightlyPrice)
	}
	if days[1].NightlyPrice == nil || *days[1].NightlyPrice != 180000 {
		t.Fatalf("day 1 NightlyPrice = %v, want 180000 (parsed from localPriceFormatted)", days[1].NightlyPrice)
	}
	if days[0].MinNights == nil || *days[0].MinNights != 2 {
		t.Fatalf("day 0 MinNights = %v, want 2", days[0].MinNights)
	}
}

func TestActualBookingHeuristic(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore(nil)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	early := date.Add(-10 * 24 * time.Hour)
	late := date.Add(-1 * 24 * time.Hour)

	_ = db.AppendCalendarSnapshot(ctx, store.CalendarSnapshot{ListingID: "L1", Date: date, CrawledAt: early, Available: true})
	_ = db.AppendCalendarSnapshot(ctx, store.CalendarSnapshot{ListingID: "L1", Date: date, CrawledAt: late, Available: false})

	booked, err := ActualBooking(ctx, db, "L1", date, late.Add(time.Hour))
	if err != nil {
		t.Fatalf("ActualBooking: %v", err)
	}
	if !booked {
		t.Fatal("expected available=true-then-false to be classed as an actual booking")
	}
}

func TestActualBookingHeuristicUnknownForAlwaysUnavailable(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryStore(nil)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_ = db.AppendCalendarSnapshot(ctx, store.CalendarSnapshot{ListingID: "L1", Date: date, CrawledAt: date, Available: false})

	booked, err := ActualBooking(ctx, db, "L1", date, date.Add(time.Hour))
	if err != nil {
		t.Fatalf("ActualBooking: %v", err)
	}
	if booked {
		t.Fatal("a date observed unavailable from first sight must not be classed as an actual booking")
	}
}
