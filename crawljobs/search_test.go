package crawljobs

import (
	"testing"
	"time"

	"github.com/windowhan/airbnb-demands-research/store"
)

func TestParseSearchPagePrimaryPath(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"presentation": map[string]interface{}{
				"staysSearch": map[string]interface{}{
					"results": map[string]interface{}{
						"searchResults": []interface{}{
							map[string]interface{}{
								"listing": map[string]interface{}{
									"propertyId":         123.0,
									"name":               "Sunny studio",
									"roomTypeCategory":   "private_room",
									"coordinate":         map[string]interface{}{"latitude": 37.5, "longitude": 127.0},
									"avgRatingLocalized": "4.8",
									"reviewCount":        12.0,
								},
								"pricingQuote": map[string]interface{}{
									"structuredDisplayPrice": map[string]interface{}{
										"primaryLine": map[string]interface{}{
											"discountedPrice": "₩119,824",
											"price":           "₩150,000",
										},
									},
								},
							},
						},
						"paginationInfo": map[string]interface{}{"nextPageCursor": "abc"},
					},
				},
			},
		},
	}

	listings, cursor := parseSearchPage(body)
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	l := listings[0]
	if l.UpstreamID != "123" {
		t.Fatalf("UpstreamID = %q, want \"123\"", l.UpstreamID)
	}
	if l.Price == nil || *l.Price != 119824.0 {
		t.Fatalf("Price = %v, want discountedPrice preferred (119824.0)", l.Price)
	}
	if l.RoomType != store.RoomTypePrivateRoom {
		t.Fatalf("RoomType = %q, want private_room", l.RoomType)
	}
	if cursor != "abc" {
		t.Fatalf("cursor = %q, want \"abc\"", cursor)
	}
}

func TestRoomTypeFromCategory(t *testing.T) {
	cases := map[string]store.RoomType{
		"entire_home":     store.RoomTypeEntireHome,
		"entire_place":    store.RoomTypeEntireHome,
		"private_room":    store.RoomTypePrivateRoom,
		"shared_room":     store.RoomTypeSharedRoom,
		"hotel_room":      store.RoomTypeHotel,
		"hotel":           store.RoomTypeHotel,
		"something_else":  store.RoomTypeUnknown,
		"":                store.RoomTypeUnknown,
	}
	for raw, want := range cases {
		if got := roomTypeFromCategory(raw); got != want {
			t.Errorf("roomTypeFromCategory(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestParseSearchPageFallsBackOnMalformedPrimaryPath(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"presentation": map[string]interface{}{
				"staysSearch": map[string]interface{}{
					"results": map[string]interface{}{
						"searchResults": "not a list", // breaks the primary path
					},
				},
			},
		},
		"id":   "99",
		"name": "fallback listing",
		"lat":  37.1,
		"lng":  126.9,
	}

	listings, cursor := parseSearchPage(body)
	if cursor != "" {
		t.Fatalf("expected empty cursor from the fallback path, got %q", cursor)
	}
	if len(listings) != 1 || listings[0].UpstreamID != "99" {
		t.Fatalf("expected the fallback walker to recover the leaf, got %+v", listings)
	}
}

func TestBuildSearchSnapshotComputesStatistics(t *testing.T) {
	p1, p2, p3 := 100.0, 200.0, 300.0
	listings := []parsedListing{{Price: &p1}, {Price: &p2}, {Price: &p3}}

	now := time.Now()
	snap := buildSearchSnapshot("station-1", now, now, now, listings)
	if snap.AvgPrice != 200 {
		t.Fatalf("AvgPrice = %v, want 200", snap.AvgPrice)
	}
	if snap.MinPrice != 100 || snap.MaxPrice != 300 {
		t.Fatalf("MinPrice/MaxPrice = %v/%v, want 100/300", snap.MinPrice, snap.MaxPrice)
	}
	if snap.MedianPrice != 200 {
		t.Fatalf("MedianPrice = %v, want 200", snap.MedianPrice)
	}
	if snap.TotalListings != 3 {
		t.Fatalf("TotalListings = %d, want 3", snap.TotalListings)
	}
}
