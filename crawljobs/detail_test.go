package crawljobs

import (
	"testing"

	"github.com/windowhan/airbnb-demands-research/store"
)

func TestParseDetailSectionsRoomTypeAndCounts(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"presentation": map[string]interface{}{
				"stayProductDetailPage": map[string]interface{}{
					"sections": map[string]interface{}{
						"sections": []interface{}{
							map[string]interface{}{
								"sectionComponentType": "BOOK_IT_SIDEBAR",
								"maxGuestCapacity":      4.0,
							},
							map[string]interface{}{
								"sectionComponentType": "AVAILABILITY_CALENDAR_DEFAULT",
								"descriptionItems": []interface{}{
									map[string]interface{}{"title": "전체 공간"},
									map[string]interface{}{"title": "침실 2개"},
									map[string]interface{}{"title": "욕실 1개"},
								},
							},
						},
					},
				},
			},
		},
	}

	update := parseDetailSections(body)
	if update.RoomType != store.RoomTypeEntireHome {
		t.Fatalf("RoomType = %q, want entire_home", update.RoomType)
	}
	if update.Bedrooms == nil || *update.Bedrooms != 2 {
		t.Fatalf("Bedrooms = %v, want 2", update.Bedrooms)
	}
	if update.Bathrooms == nil || *update.Bathrooms != 1 {
		t.Fatalf("Bathrooms = %v, want 1", update.Bathrooms)
	}
	if update.MaxGuests == nil || *update.MaxGuests != 4 {
		t.Fatalf("MaxGuests = %v, want 4", update.MaxGuests)
	}
}

func TestParseDetailSectionsBedFallsBackWhenNoBedroomCount(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"presentation": map[string]interface{}{
				"stayProductDetailPage": map[string]interface{}{
					"sections": map[string]interface{}{
						"sections": []interface{}{
							map[string]interface{}{
								"sectionComponentType": "AVAILABILITY_CALENDAR_DEFAULT",
								"descriptionItems": []interface{}{
									map[string]interface{}{"title": "침대 3개"},
								},
							},
						},
					},
				},
			},
		},
	}

	update := parseDetailSections(body)
	if update.Bedrooms == nil || *update.Bedrooms != 3 {
		t.Fatalf("Bedrooms = %v, want 3 from the bed-count fallback", update.Bedrooms)
	}
}

func TestParseDetailSectionsPoliciesDefaultGuestCapacity(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"presentation": map[string]interface{}{
				"stayProductDetailPage": map[string]interface{}{
					"sections": map[string]interface{}{
						"sections": []interface{}{
							map[string]interface{}{
								"sectionComponentType": "POLICIES_DEFAULT",
								"title":                "게스트 정원 6명",
							},
						},
					},
				},
			},
		},
	}

	update := parseDetailSections(body)
	if update.MaxGuests == nil || *update.MaxGuests != 6 {
		t.Fatalf("MaxGuests = %v, want 6", update.MaxGuests)
	}
}
