package crawljobs

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/httpclient"
	"github.com/windowhan/airbnb-demands-research/store"
)

var bedroomPattern = regexp.MustCompile(`침실\s*(\d+)`)
var bedPattern = regexp.MustCompile(`침대\s*(\d+)`)
var bathroomPattern = regexp.MustCompile(`욕실\s*(\d+)`)
var guestCapacityPattern = regexp.MustCompile(`게스트\s*정원\s*(\d+)\s*명`)

// DetailJob crawls the PDP-sections operation for every known listing
// (spec §4.8, "Listing-detail job", tiers B/C only).
type DetailJob struct {
	client *httpclient.Client
	db     store.Store
	log    zerolog.Logger
}

// NewDetailJob constructs a DetailJob.
func NewDetailJob(client *httpclient.Client, db store.Store, log zerolog.Logger) *DetailJob {
	return &DetailJob{client: client, db: db, log: log.With().Str("component", "detail_job").Logger()}
}

// Run crawls every listing's detail sections, applying a partial
// update to each listing's row.
func (j *DetailJob) Run(ctx context.Context, listings []store.Listing) store.CrawlLog {
	logEntry := store.CrawlLog{JobType: "detail", StartedAt: time.Now()}
	failures := 0

	for _, listing := range listings {
		logEntry.TotalRequests++
		if err := j.runListing(ctx, listing); err != nil {
			failures++
			logEntry.FailedRequests++
			j.log.Error().Err(err).Str("listing", listing.UpstreamID).Msg("detail job failed for listing")
			continue
		}
		logEntry.SuccessfulRequests++
	}

	logEntry.FinishedAt = time.Now()
	logEntry.Status = store.CrawlStatusSuccess
	if failures > 0 {
		logEntry.Status = store.CrawlStatusPartial
	}
	return logEntry
}

func (j *DetailJob) runListing(ctx context.Context, listing store.Listing) error {
	res := j.client.Request(ctx, httpclient.Params{
		Operation: httpclient.OpStaysPdpSections,
		Variables: map[string]interface{}{"id": listing.UpstreamID},
	})
	if res.Body == nil {
		return nil
	}

	update := parseDetailSections(res.Body)
	update.UpstreamID = listing.UpstreamID
	update.LastSeen = time.Now()
	return j.db.UpsertListing(ctx, update)
}

// parseDetailSections walks
// data.presentation.stayProductDetailPage.sections.sections[] and
// applies the per-sectionComponentType rules from spec §4.8.
func parseDetailSections(body map[string]interface{}) store.Listing {
	var update store.Listing

	sections, ok := dig(body, "data", "presentation", "stayProductDetailPage", "sections", "sections")
	if !ok {
		return update
	}
	list, ok := asSlice(sections)
	if !ok {
		return update
	}

	for _, raw := range list {
		section, ok := asMap(raw)
		if !ok {
			continue
		}
		sectionType, _ := asString(section["sectionComponentType"])

		switch {
		case sectionType == "BOOK_IT_SIDEBAR":
			applyBookItSidebar(section, &update)
		case strings.HasPrefix(sectionType, "AVAILABILITY_CALENDAR_"):
			applyAvailabilityCalendar(section, &update)
		case sectionType == "MEET_YOUR_HOST":
			applyMeetYourHost(section, &update)
		case sectionType == "POLICIES_DEFAULT":
			applyPoliciesDefault(section, &update)
		case strings.HasPrefix(sectionType, "OVERVIEW_"), strings.HasPrefix(sectionType, "HOST_PROFILE_"):
			// legacy paths kept for compatibility; no fields parsed.
		}
	}

	return update
}

func applyBookItSidebar(section map[string]interface{}, update *store.Listing) {
	if mg, ok := toFloat(section["maxGuestCapacity"]); ok {
		n := int(mg)
		update.MaxGuests = &n
	}
}

func descriptionItemTitles(section map[string]interface{}) []string {
	items, ok := asSlice(section["descriptionItems"])
	if !ok {
		return nil
	}
	var titles []string
	for _, raw := range items {
		item, ok := asMap(raw)
		if !ok {
			continue
		}
		if title, ok := asString(item["title"]); ok {
			titles = append(titles, title)
		}
	}
	return titles
}

func applyAvailabilityCalendar(section map[string]interface{}, update *store.Listing) {
	for _, title := range descriptionItemTitles(section) {
		switch {
		case strings.Contains(title, "전체"):
			update.RoomType = store.RoomTypeEntireHome
		case strings.Contains(title, "개인실"):
			update.RoomType = store.RoomTypePrivateRoom
		case strings.Contains(title, "다인실"), strings.Contains(title, "공유"):
			update.RoomType = store.RoomTypeSharedRoom
		case strings.Contains(title, "호텔"):
			update.RoomType = store.RoomTypeHotel
		}

		if m := bedroomPattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				update.Bedrooms = &n
			}
		} else if m := bedPattern.FindStringSubmatch(title); m != nil && update.Bedrooms == nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				update.Bedrooms = &n
			}
		}

		if m := bathroomPattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				update.Bathrooms = &n
			}
		}
	}
}

func applyMeetYourHost(section map[string]interface{}, update *store.Listing) {
	if hostID, ok := asString(section["userId"]); ok {
		if decoded, ok := decodeHostID(hostID); ok {
			update.HostID = decoded
		}
	}
	if rating, ok := toFloat(section["ratingAverage"]); ok {
		update.Rating = &rating
	}
	if stats, ok := asSlice(section["stats"]); ok {
		for _, raw := range stats {
			stat, ok := asMap(raw)
			if !ok {
				continue
			}
			if label, ok := asString(stat["label"]); ok && strings.Contains(label, "리뷰") {
				if v, ok := toFloat(stat["value"]); ok {
					n := int(v)
					update.ReviewCount = &n
				}
			}
		}
	}
}

func decodeHostID(token string) (string, bool) {
	return decodeBase64WithPrefix(token, "DemandUser:")
}

func applyPoliciesDefault(section map[string]interface{}, update *store.Listing) {
	text, _ := asString(section["title"])
	if m := guestCapacityPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && update.MaxGuests == nil {
			update.MaxGuests = &n
		}
	}
}
