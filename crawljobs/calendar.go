package crawljobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/windowhan/airbnb-demands-research/httpclient"
	"github.com/windowhan/airbnb-demands-research/store"
)

const calendarMonthCount = 3

// parsedCalendarDay is one parsed day from the calendar response.
type parsedCalendarDay struct {
	Date         time.Time
	Available    bool
	NightlyPrice *float64
	MinNights    *int
}

// CalendarJob crawls the 3-month availability window for every known
// listing (spec §4.8, "Calendar job").
type CalendarJob struct {
	client *httpclient.Client
	db     store.Store
	log    zerolog.Logger
}

// NewCalendarJob constructs a CalendarJob.
func NewCalendarJob(client *httpclient.Client, db store.Store, log zerolog.Logger) *CalendarJob {
	return &CalendarJob{client: client, db: db, log: log.With().Str("component", "calendar_job").Logger()}
}

// Run crawls every listing's calendar, appending a CalendarSnapshot
// per parsed day.
func (j *CalendarJob) Run(ctx context.Context, listings []store.Listing) store.CrawlLog {
	logEntry := store.CrawlLog{JobType: "calendar", StartedAt: time.Now()}
	failures := 0

	for _, listing := range listings {
		logEntry.TotalRequests++
		if err := j.runListing(ctx, listing); err != nil {
			failures++
			logEntry.FailedRequests++
			j.log.Error().Err(err).Str("listing", listing.UpstreamID).Msg("calendar job failed for listing")
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

func (j *CalendarJob) runListing(ctx context.Context, listing store.Listing) error {
	now := time.Now()
	variables := map[string]interface{}{
		"listingId": listing.UpstreamID,
		"month":     int(now.Month()),
		"year":      now.Year(),
		"count":     calendarMonthCount,
	}

	res := j.client.Request(ctx, httpclient.Params{Operation: httpclient.OpPdpAvailabilityCalendar, Variables: variables})
	if res.Body == nil {
		return nil
	}

	days := parseCalendarResponse(res.Body)
	crawledAt := time.Now()
	for _, day := range days {
		if err := j.db.AppendCalendarSnapshot(ctx, store.CalendarSnapshot{
			ListingID:    listing.UpstreamID,
			Date:         day.Date,
			CrawledAt:    crawledAt,
			Available:    day.Available,
			NightlyPrice: day.NightlyPrice,
			MinNights:    day.MinNights,
		}); err != nil {
			return err
		}
	}
	return nil
}

// parseCalendarResponse implements the primary path, falling back to
// the bounded-depth recursive walk on any parse exception.
func parseCalendarResponse(body map[string]interface{}) []parsedCalendarDay {
	months, ok := dig(body, "data", "merlin", "pdpAvailabilityCalendar", "calendarMonths")
	if ok {
		if days, ok := parsePrimaryCalendarMonths(months); ok {
			return days
		}
	}

	leaves := walkForCalendarLeaves(body, 0)
	out := make([]parsedCalendarDay, 0, len(leaves))
	for _, leaf := range leaves {
		d, err := time.Parse("2006-01-02", leaf.Date)
		if err != nil {
			continue
		}
		out = append(out, parsedCalendarDay{Date: d, Available: leaf.Available})
	}
	return out
}

func parsePrimaryCalendarMonths(months interface{}) ([]parsedCalendarDay, bool) {
	monthList, ok := asSlice(months)
	if !ok {
		return nil, false
	}

	var out []parsedCalendarDay
	for _, month := range monthList {
		m, ok := asMap(month)
		if !ok {
			continue
		}
		days, ok := asSlice(m["days"])
		if !ok {
			continue
		}
		for _, dayRaw := range days {
			day, ok := asMap(dayRaw)
			if !ok {
				continue
			}
			parsed, ok := parseCalendarDay(day)
			if !ok {
				continue
			}
			out = append(out, parsed)
		}
	}
	return out, true
}

func parseCalendarDay(day map[string]interface{}) (parsedCalendarDay, bool) {
	dateStr, ok := asString(day["calendarDate"])
	if !ok {
		return parsedCalendarDay{}, false
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return parsedCalendarDay{}, false
	}
	available, _ := asBool(day["available"])

	var minNights *int
	if mn, ok := toFloat(day["minNights"]); ok {
		n := int(mn)
		minNights = &n
	}

	var nightlyPrice *float64
	if priceObj, ok := asMap(day["price"]); ok {
		if amount, ok := toFloat(priceObj["amount"]); ok {
			nightlyPrice = &amount
		} else if formatted, ok := asString(priceObj["localPriceFormatted"]); ok {
			if v, ok := parsePrice(formatted); ok {
				nightlyPrice = &v
			}
		}
	}

	return parsedCalendarDay{Date: date, Available: available, NightlyPrice: nightlyPrice, MinNights: minNights}, true
}

// ActualBooking reports whether the most recent observation for
// (listingID, date) is available=false but an earlier observation
// recorded available=true — an actual booking rather than a host
// block (spec §4.8, daily observation policy).
func ActualBooking(ctx context.Context, db store.Store, listingID string, date time.Time, crawledAt time.Time) (bool, error) {
	latest, err := db.LatestCalendarObservations(ctx, listingID)
	if err != nil {
		return false, err
	}
	for _, obs := range latest {
		if obs.Date.Equal(date) {
			if obs.Available {
				return false, nil
			}
			return db.HadEarlierAvailableObservation(ctx, listingID, date, crawledAt)
		}
	}
	return false, nil
}
