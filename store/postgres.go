package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the concrete adapter over the schema named in spec
// §3/§6. Every mutating method runs inside a single pgx.Tx via
// pgx.BeginFunc, committed on normal return and rolled back on error —
// the "scope-based transaction" of spec §9's database-ownership note.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore from a DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) LoadStations(ctx context.Context) ([]Station, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, line, district, latitude, longitude, priority FROM stations`)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	defer rows.Close()

	var out []Station
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Line, &st.District, &st.Latitude, &st.Longitude, &st.Priority); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertListing(ctx context.Context, l Listing) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO listings (id, upstream_id, name, host_id, room_type, latitude, longitude,
				nearest_station, bedrooms, bathrooms, max_guests, base_price, rating, review_count,
				first_seen, last_seen)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
			ON CONFLICT (upstream_id) DO UPDATE SET
				name = COALESCE(NULLIF(EXCLUDED.name, ''), listings.name),
				host_id = COALESCE(NULLIF(EXCLUDED.host_id, ''), listings.host_id),
				room_type = CASE WHEN EXCLUDED.room_type IN ('', 'unknown') THEN listings.room_type ELSE EXCLUDED.room_type END,
				latitude = COALESCE(NULLIF(EXCLUDED.latitude, 0), listings.latitude),
				longitude = COALESCE(NULLIF(EXCLUDED.longitude, 0), listings.longitude),
				nearest_station = COALESCE(NULLIF(EXCLUDED.nearest_station, ''), listings.nearest_station),
				bedrooms = COALESCE(EXCLUDED.bedrooms, listings.bedrooms),
				bathrooms = COALESCE(EXCLUDED.bathrooms, listings.bathrooms),
				max_guests = COALESCE(EXCLUDED.max_guests, listings.max_guests),
				base_price = COALESCE(EXCLUDED.base_price, listings.base_price),
				rating = COALESCE(EXCLUDED.rating, listings.rating),
				review_count = COALESCE(EXCLUDED.review_count, listings.review_count),
				last_seen = EXCLUDED.last_seen
		`, l.ID, l.UpstreamID, l.Name, l.HostID, string(l.RoomType), l.Latitude, l.Longitude,
			l.NearestStation, l.Bedrooms, l.Bathrooms, l.MaxGuests, l.BasePrice, l.Rating, l.ReviewCount,
			l.LastSeen)
		if err != nil {
			return fmt.Errorf("upsert listing: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ListListings(ctx context.Context) ([]Listing, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, upstream_id, name, host_id, room_type, latitude, longitude,
		nearest_station, bedrooms, bathrooms, max_guests, base_price, rating, review_count,
		first_seen, last_seen FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		var roomType string
		if err := rows.Scan(&l.ID, &l.UpstreamID, &l.Name, &l.HostID, &roomType, &l.Latitude, &l.Longitude,
			&l.NearestStation, &l.Bedrooms, &l.Bathrooms, &l.MaxGuests, &l.BasePrice, &l.Rating, &l.ReviewCount,
			&l.FirstSeen, &l.LastSeen); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.RoomType = RoomType(roomType)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendSearchSnapshot(ctx context.Context, snap SearchSnapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if snap.ID == "" {
			snap.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO search_snapshots (id, station_id, crawled_at, total_listings, avg_price, min_price,
				max_price, median_price, available_count, check_in, check_out, content_digest)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, snap.ID, snap.StationID, snap.CrawledAt, snap.TotalListings, snap.AvgPrice, snap.MinPrice,
			snap.MaxPrice, snap.MedianPrice, snap.AvailableCount, snap.CheckIn, snap.CheckOut, snap.ContentDigest)
		if err != nil {
			return fmt.Errorf("append search snapshot: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) AppendCalendarSnapshot(ctx context.Context, snap CalendarSnapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if snap.ID == "" {
			snap.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO calendar_snapshots (id, listing_id, date, crawled_at, available, nightly_price, min_nights)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, snap.ID, snap.ListingID, snap.Date, snap.CrawledAt, snap.Available, snap.NightlyPrice, snap.MinNights)
		if err != nil {
			return fmt.Errorf("append calendar snapshot: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) LatestCalendarObservations(ctx context.Context, listingID string) ([]CalendarSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (date) id, listing_id, date, crawled_at, available, nightly_price, min_nights
		FROM calendar_snapshots
		WHERE listing_id = $1
		ORDER BY date, crawled_at DESC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("latest calendar observations: %w", err)
	}
	defer rows.Close()

	var out []CalendarSnapshot
	for rows.Next() {
		var c CalendarSnapshot
		if err := rows.Scan(&c.ID, &c.ListingID, &c.Date, &c.CrawledAt, &c.Available, &c.NightlyPrice, &c.MinNights); err != nil {
			return nil, fmt.Errorf("scan calendar snapshot: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HadEarlierAvailableObservation(ctx context.Context, listingID string, date, beforeCrawledAt time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM calendar_snapshots
			WHERE listing_id = $1 AND date = $2 AND crawled_at < $3 AND available = true
		)
	`, listingID, date, beforeCrawledAt).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("had earlier available observation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertCrawlLog(ctx context.Context, c CrawlLog) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO crawl_logs (id, job_type, started_at, finished_at, status, total_requests,
				successful_requests, failed_requests, blocked_requests, error_message)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, c.ID, c.JobType, c.StartedAt, c.FinishedAt, string(c.Status), c.TotalRequests,
			c.SuccessfulRequests, c.FailedRequests, c.BlockedRequests, c.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert crawl log: %w", err)
		}
		return nil
	})
}
