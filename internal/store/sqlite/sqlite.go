// Package sqlite stores shows in a local sqlite file or a remote libsql
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"whatson/internal/components/assert"
	"whatson/internal/components/chrono"
	"whatson/internal/ingest"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Options struct {
	// File is a local database path, ":memory:" keeps everything in memory.
	File string
	// URL selects a remote libsql database instead of File.
	URL       string
	AuthToken string
}

// Store is a sink backed by a single connection, so writes from concurrent
// venues are serialized.
type Store struct {
	db    *sql.DB
	clock chrono.TimeAPI
}

// libsqlURL adds the auth token to the query of the configured url.
func libsqlURL(raw, token string) (string, error) {
	link, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid libsql url: %w", err)
	}
	if token != "" {
		query := link.Query()
		query.Set("authToken", token)
		link.RawQuery = query.Encode()
	}
	return link.String(), nil
}

func openDB(opts Options) (*sql.DB, error) {
	if opts.URL != "" {
		link, err := libsqlURL(opts.URL, opts.AuthToken)
		if err != nil {
			return nil, err
		}
		return sql.Open("libsql", link)
	}

	if opts.File == "" {
		return nil, fmt.Errorf("neither a database file nor url was specified")
	}
	if opts.File != ":memory:" {
		dir := filepath.Dir(opts.File)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", opts.File)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Open(ctx context.Context, opts Options, clock chrono.TimeAPI) (*Store, error) {
	db, err := openDB(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := New(ctx, db, clock)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database and makes sure the schema exists.
func New(ctx context.Context, db *sql.DB, clock chrono.TimeAPI) (*Store, error) {
	assert.NotNil(db)
	assert.NotNil(clock)

	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

func (s *Store) fromUnix(seconds int64) time.Time {
	return time.Unix(seconds, 0).In(s.clock.Location())
}

func (s *Store) Lookup(ctx context.Context, venueID, sourceID string) (ingest.Show, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`select title, start_at, end_at, price, booking_url, image_url
		from shows where venue_id = ? and source_id = ?`,
		venueID, sourceID,
	)

	show := ingest.Show{VenueID: venueID, SourceID: sourceID}
	var start, end int64
	var price sql.NullInt64
	err := row.Scan(&show.Title, &start, &end, &price, &show.BookingURL, &show.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Show{}, false, nil
	}
	if err != nil {
		return ingest.Show{}, false, err
	}

	show.Start = s.fromUnix(start)
	show.End = s.fromUnix(end)
	if price.Valid {
		value := price.Int64
		show.Price = &value
	}
	return show, true, nil
}

func (s *Store) Upsert(ctx context.Context, show ingest.Show) error {
	now := s.clock.Now().Unix()
	var price sql.NullInt64
	if show.Price != nil {
		price = sql.NullInt64{Int64: *show.Price, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`insert into shows (
			venue_id, source_id, title, start_at, end_at, price,
			booking_url, image_url, created_at, updated_at
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (venue_id, source_id) do update set
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			price = excluded.price,
			booking_url = excluded.booking_url,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`,
		show.VenueID, show.SourceID, show.Title, show.Start.Unix(), show.End.Unix(), price,
		show.BookingURL, show.ImageURL, now, now,
	)
	return err
}

// List returns the shows of a venue ordered by start.
func (s *Store) List(ctx context.Context, venueID string) ([]ingest.Show, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select source_id from shows where venue_id = ? order by start_at, source_id`,
		venueID,
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		err := rows.Scan(&id)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// the single connection must be released before looking rows up
	shows := make([]ingest.Show, 0, len(ids))
	for _, id := range ids {
		show, _, err := s.Lookup(ctx, venueID, id)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, nil
}

// Reset removes every stored show.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "delete from shows")
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
