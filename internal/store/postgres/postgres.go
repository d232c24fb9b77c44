// Package postgres stores shows in PostgreSQL through a pgx pool sized to the
// number of ingest workers.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"whatson/internal/components/assert"
	"whatson/internal/components/chrono"
	"whatson/internal/ingest"

	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

type Options struct {
	DSN      string
	MaxConns int
	// SimpleProtocol disables prepared statements, required behind pgbouncer.
	SimpleProtocol bool
}

type Store struct {
	pool  *pgxpool.Pool
	clock chrono.TimeAPI
}

func Open(ctx context.Context, opts Options, clock chrono.TimeAPI) (*Store, error) {
	assert.NotNil(clock)

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 2
	}
	cfg.MaxConns = int32(opts.MaxConns)
	if opts.SimpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	_, err = pool.Exec(ctx, Schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, clock: clock}, nil
}

func (s *Store) Lookup(ctx context.Context, venueID, sourceID string) (ingest.Show, bool, error) {
	show := ingest.Show{VenueID: venueID, SourceID: sourceID}
	err := s.pool.QueryRow(
		ctx,
		`select title, start_at, end_at, price, booking_url, image_url
		from shows where venue_id = $1 and source_id = $2`,
		venueID, sourceID,
	).Scan(&show.Title, &show.Start, &show.End, &show.Price, &show.BookingURL, &show.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Show{}, false, nil
	}
	if err != nil {
		return ingest.Show{}, false, err
	}

	loc := s.clock.Location()
	show.Start = show.Start.In(loc)
	show.End = show.End.In(loc)
	return show, true, nil
}

func (s *Store) Upsert(ctx context.Context, show ingest.Show) error {
	now := s.clock.Now()
	_, err := s.pool.Exec(
		ctx,
		`insert into shows (
			venue_id, source_id, title, start_at, end_at, price,
			booking_url, image_url, created_at, updated_at
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		on conflict (venue_id, source_id) do update set
			title = excluded.title,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			price = excluded.price,
			booking_url = excluded.booking_url,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`,
		show.VenueID, show.SourceID, show.Title, show.Start, show.End, show.Price,
		show.BookingURL, show.ImageURL, now,
	)
	return err
}

// List returns the shows of a venue ordered by start.
func (s *Store) List(ctx context.Context, venueID string) ([]ingest.Show, error) {
	rows, err := s.pool.Query(
		ctx,
		`select source_id, title, start_at, end_at, price, booking_url, image_url
		from shows where venue_id = $1 order by start_at, source_id`,
		venueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := s.clock.Location()
	var shows []ingest.Show
	for rows.Next() {
		show := ingest.Show{VenueID: venueID}
		err := rows.Scan(&show.SourceID, &show.Title, &show.Start, &show.End, &show.Price, &show.BookingURL, &show.ImageURL)
		if err != nil {
			return nil, err
		}
		show.Start = show.Start.In(loc)
		show.End = show.End.In(loc)
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "truncate table shows")
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
