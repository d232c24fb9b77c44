// Package store opens the show store selected by the configuration.
package store

import (
	"context"
	"fmt"

	"whatson/internal/components/chrono"
	"whatson/internal/ingest"
	"whatson/internal/store/postgres"
	"whatson/internal/store/sqlite"
)

type Driver string

const (
	DriverSqlite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store is a sink that can also be cleared and closed.
type Store interface {
	ingest.Sink
	Reset(ctx context.Context) error
	Close() error
}

type Options struct {
	Driver    Driver `json:"driver" yaml:"driver"`
	File      string `json:"file" yaml:"file"`
	URL       string `json:"url" yaml:"url"`
	AuthToken string `json:"auth_token" yaml:"auth_token"`
	DSN       string `json:"dsn" yaml:"dsn"`
	// SimpleProtocol disables prepared statements for postgres.
	SimpleProtocol bool `json:"simple_protocol" yaml:"simple_protocol"`
}

func (o Options) Validate() error {
	switch o.Driver {
	case DriverSqlite, "":
		if o.File == "" && o.URL == "" {
			return fmt.Errorf("sqlite store needs a file or url")
		}
	case DriverPostgres:
		if o.DSN == "" {
			return fmt.Errorf("postgres store needs a dsn")
		}
	default:
		return fmt.Errorf("unknown store driver '%s'", o.Driver)
	}
	return nil
}

// Open connects to the configured store. maxConns sizes the postgres pool,
// sqlite always uses a single connection.
func Open(ctx context.Context, opts Options, maxConns int, clock chrono.TimeAPI) (Store, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	if opts.Driver == DriverPostgres {
		pg, err := postgres.Open(ctx, postgres.Options{
			DSN:            opts.DSN,
			MaxConns:       maxConns,
			SimpleProtocol: opts.SimpleProtocol,
		}, clock)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	lite, err := sqlite.Open(ctx, sqlite.Options{
		File:      opts.File,
		URL:       opts.URL,
		AuthToken: opts.AuthToken,
	}, clock)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
