package store

import (
	"context"
	"testing"
	"time"

	"whatson/internal/components/chrono"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Options{File: "whatson.db"}.Validate())
	require.NoError(t, Options{Driver: DriverSqlite, URL: "libsql://whatson.turso.io"}.Validate())
	require.NoError(t, Options{Driver: DriverPostgres, DSN: "postgres://localhost/whatson"}.Validate())

	require.ErrorContains(t, Options{}.Validate(), "needs a file or url")
	require.ErrorContains(t, Options{Driver: DriverPostgres}.Validate(), "needs a dsn")
	require.ErrorContains(t, Options{Driver: "mongo"}.Validate(), "unknown store driver")
}

func TestOpenSqlite(t *testing.T) {
	clock := chrono.NewFixedImpl(time.Date(2020, time.January, 10, 12, 0, 0, 0, time.UTC))
	s, err := Open(context.Background(), Options{File: ":memory:"}, 4, clock)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Lookup(context.Background(), "globe", "id:missing")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, s.Reset(context.Background()))
}
