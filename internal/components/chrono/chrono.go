package chrono

import "time"

// TimeAPI is the source of "now" and the local timezone for anything
// that resolves partial dates.
type TimeAPI interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl loads the named IANA timezone, an empty name selects
// Europe/London.
func NewStandardImpl(timezone string) (StandardImpl, error) {
	if timezone == "" {
		timezone = "Europe/London"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant, it is used to make date
// resolution deterministic.
type FixedImpl struct {
	now time.Time
}

func NewFixedImpl(now time.Time) FixedImpl {
	return FixedImpl{now: now}
}

func (f FixedImpl) Now() time.Time {
	return f.now
}

func (f FixedImpl) Location() *time.Location {
	return f.now.Location()
}
