package core

import (
	"errors"
	"time"
)

// Period is a month key in YYYY-MM form. Categories and monthly summaries
// are scoped to a period.
type Period string

var ErrInvalidPeriod = errors.New("invalid period, want YYYY-MM")

// PeriodOf returns the period containing t, evaluated in UTC. One
// canonical zone keeps classification identical between the remote
// store and the local mirror regardless of the offset a date carries.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

func (p Period) Validate() error {
	if _, err := time.Parse("2006-01", string(p)); err != nil {
		return ErrInvalidPeriod
	}
	return nil
}

// Previous returns the period immediately before p. Invalid periods are
// returned unchanged; callers validate first.
func (p Period) Previous() Period {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return p
	}
	return Period(t.AddDate(0, -1, 0).Format("2006-01"))
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

func (p Period) String() string {
	return string(p)
}
