/*
Package rates provides the country per-diem rate table for the allowance
engine.

PURPOSE:
  Resolves a country code to its statutory full-day and partial-day meal
  allowance amounts. Unknown codes are an expected outcome, not an error:
  they resolve to the hard-coded German default (28.00 / 14.00) so a trip
  through an unlisted country still computes, just approximated with the
  domestic rate.

CACHING:
  Sources may sit behind a database or remote store, so Table memoizes
  lookups per country code. The cache is append-only - entries are never
  invalidated within a session - which makes concurrent reads safe with a
  plain RWMutex. Concurrent lookups for the same uncached code are
  collapsed into a single in-flight fetch via singleflight, so computing
  a multi-day trip never hits the source twice for one country.

USAGE:
  table := rates.NewTable(rates.NewStaticSource())
  rate, exact, err := table.Lookup(ctx, "FR")

SEE ALSO:
  - allowance/engine.go: The RateTable interface this package implements
  - store/sqlite: A database-backed Source
*/
package rates

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/warp/allowance-engine/allowance"
)

// =============================================================================
// SOURCE - Where rates come from
// =============================================================================

// Source supplies raw rate rows. Returning (nil, nil) means the country
// has no entry, which is valid and expected; only infrastructure failures
// return an error.
type Source interface {
	GetRate(ctx context.Context, countryCode string) (*allowance.CountryRate, error)
}

// StaticSource serves rates from an in-memory map.
type StaticSource struct {
	rates map[string]allowance.CountryRate
}

// NewStaticSource returns a source preloaded with the statutory rate
// table for common destination countries.
func NewStaticSource() *StaticSource {
	return &StaticSource{rates: StatutoryRates()}
}

// NewStaticSourceFrom returns a source serving exactly the given rates.
func NewStaticSourceFrom(rates []allowance.CountryRate) *StaticSource {
	m := make(map[string]allowance.CountryRate, len(rates))
	for _, r := range rates {
		m[r.CountryCode] = r
	}
	return &StaticSource{rates: m}
}

func (s *StaticSource) GetRate(_ context.Context, countryCode string) (*allowance.CountryRate, error) {
	if r, ok := s.rates[countryCode]; ok {
		return &r, nil
	}
	return nil, nil
}

// =============================================================================
// TABLE - Memoizing lookup with in-flight deduplication
// =============================================================================

// Table implements allowance.RateTable on top of a Source. Safe for
// concurrent use.
type Table struct {
	source Source

	mu    sync.RWMutex
	cache map[string]cachedRate

	flight singleflight.Group
}

type cachedRate struct {
	rate  allowance.CountryRate
	exact bool
}

// NewTable creates a rate table backed by the given source.
func NewTable(source Source) *Table {
	return &Table{
		source: source,
		cache:  make(map[string]cachedRate),
	}
}

// Lookup resolves a country code to its rate. The second return value is
// true for an exact match and false when the German default was
// substituted (unknown code or source failure). Lookup never fails the
// caller: the fallback rate is always usable.
func (t *Table) Lookup(ctx context.Context, countryCode string) (allowance.CountryRate, bool, error) {
	t.mu.RLock()
	if c, ok := t.cache[countryCode]; ok {
		t.mu.RUnlock()
		return c.rate, c.exact, nil
	}
	t.mu.RUnlock()

	v, err, _ := t.flight.Do(countryCode, func() (any, error) {
		row, err := t.source.GetRate(ctx, countryCode)

		entry := cachedRate{rate: allowance.DefaultGermanRate(), exact: false}
		if err == nil && row != nil {
			entry = cachedRate{rate: *row, exact: true}
		}

		// Source failures are not cached so a later lookup can retry;
		// genuine absence is cached as the fallback.
		if err == nil {
			t.mu.Lock()
			t.cache[countryCode] = entry
			t.mu.Unlock()
		}
		return entry, err
	})

	entry := v.(cachedRate)
	if err != nil {
		return allowance.DefaultGermanRate(), false, err
	}
	return entry.rate, entry.exact, nil
}

// =============================================================================
// STATUTORY RATE TABLE
// =============================================================================

// StatutoryRates returns the per-diem amounts for common destination
// countries, keyed by code. Germany's entry matches the hard default.
func StatutoryRates() map[string]allowance.CountryRate {
	table := map[string][2]int64{
		"DE": {28, 14},
		"AT": {50, 33},
		"BE": {59, 40},
		"CH": {64, 43},
		"CN": {48, 32},
		"CZ": {32, 21},
		"DK": {75, 50},
		"ES": {34, 23},
		"FI": {54, 36},
		"FR": {53, 36},
		"GB": {52, 35},
		"GR": {40, 27},
		"IT": {42, 28},
		"JP": {50, 33},
		"LU": {63, 42},
		"NL": {47, 32},
		"NO": {75, 50},
		"PL": {34, 23},
		"PT": {32, 21},
		"SE": {66, 44},
		"US": {59, 40},
	}

	rates := make(map[string]allowance.CountryRate, len(table))
	for code, amounts := range table {
		rates[code] = allowance.CountryRate{
			CountryCode: code,
			FullDay:     decimal.NewFromInt(amounts[0]),
			PartialDay:  decimal.NewFromInt(amounts[1]),
		}
	}
	return rates
}
