package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// Default query options, per spec.md §3/§9.
const (
	DefaultMaxTransfers        = 5
	DefaultMinTransferTimeSecs = 120
)

// Query is the frozen input to Router.Route: an origin, a set of
// destinations, a departure time, and the tunable options spec.md §9
// lists as the core's only recognised configuration.
type Query struct {
	From            string
	To              map[string]bool
	DepartureTime   timetable.Time
	MaxTransfers    int
	MinTransferTime timetable.Duration
	AllowedModes    map[model.RouteType]bool // nil means "all modes"
}

// QueryBuilder implements spec.md §6's fluent construction API:
// from(...) · to(...) · departure_time(...) · max_transfers(...) ·
// min_transfer_time(...) · allowed_modes(...) · build().
type QueryBuilder struct {
	q   Query
	err error
}

// NewQuery starts building a query from the given origin external id.
func NewQuery(from string) *QueryBuilder {
	return &QueryBuilder{
		q: Query{
			From:            from,
			To:              map[string]bool{},
			MaxTransfers:    DefaultMaxTransfers,
			MinTransferTime: timetable.DurationFromSeconds(DefaultMinTransferTimeSecs),
		},
	}
}

// To adds a destination external stop id.
func (b *QueryBuilder) To(externalId string) *QueryBuilder {
	b.q.To[externalId] = true
	return b
}

// DepartureTime parses an "HH:MM" or "HH:MM:SS" literal and sets it as
// the query's departure time. Parse failures are surfaced at Build,
// matching spec.md §7's invalid_time_literal propagation policy.
func (b *QueryBuilder) DepartureTime(literal string) *QueryBuilder {
	t, err := ParseTimeLiteral(literal)
	if err != nil {
		b.err = err
		return b
	}
	b.q.DepartureTime = t
	return b
}

// MaxTransfers overrides the default cap on the round loop.
func (b *QueryBuilder) MaxTransfers(n int) *QueryBuilder {
	b.q.MaxTransfers = n
	return b
}

// MinTransferTime overrides the default footpath cost applied when a
// transfer edge doesn't specify its own min_transfer_time.
func (b *QueryBuilder) MinTransferTime(d timetable.Duration) *QueryBuilder {
	b.q.MinTransferTime = d
	return b
}

// AllowedModes restricts the route scan to the given service-line types.
// Omitting this call (or passing no modes) leaves AllowedModes nil,
// which Timetable.ReachableRoutes treats as "all modes".
func (b *QueryBuilder) AllowedModes(modes ...model.RouteType) *QueryBuilder {
	if len(modes) == 0 {
		b.q.AllowedModes = nil
		return b
	}
	set := make(map[model.RouteType]bool, len(modes))
	for _, m := range modes {
		set[m] = true
	}
	b.q.AllowedModes = set
	return b
}

// Build finalizes the query, surfacing any deferred parse error.
func (b *QueryBuilder) Build() (*Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	q := b.q
	return &q, nil
}

// ParseTimeLiteral parses "HH:MM" or "HH:MM:SS" into a timetable.Time
// (minutes since midnight, half-up rounding on the seconds component).
// Hours above 23 are accepted to express next-day overflow service.
func ParseTimeLiteral(literal string) (timetable.Time, error) {
	parts := strings.Split(literal, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q: want HH:MM or HH:MM:SS", timetable.ErrInvalidTimeLiteral, literal)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("%w: %q: invalid hour", timetable.ErrInvalidTimeLiteral, literal)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q: invalid minute", timetable.ErrInvalidTimeLiteral, literal)
	}

	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q: invalid second", timetable.ErrInvalidTimeLiteral, literal)
		}
	}

	return timetable.Time(h*60 + m + (sec+30)/60), nil
}
