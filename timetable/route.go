package timetable

import (
	"fmt"

	"github.com/barmettlerl/minotor-sub000/model"
)

// RouteId is a dense integer identifying a Route: the bundle of trips
// of one service line sharing exactly the same ordered stop list.
type RouteId int32

// ServiceLineId is a dense integer identifying a user-facing service
// line (e.g. "IC1", "Bus 263"), which may own several Routes.
type ServiceLineId int32

// TripIndex identifies one scheduled trip within a Route, in [0, nbTrips).
type TripIndex int32

// ServiceLine is the user-visible transport line a Route belongs to.
type ServiceLine struct {
	Type     model.RouteType
	Name     string
	LongName string
	Color    string
	Routes   []RouteId
}

// Route packs every trip sharing one ordered stop sequence into a flat
// time matrix and a bit-packed pickup/drop-off table, per spec.md §3.
// The packing is part of the on-disk contract, not a private detail:
// stop_times is a length 2*S*T array of minutes-since-midnight, indexed
// as stop_times[2*(t*S+p)] (arrival) / stop_times[2*(t*S+p)+1]
// (departure) for trip t and stop position p.
type Route struct {
	stops         []StopId
	stopIndex     map[StopId]int
	stopTimes     []int32 // len 2*S*T, minutes since midnight
	pickupDropoff []byte  // 4 bits per (trip, position) occurrence, 2 occurrences per byte
	serviceLine   ServiceLineId
	nbTripsField  int
}

// NewRoute builds a Route from already-compacted per-trip rows and
// validates the invariants spec.md §3 requires for earliest_trip's
// binary search to be correct. A violation here reflects bad input data
// (e.g. a feed with overtaking trips), not a programming bug, so it is
// reported as an error rather than panicking.
func NewRoute(stops []StopId, stopTimes []int32, pickupDropoff []byte, serviceLine ServiceLineId, nbTrips int) (*Route, error) {
	s := len(stops)
	if len(stopTimes) != 2*s*nbTrips {
		return nil, fmt.Errorf("%w: route has %d stops and %d trips but stop_times has length %d (want %d)",
			ErrMalformedTimetable, s, nbTrips, len(stopTimes), 2*s*nbTrips)
	}
	wantPacked := (s*nbTrips + 1) / 2
	if len(pickupDropoff) != wantPacked {
		return nil, fmt.Errorf("%w: route has %d stops and %d trips but pickup_dropoff has length %d (want %d)",
			ErrMalformedTimetable, s, nbTrips, len(pickupDropoff), wantPacked)
	}

	stopIndex := make(map[StopId]int, s)
	for p, id := range stops {
		stopIndex[id] = p
	}

	r := &Route{
		stops:         stops,
		stopIndex:     stopIndex,
		stopTimes:     stopTimes,
		pickupDropoff: pickupDropoff,
		serviceLine:   serviceLine,
		nbTripsField:  nbTrips,
	}

	for p := 0; p < s; p++ {
		for t := 0; t < nbTrips; t++ {
			arr := r.arrivalAtPos(p, t)
			dep := r.departureAtPos(p, t)
			if arr > dep {
				return nil, fmt.Errorf("%w: route trip %d stop position %d has arrival %d after departure %d",
					ErrMalformedTimetable, t, p, arr, dep)
			}
			if p+1 < s {
				nextArr := r.arrivalAtPos(p+1, t)
				if dep > nextArr {
					return nil, fmt.Errorf("%w: route trip %d departs position %d at %d after arriving position %d at %d",
						ErrMalformedTimetable, t, p, dep, p+1, nextArr)
				}
			}
			if t+1 < nbTrips {
				nextArr := r.arrivalAtPos(p, t+1)
				nextDep := r.departureAtPos(p, t+1)
				if arr > nextArr || dep > nextDep {
					return nil, fmt.Errorf("%w: trip %d overtakes trip %d at stop position %d",
						ErrMalformedTimetable, t, t+1, p)
				}
			}
		}
	}

	return r, nil
}

// NbStops returns S, the number of stops in this route's sequence.
func (r *Route) NbStops() int { return len(r.stops) }

// NbTrips returns T, the number of trips packed into this route.
func (r *Route) NbTrips() int { return r.nbTripsField }

// ServiceLineId returns the owning service line's id.
func (r *Route) ServiceLineId() ServiceLineId { return r.serviceLine }

// Stops returns the ordered stop sequence, for callers that need the
// whole list (e.g. serialization).
func (r *Route) Stops() []StopId { return r.stops }

func (r *Route) position(stop StopId) int {
	p, ok := r.stopIndex[stop]
	if !ok {
		invariantViolation(fmt.Sprintf("stop %d is not part of this route", stop))
	}
	return p
}

// IsBefore compares the route-relative position of a and b.
func (r *Route) IsBefore(a, b StopId) bool {
	return r.position(a) < r.position(b)
}

func (r *Route) occurrence(p, t int) int { return t*len(r.stops) + p }

func (r *Route) arrivalAtPos(p, t int) Time {
	return Time(r.stopTimes[2*r.occurrence(p, t)])
}

func (r *Route) departureAtPos(p, t int) Time {
	return Time(r.stopTimes[2*r.occurrence(p, t)+1])
}

// ArrivalAt is the O(1) lookup of trip t's arrival time at stop.
func (r *Route) ArrivalAt(stop StopId, t TripIndex) Time {
	return r.arrivalAtPos(r.position(stop), int(t))
}

// DepartureFrom is the O(1) lookup of trip t's departure time from stop.
func (r *Route) DepartureFrom(stop StopId, t TripIndex) Time {
	return r.departureAtPos(r.position(stop), int(t))
}

func (r *Route) nibble(p, t int) byte {
	i := r.occurrence(p, t)
	b := r.pickupDropoff[i/2]
	if i%2 == 0 {
		return b & 0x0F
	}
	return (b >> 4) & 0x0F
}

func (r *Route) setNibble(p, t int, v byte) {
	i := r.occurrence(p, t)
	b := r.pickupDropoff[i/2]
	if i%2 == 0 {
		r.pickupDropoff[i/2] = (b & 0xF0) | (v & 0x0F)
	} else {
		r.pickupDropoff[i/2] = (b & 0x0F) | ((v & 0x0F) << 4)
	}
}

// setPickupDropoff packs pickup (2 bits) and dropoff (2 bits) for trip
// t at stop position p. Used only during construction in build.go.
func (r *Route) setPickupDropoff(p, t int, pickup, dropoff model.PickupDropoffType) {
	r.setNibble(p, t, byte(pickup&0x3)|(byte(dropoff&0x3)<<2))
}

// PickupTypeAt decodes the pickup status of trip t at stop. A zero/
// missing slot decodes to regular.
func (r *Route) PickupTypeAt(stop StopId, t TripIndex) model.PickupDropoffType {
	return model.PickupDropoffType(r.nibble(r.position(stop), int(t)) & 0x3)
}

// DropoffTypeAt decodes the drop-off status of trip t at stop.
func (r *Route) DropoffTypeAt(stop StopId, t TripIndex) model.PickupDropoffType {
	return model.PickupDropoffType((r.nibble(r.position(stop), int(t)) >> 2) & 0x3)
}

// StopsIterator yields stop positions from startStop (or index 0 if
// startStop is NoStop) to the end of the route. It is a plain restartable
// slice, not a generator: callers range over the returned slice.
func (r *Route) StopsIterator(startStop StopId) []StopId {
	if startStop == NoStop {
		return r.stops
	}
	return r.stops[r.position(startStop):]
}

// EarliestTrip implements spec.md §4.2: among trips with index <
// beforeTrip (or all trips if hasBefore is false), finds the smallest
// trip whose departure from stop is >= after and whose pickup at stop
// is not "not_available". Trips are assumed sorted and non-overtaking
// (Route invariant #2), so the departure condition is monotone in trip
// index and a binary search applies.
func (r *Route) EarliestTrip(stop StopId, after Time, beforeTrip TripIndex, hasBefore bool) (TripIndex, bool) {
	p := r.position(stop)
	upper := r.nbTripsField - 1
	if hasBefore {
		b := int(beforeTrip) - 1
		if b < upper {
			upper = b
		}
	}
	if upper < 0 {
		return 0, false
	}

	lo, hi, found := 0, upper, -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if r.departureAtPos(p, mid) >= after {
			found = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	if found == -1 {
		return 0, false
	}

	for t := found; t <= upper; t++ {
		if r.nibble(p, t)&0x3 != byte(model.PickupDropoffNotAvailable) {
			return TripIndex(t), true
		}
	}
	return 0, false
}
