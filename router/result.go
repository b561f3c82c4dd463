package router

import (
	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// ReachingTime is the earliest known arrival at a stop, per spec.md §3:
// the arrival time itself, how many legs (vehicle or transfer) it took,
// and which equivalent-origin stop produced it.
type ReachingTime struct {
	Arrival   timetable.Time
	LegNumber int
	Origin    timetable.StopId
}

// VehicleLeg is one ride on a service line between two stops.
type VehicleLeg struct {
	From          timetable.StopId
	To            timetable.StopId
	ServiceLine   *timetable.ServiceLine
	DepartureTime timetable.Time
	ArrivalTime   timetable.Time
}

// TransferLeg is a walking/cross-platform edge between two stops.
type TransferLeg struct {
	From            timetable.StopId
	To              timetable.StopId
	Type            model.TransferType
	MinTransferTime *timetable.Duration
}

// Leg is the tagged variant of spec.md §9's "polymorphic Leg" design
// note: data, not behaviour. Exactly one field is non-nil.
type Leg struct {
	Vehicle  *VehicleLeg
	Transfer *TransferLeg
}

// IsTransfer reports whether this leg is a transfer leg, used by
// relax_transfers to forbid two consecutive transfers.
func (l Leg) IsTransfer() bool { return l.Transfer != nil }

// TripLeg is a ReachingTime together with the concrete leg consumed to
// produce it. Leg is nil only for the round-0 seed entries.
type TripLeg struct {
	ReachingTime
	Leg *Leg
}

// Result owns the per-round arrival tables produced by one Router.Route
// call and lives as long as the caller needs journey reconstruction, per
// spec.md §3's Lifecycles note.
type Result struct {
	stops    *timetable.Stops
	query    *Query
	earliest map[timetable.StopId]ReachingTime
	rounds   []map[timetable.StopId]TripLeg // rounds[k] addressed by round index k
}

// ArrivalAt implements spec.md §4.5: resolves the equivalent stops of
// externalStopId and returns the best ReachingTime among them. If
// maxTransfers is nil, scans the all-rounds "earliest" table; if set,
// scans only rounds[0..=*maxTransfers+1].
func (r *Result) ArrivalAt(externalStopId string, maxTransfers *int) (ReachingTime, bool) {
	stops := r.stops.EquivalentStops(externalStopId)
	if len(stops) == 0 {
		return ReachingTime{}, false
	}

	var best ReachingTime
	found := false

	consider := func(rt ReachingTime) {
		if !found || rt.Arrival < best.Arrival {
			best = rt
			found = true
		}
	}

	if maxTransfers == nil {
		for _, s := range stops {
			if rt, ok := r.earliest[s.Id]; ok {
				consider(rt)
			}
		}
	} else {
		upper := *maxTransfers + 1
		if upper >= len(r.rounds) {
			upper = len(r.rounds) - 1
		}
		for k := 0; k <= upper; k++ {
			for _, s := range stops {
				if tl, ok := r.rounds[k][s.Id]; ok {
					consider(tl.ReachingTime)
				}
			}
		}
	}

	if !found {
		return ReachingTime{}, false
	}
	return best, true
}

// BestRoute implements spec.md §4.5: if externalStopId is empty, tries
// every destination in the query, picking the stop with the smallest
// arrival across the union of their equivalent stops (ties broken by
// smaller StopId), then reconstructs the journey backward through the
// per-round tables.
func (r *Result) BestRoute(externalStopId string) ([]Leg, bool) {
	var candidates []string
	if externalStopId != "" {
		candidates = []string{externalStopId}
	} else {
		for id := range r.query.To {
			candidates = append(candidates, id)
		}
	}

	var bestStop timetable.StopId
	var bestArrival timetable.Time
	haveBest := false

	for _, extId := range candidates {
		for _, s := range r.stops.EquivalentStops(extId) {
			rt, ok := r.earliest[s.Id]
			if !ok {
				continue
			}
			if !haveBest || rt.Arrival < bestArrival || (rt.Arrival == bestArrival && s.Id < bestStop) {
				bestArrival = rt.Arrival
				bestStop = s.Id
				haveBest = true
			}
		}
	}

	if !haveBest {
		return nil, false
	}

	return r.reconstruct(bestStop, bestArrival), true
}

// reconstruct walks rounds backward from stop, starting at the first
// (lowest) round whose recorded arrival matches targetArrival, per
// spec.md §4.5's (round, stop) back-pointer addressing. Vehicle legs are
// only recorded when they beat earliest[stop], but transfer legs are
// compared against the current round's entry alone, so more than one
// round can hold the same arrival; the lowest such round is used.
func (r *Result) reconstruct(stop timetable.StopId, targetArrival timetable.Time) []Leg {
	k := -1
	for round := range r.rounds {
		if tl, ok := r.rounds[round][stop]; ok && tl.Arrival == targetArrival {
			k = round
			break
		}
	}
	if k == -1 {
		return nil
	}

	var legs []Leg
	curStop := stop
	curRound := k
	for {
		tl, ok := r.rounds[curRound][curStop]
		if !ok {
			break
		}
		if tl.Leg == nil {
			break // round-0 seed: no leg consumed to get here
		}

		legs = append(legs, *tl.Leg)

		if tl.Leg.Transfer != nil {
			curStop = tl.Leg.Transfer.From
			// transfers do not advance the round
		} else {
			curStop = tl.Leg.Vehicle.From
			curRound--
		}
	}

	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}
	return legs
}
