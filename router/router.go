package router

import (
	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// Router is a thin view over an immutable Stops/Timetable pair, per
// spec.md §5: both are shared by reference across any number of
// concurrent Route calls; all mutable state lives on the call stack.
type Router struct {
	stops     *timetable.Stops
	timetable *timetable.Timetable
}

// New builds a Router over a frozen Stops/Timetable pair.
func New(stops *timetable.Stops, tt *timetable.Timetable) *Router {
	return &Router{stops: stops, timetable: tt}
}

// currentTrip tracks the vehicle currently "ridden" while scanning one
// route during one round, per spec.md §4.4 step 2.
type currentTrip struct {
	tripIndex     timetable.TripIndex
	origin        timetable.StopId
	bestHopOnStop timetable.StopId
}

// Route runs the round-based algorithm of spec.md §4.4 and returns a
// Result owning the per-round arrival tables and a back-reference to
// Stops for journey reconstruction.
func (router *Router) Route(query *Query) *Result {
	earliest := map[timetable.StopId]ReachingTime{}
	rounds := []map[timetable.StopId]TripLeg{{}}

	marked := map[timetable.StopId]bool{}
	for _, o := range router.stops.EquivalentStops(query.From) {
		rt := ReachingTime{Arrival: query.DepartureTime, LegNumber: 0, Origin: o.Id}
		earliest[o.Id] = rt
		rounds[0][o.Id] = TripLeg{ReachingTime: rt}
		marked[o.Id] = true
	}

	router.relaxTransfers(marked, rounds[0], earliest, query)

	maxRound := query.MaxTransfers + 1
	for round := 1; round <= maxRound; round++ {
		rounds = append(rounds, map[timetable.StopId]TripLeg{})
		roundArrivals := rounds[round]
		prevRoundArrivals := rounds[round-1]

		reachable := router.timetable.ReachableRoutes(marked, query.AllowedModes)
		marked = map[timetable.StopId]bool{}

		for routeId, hopOnStop := range reachable {
			route, ok := router.timetable.Route(routeId)
			if !ok {
				continue
			}
			serviceLine := router.timetable.ServiceLineOf(routeId)

			var trip *currentTrip

			for _, curStop := range route.StopsIterator(hopOnStop) {
				// (a) try to drop off here.
				if trip != nil {
					arrive := route.ArrivalAt(curStop, trip.tripIndex)
					drop := route.DropoffTypeAt(curStop, trip.tripIndex)

					curEarliestArrival := timetable.TimeInfinity
					if rt, ok := earliest[curStop]; ok {
						curEarliestArrival = rt.Arrival
					}

					if drop != model.PickupDropoffNotAvailable &&
						arrive < curEarliestArrival &&
						arrive < router.pruningBound(query, earliest) {

						leg := Leg{Vehicle: &VehicleLeg{
							From:          trip.bestHopOnStop,
							To:            curStop,
							ServiceLine:   serviceLine,
							DepartureTime: route.DepartureFrom(trip.bestHopOnStop, trip.tripIndex),
							ArrivalTime:   arrive,
						}}
						rt := ReachingTime{Arrival: arrive, LegNumber: round, Origin: trip.origin}
						roundArrivals[curStop] = TripLeg{ReachingTime: rt, Leg: &leg}
						earliest[curStop] = rt
						marked[curStop] = true
					}
				}

				// (b) consider catching an earlier trip here.
				if prev, ok := prevRoundArrivals[curStop]; ok {
					boardable := trip == nil || prev.Arrival <= route.ArrivalAt(curStop, trip.tripIndex)
					if boardable {
						var beforeTrip timetable.TripIndex
						hasBefore := trip != nil
						if hasBefore {
							beforeTrip = trip.tripIndex
						}
						if t, found := route.EarliestTrip(curStop, prev.Arrival, beforeTrip, hasBefore); found {
							trip = &currentTrip{
								tripIndex:     t,
								origin:        prev.Origin,
								bestHopOnStop: curStop,
							}
						}
					}
				}
			}
		}

		router.relaxTransfers(marked, roundArrivals, earliest, query)

		if len(marked) == 0 {
			break
		}
	}

	return &Result{stops: router.stops, query: query, earliest: earliest, rounds: rounds}
}

// pruningBound is the smallest known arrival at any queried destination,
// defaulting to infinity; a candidate drop-off is only recorded if it
// beats this bound, per spec.md §4.4 step 2(a).
func (router *Router) pruningBound(query *Query, earliest map[timetable.StopId]ReachingTime) timetable.Time {
	bound := timetable.TimeInfinity
	for dest := range query.To {
		for _, s := range router.stops.EquivalentStops(dest) {
			if rt, ok := earliest[s.Id]; ok && rt.Arrival < bound {
				bound = rt.Arrival
			}
		}
	}
	return bound
}

// relaxTransfers implements spec.md §4.4's transfer relaxation pass:
// stops reached by a vehicle leg (or seeded) in this round may walk a
// single transfer edge; two consecutive transfers are forbidden. Newly
// reached stops are folded back into marked so the next round's route
// scan can board from them.
func (router *Router) relaxTransfers(
	marked map[timetable.StopId]bool,
	roundArrivals map[timetable.StopId]TripLeg,
	earliest map[timetable.StopId]ReachingTime,
	query *Query,
) {
	newlyMarked := map[timetable.StopId]bool{}

	for s := range marked {
		ra, ok := roundArrivals[s]
		if !ok {
			continue
		}
		if ra.Leg != nil && ra.Leg.IsTransfer() {
			continue
		}

		for _, transfer := range router.timetable.Transfers(s) {
			var cost timetable.Duration
			switch {
			case transfer.MinTransferTime != nil:
				cost = *transfer.MinTransferTime
			case transfer.Type == model.TransferInSeat:
				cost = 0
			default:
				cost = query.MinTransferTime
			}

			arrive := ra.Arrival.Add(cost)

			destArrival := timetable.TimeInfinity
			if tl, ok := roundArrivals[transfer.Destination]; ok {
				destArrival = tl.Arrival
			}

			if arrive < destArrival {
				leg := Leg{Transfer: &TransferLeg{
					From:            s,
					To:              transfer.Destination,
					Type:            transfer.Type,
					MinTransferTime: transfer.MinTransferTime,
				}}
				rt := ReachingTime{Arrival: arrive, LegNumber: ra.LegNumber + 1, Origin: ra.Origin}
				roundArrivals[transfer.Destination] = TripLeg{ReachingTime: rt, Leg: &leg}

				if cur, ok := earliest[transfer.Destination]; !ok || arrive < cur.Arrival {
					earliest[transfer.Destination] = rt
				}
				newlyMarked[transfer.Destination] = true
			}
		}
	}

	for s := range newlyMarked {
		marked[s] = true
	}
}
