package persist

import (
	"fmt"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// SaveTimetable serializes a Timetable per spec.md §6: a version
// string, the stop adjacency table, the routes, and the service
// lines, each a length-prefixed sequence of records.
func SaveTimetable(tt *timetable.Timetable) ([]byte, error) {
	var b []byte
	b = appendVersion(b, TimetableVersion)

	b = append(b, appendStopsAdjacency(tt)...)
	var err error
	b, err = appendRoutes(b, tt)
	if err != nil {
		return nil, err
	}
	b = appendServiceLines(b, tt)

	return b, nil
}

func appendStopsAdjacency(tt *timetable.Timetable) []byte {
	var b []byte
	n := tt.NbStops()
	b = appendUint(b, n)

	for i := 0; i < n; i++ {
		stop := timetable.StopId(i)

		transfers := tt.Transfers(stop)
		b = appendUint(b, len(transfers))
		for _, xfer := range transfers {
			b = appendUint(b, int(xfer.Destination))
			b = appendUint(b, int(xfer.Type))
			var secs *int
			if xfer.MinTransferTime != nil {
				s := int(xfer.MinTransferTime.Seconds())
				secs = &s
			}
			b = appendOptionalUint(b, secs)
		}

		routes := tt.RoutesThrough(stop)
		b = appendUint(b, len(routes))
		routeIds := make([]int32, len(routes))
		for j, r := range routes {
			routeIds[j] = int32(r)
		}
		b = appendPackedUint32LE(b, routeIds)
	}

	return b
}

func appendRoutes(b []byte, tt *timetable.Timetable) ([]byte, error) {
	n := tt.NbRoutes()
	b = appendUint(b, n)

	for i := 0; i < n; i++ {
		route, ok := tt.Route(timetable.RouteId(i))
		if !ok {
			return nil, fmt.Errorf("%w: route %d missing from timetable", timetable.ErrMalformedTimetable, i)
		}

		stops := route.Stops()
		s := len(stops)
		tNb := route.NbTrips()

		stopIds := make([]int32, s)
		for p, st := range stops {
			stopIds[p] = int32(st)
		}

		stopTimes := make([]int32, 2*s*tNb)
		pickupDropoff := make([]byte, (s*tNb+1)/2)

		for p, st := range stops {
			for t := 0; t < tNb; t++ {
				occurrence := t*s + p
				stopTimes[2*occurrence] = int32(route.ArrivalAt(st, timetable.TripIndex(t)))
				stopTimes[2*occurrence+1] = int32(route.DepartureFrom(st, timetable.TripIndex(t)))

				pickup := route.PickupTypeAt(st, timetable.TripIndex(t))
				dropoff := route.DropoffTypeAt(st, timetable.TripIndex(t))
				packPickupDropoff(pickupDropoff, occurrence, pickup, dropoff)
			}
		}

		b = appendUint(b, s)
		b = appendUint(b, tNb)
		b = appendPackedUint32LE(b, stopIds)
		var err error
		b, err = appendPackedUint16LE(b, stopTimes)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		b = appendBytes(b, pickupDropoff)
		b = appendUint(b, int(route.ServiceLineId()))
	}

	return b, nil
}

func appendServiceLines(b []byte, tt *timetable.Timetable) []byte {
	n := tt.NbServiceLines()
	b = appendUint(b, n)

	for i := 0; i < n; i++ {
		sl, ok := tt.ServiceLine(timetable.ServiceLineId(i))
		if !ok {
			continue
		}
		b = appendUint(b, int(sl.Type))
		b = appendString(b, sl.Name)
		b = appendString(b, sl.LongName)
		b = appendString(b, sl.Color)
	}

	return b
}

// packPickupDropoff packs pickup (2 bits) and dropoff (2 bits) for the
// occurrence-th (trip, stop-position) slot into raw, the same 4-bits-
// per-occurrence/2-occurrences-per-byte layout timetable.Route uses
// internally, so the bytes this writes can be handed straight to
// timetable.NewRoute on Load.
func packPickupDropoff(raw []byte, occurrence int, pickup, dropoff model.PickupDropoffType) {
	v := byte(pickup&0x3) | (byte(dropoff&0x3) << 2)
	i := occurrence / 2
	if occurrence%2 == 0 {
		raw[i] = (raw[i] & 0xF0) | v
	} else {
		raw[i] = (raw[i] & 0x0F) | (v << 4)
	}
}

// LoadTimetable reconstructs a Timetable from bytes written by
// SaveTimetable.
func LoadTimetable(b []byte) (*timetable.Timetable, error) {
	b, err := consumeVersion(b, TimetableVersion)
	if err != nil {
		return nil, err
	}

	stopsAdj, b, err := consumeStopsAdjacency(b)
	if err != nil {
		return nil, err
	}

	routes, b, err := consumeRoutes(b)
	if err != nil {
		return nil, err
	}

	serviceLines, _, err := consumeServiceLines(b)
	if err != nil {
		return nil, err
	}

	for i, route := range routes {
		sl := serviceLines[route.ServiceLineId()]
		sl.Routes = append(sl.Routes, timetable.RouteId(i))
	}

	activeStops := make(map[timetable.StopId]bool)
	for i, adj := range stopsAdj {
		if len(adj.Routes) > 0 || len(adj.Transfers) > 0 {
			activeStops[timetable.StopId(i)] = true
		}
	}

	return timetable.NewTimetable(stopsAdj, routes, serviceLines, activeStops), nil
}

func consumeStopsAdjacency(b []byte) ([]timetable.StopAdjacency, []byte, error) {
	n, b, err := consumeUint(b)
	if err != nil {
		return nil, nil, fmt.Errorf("reading stop adjacency count: %w", err)
	}

	stopsAdj := make([]timetable.StopAdjacency, n)
	for i := 0; i < n; i++ {
		nbTransfers, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("stop %d: reading transfer count: %w", i, err)
		}
		b = rest

		// Left nil when empty, as timetable.Build leaves it.
		var transfers []timetable.Transfer
		if nbTransfers > 0 {
			transfers = make([]timetable.Transfer, nbTransfers)
		}
		for j := 0; j < nbTransfers; j++ {
			dest, rest, err := consumeUint(b)
			if err != nil {
				return nil, nil, fmt.Errorf("stop %d transfer %d: reading destination: %w", i, j, err)
			}
			b = rest

			xferType, rest, err := consumeUint(b)
			if err != nil {
				return nil, nil, fmt.Errorf("stop %d transfer %d: reading type: %w", i, j, err)
			}
			b = rest

			secs, rest, err := consumeOptionalUint(b)
			if err != nil {
				return nil, nil, fmt.Errorf("stop %d transfer %d: reading min_transfer_time: %w", i, j, err)
			}
			b = rest

			var minTransferTime *timetable.Duration
			if secs != nil {
				d := timetable.DurationFromSeconds(int64(*secs))
				minTransferTime = &d
			}

			transfers[j] = timetable.Transfer{
				Destination:     timetable.StopId(dest),
				Type:            model.TransferType(xferType),
				MinTransferTime: minTransferTime,
			}
		}
		stopsAdj[i].Transfers = transfers

		nbRoutes, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("stop %d: reading route count: %w", i, err)
		}
		b = rest

		routeIds, rest, err := consumePackedUint32LE(b, nbRoutes)
		if err != nil {
			return nil, nil, fmt.Errorf("stop %d: reading routes: %w", i, err)
		}
		b = rest

		var routes []timetable.RouteId
		if len(routeIds) > 0 {
			routes = make([]timetable.RouteId, len(routeIds))
		}
		for j, r := range routeIds {
			routes[j] = timetable.RouteId(r)
		}
		stopsAdj[i].Routes = routes
	}

	return stopsAdj, b, nil
}

func consumeRoutes(b []byte) ([]*timetable.Route, []byte, error) {
	n, b, err := consumeUint(b)
	if err != nil {
		return nil, nil, fmt.Errorf("reading route count: %w", err)
	}

	routes := make([]*timetable.Route, n)
	for i := 0; i < n; i++ {
		s, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading stop count: %w", i, err)
		}
		b = rest

		tNb, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading trip count: %w", i, err)
		}
		b = rest

		stopIds, rest, err := consumePackedUint32LE(b, s)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading stops: %w", i, err)
		}
		b = rest

		stopTimes, rest, err := consumePackedUint16LE(b, 2*s*tNb)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading stop_times: %w", i, err)
		}
		b = rest

		pickupDropoff, rest, err := consumeBytes(b, (s*tNb+1)/2)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading pickup_dropoff: %w", i, err)
		}
		b = rest

		serviceLineId, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: reading service_line_id: %w", i, err)
		}
		b = rest

		stops := make([]timetable.StopId, len(stopIds))
		for j, id := range stopIds {
			stops[j] = timetable.StopId(id)
		}

		route, err := timetable.NewRoute(stops, stopTimes, pickupDropoff, timetable.ServiceLineId(serviceLineId), tNb)
		if err != nil {
			return nil, nil, fmt.Errorf("route %d: %w", i, err)
		}
		routes[i] = route
	}

	return routes, b, nil
}

func consumeServiceLines(b []byte) ([]*timetable.ServiceLine, []byte, error) {
	n, b, err := consumeUint(b)
	if err != nil {
		return nil, nil, fmt.Errorf("reading service line count: %w", err)
	}

	serviceLines := make([]*timetable.ServiceLine, n)
	for i := 0; i < n; i++ {
		slType, rest, err := consumeUint(b)
		if err != nil {
			return nil, nil, fmt.Errorf("service line %d: reading type: %w", i, err)
		}
		b = rest

		name, rest, err := consumeString(b)
		if err != nil {
			return nil, nil, fmt.Errorf("service line %d: reading name: %w", i, err)
		}
		b = rest

		longName, rest, err := consumeString(b)
		if err != nil {
			return nil, nil, fmt.Errorf("service line %d: reading long_name: %w", i, err)
		}
		b = rest

		color, rest, err := consumeString(b)
		if err != nil {
			return nil, nil, fmt.Errorf("service line %d: reading color: %w", i, err)
		}
		b = rest

		serviceLines[i] = &timetable.ServiceLine{
			Type:     model.RouteType(slType),
			Name:     name,
			LongName: longName,
			Color:    color,
		}
	}

	return serviceLines, b, nil
}
