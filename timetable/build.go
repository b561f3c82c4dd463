package timetable

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/storage"
)

// Build compacts the raw, string-keyed GTFS rows held in reader into the
// dense Stops/Timetable pair the router operates on, restricted to the
// trips active on serviceDate (a GTFS-style YYYYMMDD string), per the
// open question decision recorded in SPEC_FULL.md: the reference service
// date is an explicit parameter, not something this package infers.
func Build(reader storage.FeedReader, serviceDate string) (*Stops, *Timetable, error) {
	activeServiceIDs, err := reader.ActiveServices(serviceDate)
	if err != nil {
		return nil, nil, fmt.Errorf("getting active services for %s: %w", serviceDate, err)
	}
	activeService := make(map[string]bool, len(activeServiceIDs))
	for _, id := range activeServiceIDs {
		activeService[id] = true
	}

	modelStops, err := reader.Stops()
	if err != nil {
		return nil, nil, fmt.Errorf("reading stops: %w", err)
	}
	modelRoutes, err := reader.Routes()
	if err != nil {
		return nil, nil, fmt.Errorf("reading routes: %w", err)
	}
	modelTrips, err := reader.Trips()
	if err != nil {
		return nil, nil, fmt.Errorf("reading trips: %w", err)
	}
	modelStopTimes, err := reader.StopTimes()
	if err != nil {
		return nil, nil, fmt.Errorf("reading stop_times: %w", err)
	}
	modelTransfers, err := reader.Transfers()
	if err != nil {
		return nil, nil, fmt.Errorf("reading transfers: %w", err)
	}

	stops, stopsIndex, err := buildStops(modelStops)
	if err != nil {
		return nil, nil, err
	}

	activeTrips := make(map[string]model.Trip, len(modelTrips))
	for _, t := range modelTrips {
		if activeService[t.ServiceID] {
			activeTrips[t.ID] = t
		}
	}

	stopTimesByTrip := map[string][]model.StopTime{}
	for _, st := range modelStopTimes {
		if _, ok := activeTrips[st.TripID]; !ok {
			continue
		}
		stopTimesByTrip[st.TripID] = append(stopTimesByTrip[st.TripID], st)
	}
	for tripID, sts := range stopTimesByTrip {
		sort.SliceStable(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
		stopTimesByTrip[tripID] = sts
	}

	serviceLines, serviceLineIdByRouteID := buildServiceLineIndex(modelRoutes)

	routes, routeStopAdjacency, err := buildRoutes(
		stopsIndex, activeTrips, stopTimesByTrip, serviceLineIdByRouteID,
	)
	if err != nil {
		return nil, nil, err
	}

	for i, route := range routes {
		sl := serviceLines[route.ServiceLineId()]
		sl.Routes = append(sl.Routes, RouteId(i))
	}
	for _, sl := range serviceLines {
		sort.Slice(sl.Routes, func(i, j int) bool { return sl.Routes[i] < sl.Routes[j] })
	}

	stopsAdj := make([]StopAdjacency, len(stops))
	activeStops := map[StopId]bool{}

	for stopId, routeIds := range routeStopAdjacency {
		sorted := append([]RouteId{}, routeIds...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stopsAdj[stopId].Routes = sorted
		activeStops[stopId] = true
	}

	for _, xfer := range modelTransfers {
		fromId, ok := stopsIndex.ByExternalId(xfer.FromStopID)
		if !ok {
			return nil, nil, fmt.Errorf("transfer references unknown from_stop_id %q", xfer.FromStopID)
		}
		toId, ok := stopsIndex.ByExternalId(xfer.ToStopID)
		if !ok {
			return nil, nil, fmt.Errorf("transfer references unknown to_stop_id %q", xfer.ToStopID)
		}

		var minTransferTime *Duration
		if xfer.MinTransferTime != nil {
			d := DurationFromSeconds(int64(*xfer.MinTransferTime))
			minTransferTime = &d
		}

		stopsAdj[fromId.Id].Transfers = append(stopsAdj[fromId.Id].Transfers, Transfer{
			Destination:     toId.Id,
			Type:            xfer.Type,
			MinTransferTime: minTransferTime,
		})
		activeStops[fromId.Id] = true
		activeStops[toId.Id] = true
	}

	for stopId := range stopsAdj {
		xs := stopsAdj[stopId].Transfers
		sort.SliceStable(xs, func(i, j int) bool { return xs[i].Destination < xs[j].Destination })
	}

	tt := NewTimetable(stopsAdj, routes, serviceLines, activeStops)
	return stopsIndex, tt, nil
}

// buildStops assigns dense StopIds (ordered by external id, for
// determinism across rebuilds of the same feed) and resolves
// parent/children relationships.
func buildStops(modelStops []model.Stop) ([]*Stop, *Stops, error) {
	sorted := append([]model.Stop{}, modelStops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idByExternal := make(map[string]StopId, len(sorted))
	for i, s := range sorted {
		idByExternal[s.ID] = StopId(i)
	}

	stops := make([]*Stop, len(sorted))
	for i, s := range sorted {
		var lat, lon *float64
		if s.Lat != 0 || s.Lon != 0 {
			latV, lonV := s.Lat, s.Lon
			lat, lon = &latV, &lonV
		}
		stops[i] = &Stop{
			Id:           StopId(i),
			ExternalId:   s.ID,
			Name:         s.Name,
			Lat:          lat,
			Lon:          lon,
			Platform:     s.PlatformCode,
			LocationType: s.LocationType,
			Parent:       NoStop,
		}
	}

	for i, s := range sorted {
		if s.ParentStation == "" {
			continue
		}
		parentId, ok := idByExternal[s.ParentStation]
		if !ok {
			return nil, nil, fmt.Errorf("stop %q references unknown parent_station %q", s.ID, s.ParentStation)
		}
		stops[i].Parent = parentId
		stops[parentId].Children = append(stops[parentId].Children, StopId(i))
	}

	return stops, NewStops(stops), nil
}

// buildServiceLineIndex assigns dense ServiceLineIds to GTFS routes.txt
// rows, ordered by external id for determinism.
func buildServiceLineIndex(modelRoutes []model.Route) ([]*ServiceLine, map[string]ServiceLineId) {
	sorted := append([]model.Route{}, modelRoutes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	serviceLines := make([]*ServiceLine, len(sorted))
	idByExternal := make(map[string]ServiceLineId, len(sorted))
	for i, r := range sorted {
		name := r.ShortName
		if name == "" {
			name = r.LongName
		}
		serviceLines[i] = &ServiceLine{
			Type:     r.Type,
			Name:     name,
			LongName: r.LongName,
			Color:    r.Color,
		}
		idByExternal[r.ID] = ServiceLineId(i)
	}
	return serviceLines, idByExternal
}

// routeGroupKey groups trips of one service line sharing exactly the
// same ordered stop list into a single Route, per spec.md §3.
type routeGroupKey struct {
	routeID string
	seq     string
}

func stopSeqKey(stops []StopId) string {
	b := make([]byte, 0, len(stops)*5)
	for i, s := range stops {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(s), 10)
	}
	return string(b)
}

// buildRoutes groups active trips into Routes by (service line, stop
// sequence), packs each group's stop_times/pickup_dropoff tables, and
// returns the routes-through-stop adjacency alongside.
func buildRoutes(
	stopsIndex *Stops,
	activeTrips map[string]model.Trip,
	stopTimesByTrip map[string][]model.StopTime,
	serviceLineIdByRouteID map[string]ServiceLineId,
) ([]*Route, map[StopId][]RouteId, error) {

	groups := map[routeGroupKey][]string{}
	stopSeqByTrip := map[string][]StopId{}

	tripIDs := make([]string, 0, len(stopTimesByTrip))
	for tripID := range stopTimesByTrip {
		tripIDs = append(tripIDs, tripID)
	}
	sort.Strings(tripIDs)

	for _, tripID := range tripIDs {
		trip, ok := activeTrips[tripID]
		if !ok {
			continue
		}
		sts := stopTimesByTrip[tripID]
		seq := make([]StopId, len(sts))
		for j, st := range sts {
			stop, ok := stopsIndex.ByExternalId(st.StopID)
			if !ok {
				return nil, nil, fmt.Errorf("stop_time references unknown stop_id %q", st.StopID)
			}
			seq[j] = stop.Id
		}
		stopSeqByTrip[tripID] = seq

		key := routeGroupKey{routeID: trip.RouteID, seq: stopSeqKey(seq)}
		groups[key] = append(groups[key], tripID)
	}

	keys := make([]routeGroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].routeID != keys[j].routeID {
			return keys[i].routeID < keys[j].routeID
		}
		return keys[i].seq < keys[j].seq
	})

	routes := make([]*Route, 0, len(keys))
	stopAdjacency := map[StopId][]RouteId{}

	for _, key := range keys {
		group := groups[key]

		sort.SliceStable(group, func(i, j int) bool {
			return stopTimesByTrip[group[i]][0].Departure < stopTimesByTrip[group[j]][0].Departure
		})

		stopIds := stopSeqByTrip[group[0]]
		s := len(stopIds)
		t := len(group)

		stopTimesFlat := make([]int32, 2*s*t)
		for ti, tripID := range group {
			sts := stopTimesByTrip[tripID]
			for p, st := range sts {
				arr, err := hmsToMinutes(st.Arrival)
				if err != nil {
					return nil, nil, fmt.Errorf("trip %q: parsing arrival_time: %w", tripID, err)
				}
				dep, err := hmsToMinutes(st.Departure)
				if err != nil {
					return nil, nil, fmt.Errorf("trip %q: parsing departure_time: %w", tripID, err)
				}
				idx := 2 * (ti*s + p)
				stopTimesFlat[idx] = int32(arr)
				stopTimesFlat[idx+1] = int32(dep)
			}
		}

		pickupDropoff := make([]byte, (s*t+1)/2)

		serviceLineId, ok := serviceLineIdByRouteID[key.routeID]
		if !ok {
			return nil, nil, fmt.Errorf("trip group references unknown route_id %q", key.routeID)
		}

		route, err := NewRoute(stopIds, stopTimesFlat, pickupDropoff, serviceLineId, t)
		if err != nil {
			return nil, nil, fmt.Errorf("route %q (%d stops, %d trips): %w", key.routeID, s, t, err)
		}

		for ti, tripID := range group {
			sts := stopTimesByTrip[tripID]
			for p, st := range sts {
				route.setPickupDropoff(p, ti, st.PickupType, st.DropOffType)
			}
		}

		routeId := RouteId(len(routes))
		routes = append(routes, route)

		for _, stopId := range stopIds {
			stopAdjacency[stopId] = append(stopAdjacency[stopId], routeId)
		}
	}

	return routes, stopAdjacency, nil
}

// hmsToMinutes parses a GTFS "HHMMSS" time-of-day string (as normalized
// by parse.ParseStopTimes) into minutes since midnight. Hours may exceed
// 23 to represent service running past midnight.
func hmsToMinutes(hms string) (int, error) {
	if len(hms) != 6 {
		return 0, fmt.Errorf("%w: want 6 digits HHMMSS, got %q", ErrInvalidTimeLiteral, hms)
	}
	h, err := strconv.Atoi(hms[0:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimeLiteral, hms, err)
	}
	m, err := strconv.Atoi(hms[2:4])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimeLiteral, hms, err)
	}
	sec, err := strconv.Atoi(hms[4:6])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimeLiteral, hms, err)
	}
	return h*60 + m + (sec+30)/60, nil
}
