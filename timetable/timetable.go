package timetable

import "github.com/barmettlerl/minotor-sub000/model"

// Timetable owns the collection of Routes, the stop adjacency, and the
// service-line metadata. Immutable after construction; safe to share
// across any number of concurrent readers, per spec.md §5.
type Timetable struct {
	stopsAdj     []StopAdjacency // indexed by StopId
	routes       []*Route        // indexed by RouteId
	serviceLines []*ServiceLine  // indexed by ServiceLineId
	activeStops  map[StopId]bool
}

// NewTimetable wraps already-built tables into a Timetable. stopsAdj
// must be indexed by StopId (dense, same length as the owning Stops).
func NewTimetable(stopsAdj []StopAdjacency, routes []*Route, serviceLines []*ServiceLine, activeStops map[StopId]bool) *Timetable {
	return &Timetable{
		stopsAdj:     stopsAdj,
		routes:       routes,
		serviceLines: serviceLines,
		activeStops:  activeStops,
	}
}

// Route looks up a route by id.
func (tt *Timetable) Route(id RouteId) (*Route, bool) {
	if id < 0 || int(id) >= len(tt.routes) {
		return nil, false
	}
	return tt.routes[id], true
}

// Transfers returns the transfer edges leaving stop.
func (tt *Timetable) Transfers(stop StopId) []Transfer {
	if int(stop) < 0 || int(stop) >= len(tt.stopsAdj) {
		return nil
	}
	return tt.stopsAdj[stop].Transfers
}

// RoutesThrough returns the routes calling at stop.
func (tt *Timetable) RoutesThrough(stop StopId) []RouteId {
	if int(stop) < 0 || int(stop) >= len(tt.stopsAdj) {
		return nil
	}
	return tt.stopsAdj[stop].Routes
}

// ServiceLineOf returns the service line owning a route.
func (tt *Timetable) ServiceLineOf(id RouteId) *ServiceLine {
	route, ok := tt.Route(id)
	if !ok {
		invariantViolation("service_line_of called with an unknown route id")
	}
	sl := tt.serviceLines[route.ServiceLineId()]
	return sl
}

// IsActive reports whether stop is reached by at least one route or
// transfer in this timetable.
func (tt *Timetable) IsActive(stop StopId) bool {
	return tt.activeStops[stop]
}

// NbStops returns the number of stop-adjacency slots (== the owning
// Stops' NbStops).
func (tt *Timetable) NbStops() int { return len(tt.stopsAdj) }

// NbRoutes returns the number of routes held by this timetable.
func (tt *Timetable) NbRoutes() int { return len(tt.routes) }

// NbServiceLines returns the number of service lines held by this
// timetable.
func (tt *Timetable) NbServiceLines() int { return len(tt.serviceLines) }

// ServiceLine looks up a service line by id, for callers (such as
// persist) that need to walk every service line rather than reach one
// through a route.
func (tt *Timetable) ServiceLine(id ServiceLineId) (*ServiceLine, bool) {
	if id < 0 || int(id) >= len(tt.serviceLines) {
		return nil, false
	}
	return tt.serviceLines[id], true
}

// ReachableRoutes implements spec.md §4.3: for each marked stop, for
// each route through it whose service-line type is in modes (nil means
// "all modes"), record the route with its earliest (route-relative)
// hop-on stop among all marked stops feeding it.
func (tt *Timetable) ReachableRoutes(marked map[StopId]bool, modes map[model.RouteType]bool) map[RouteId]StopId {
	result := make(map[RouteId]StopId)
	for s := range marked {
		for _, rid := range tt.RoutesThrough(s) {
			route, ok := tt.Route(rid)
			if !ok {
				invariantViolation("stop adjacency references an unknown route id")
			}
			if modes != nil {
				sl := tt.ServiceLineOf(rid)
				if !modes[sl.Type] {
					continue
				}
			}
			existing, ok := result[rid]
			if !ok {
				result[rid] = s
				continue
			}
			if route.IsBefore(s, existing) {
				result[rid] = s
			}
		}
	}
	return result
}
