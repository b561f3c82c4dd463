package timetable

import "github.com/barmettlerl/minotor-sub000/model"

// StopId is a dense, non-negative integer identifying a Stop; it is
// always equal to the stop's position in the Stops.byInternalId slice.
type StopId int32

// NoStop is the sentinel absence of a StopId, used for Stop.Parent when
// a stop has no parent station.
const NoStop StopId = -1

// Stop mirrors spec.md §3's Stop record. Lat/Lon are pointers because
// they are optional in the feed; a nil pointer means "unknown", not
// "zero degrees".
type Stop struct {
	Id           StopId
	ExternalId   string
	Name         string
	Lat          *float64
	Lon          *float64
	Platform     string
	LocationType model.LocationType
	Parent       StopId
	Children     []StopId
}

// Stops is the frozen, shared stop index the router reads: by_internal_id
// and by_external_id lookups plus the equivalent_stops sibling expansion.
// Built once by timetable.Build and never mutated afterwards.
type Stops struct {
	byInternalId []*Stop
	byExternalId map[string]*Stop
}

// NewStops wraps an already-built, dense slice of stops (index i holds
// the Stop with Id == StopId(i)) into a Stops index, building the
// external-id hash alongside it.
func NewStops(stops []*Stop) *Stops {
	byExternalId := make(map[string]*Stop, len(stops))
	for i, s := range stops {
		if s.Id != StopId(i) {
			invariantViolation("stop id does not match its position in the stops array")
		}
		byExternalId[s.ExternalId] = s
	}
	return &Stops{byInternalId: stops, byExternalId: byExternalId}
}

// ByInternalId is an O(1) lookup by dense id.
func (s *Stops) ByInternalId(id StopId) (*Stop, bool) {
	if id < 0 || int(id) >= len(s.byInternalId) {
		return nil, false
	}
	return s.byInternalId[id], true
}

// ByExternalId is an O(1) lookup by the feed's opaque string id.
func (s *Stops) ByExternalId(externalId string) (*Stop, bool) {
	stop, ok := s.byExternalId[externalId]
	return stop, ok
}

// NbStops returns the number of stops in the index.
func (s *Stops) NbStops() int { return len(s.byInternalId) }

// EquivalentStops implements spec.md §4.1: if the referenced stop has a
// parent, returns the parent's children (deduplicated, including the
// queried stop); otherwise returns the queried stop plus its children.
// The queried stop always comes first, followed by siblings in
// insertion order. Returns nil if externalId is unknown.
func (s *Stops) EquivalentStops(externalId string) []*Stop {
	stop, ok := s.byExternalId[externalId]
	if !ok {
		return nil
	}

	result := []*Stop{stop}
	seen := map[StopId]bool{stop.Id: true}

	siblingSource := stop.Children
	if stop.Parent != NoStop {
		parent, ok := s.ByInternalId(stop.Parent)
		if !ok {
			invariantViolation("stop references a parent id not present in the stops array")
		}
		siblingSource = parent.Children
	}

	for _, childId := range siblingSource {
		if seen[childId] {
			continue
		}
		child, ok := s.ByInternalId(childId)
		if !ok {
			invariantViolation("stop references a child id not present in the stops array")
		}
		result = append(result, child)
		seen[childId] = true
	}

	return result
}
