package persist

import (
	"fmt"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// SaveStops serializes a Stops index per spec.md §6: a version string
// followed by one record per stop, in internal-id order so Load can
// rebuild the dense slice by simply appending.
func SaveStops(stops *timetable.Stops) []byte {
	n := stops.NbStops()

	var b []byte
	b = appendVersion(b, StopsVersion)
	b = appendUint(b, n)

	for i := 0; i < n; i++ {
		stop, _ := stops.ByInternalId(timetable.StopId(i))
		b = appendString(b, stop.ExternalId)
		b = appendString(b, stop.Name)
		b = appendOptionalFloat64(b, stop.Lat)
		b = appendOptionalFloat64(b, stop.Lon)
		b = appendString(b, stop.Platform)
		b = appendUint(b, int(stop.LocationType))

		var parent *int
		if stop.Parent != timetable.NoStop {
			p := int(stop.Parent)
			parent = &p
		}
		b = appendOptionalUint(b, parent)

		b = appendUint(b, len(stop.Children))
		children := make([]int32, len(stop.Children))
		for j, c := range stop.Children {
			children[j] = int32(c)
		}
		b = appendPackedUint32LE(b, children)
	}

	return b
}

// LoadStops reconstructs a Stops index from bytes written by SaveStops.
func LoadStops(b []byte) (*timetable.Stops, error) {
	b, err := consumeVersion(b, StopsVersion)
	if err != nil {
		return nil, err
	}

	n, b, err := consumeUint(b)
	if err != nil {
		return nil, fmt.Errorf("reading stop count: %w", err)
	}

	stopList := make([]*timetable.Stop, n)
	for i := 0; i < n; i++ {
		var externalId, name, platform string
		var lat, lon *float64
		var parent *int
		var locationType, nbChildren int
		var childIds []int32

		externalId, b, err = consumeString(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading external_id: %w", i, err)
		}
		name, b, err = consumeString(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading name: %w", i, err)
		}
		lat, b, err = consumeOptionalFloat64(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading lat: %w", i, err)
		}
		lon, b, err = consumeOptionalFloat64(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading lon: %w", i, err)
		}
		platform, b, err = consumeString(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading platform: %w", i, err)
		}
		locationType, b, err = consumeUint(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading location_type: %w", i, err)
		}
		parent, b, err = consumeOptionalUint(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading parent: %w", i, err)
		}
		nbChildren, b, err = consumeUint(b)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading children count: %w", i, err)
		}
		childIds, b, err = consumePackedUint32LE(b, nbChildren)
		if err != nil {
			return nil, fmt.Errorf("stop %d: reading children: %w", i, err)
		}

		// Left nil when empty, as timetable.Build leaves it.
		var children []timetable.StopId
		if len(childIds) > 0 {
			children = make([]timetable.StopId, len(childIds))
		}
		for j, c := range childIds {
			children[j] = timetable.StopId(c)
		}

		parentId := timetable.NoStop
		if parent != nil {
			parentId = timetable.StopId(*parent)
		}

		stopList[i] = &timetable.Stop{
			Id:           timetable.StopId(i),
			ExternalId:   externalId,
			Name:         name,
			Lat:          lat,
			Lon:          lon,
			Platform:     platform,
			LocationType: model.LocationType(locationType),
			Parent:       parentId,
			Children:     children,
		}
	}

	return timetable.NewStops(stopList), nil
}
