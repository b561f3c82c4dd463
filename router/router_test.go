package router_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmettlerl/minotor-sub000/router"
	"github.com/barmettlerl/minotor-sub000/testutil"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

// calendarAlwaysOn is a calendar.txt fixture active on
// testutil.DefaultServiceDate (2024-01-01, a Monday) and nothing else.
var calendarAlwaysOn = []string{
	"service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday",
	"WEEKDAY,20240101,20240101,1,0,0,0,0,0,0",
}

func stopsList(ids ...string) []string {
	lines := []string{"stop_id,stop_name"}
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("%s,Stop %s", id, id))
	}
	return lines
}

// S1: direct ride, one route, three stops.
func testDirectRide(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt":   []string{"route_id,route_short_name,route_type", "A,A,3"},
		"trips.txt":    []string{"trip_id,route_id,service_id", "t1,A,WEEKDAY"},
		"stops.txt":    stopsList("1", "2", "3"),
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,1,0,08:00:00,08:10:00",
			"t1,2,1,08:15:00,08:25:00",
			"t1,3,2,08:35:00,08:45:00",
		},
	})

	query, err := router.NewQuery("1").To("3").DepartureTime("08:00").MaxTransfers(0).Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	legs, ok := result.BestRoute("")
	require.True(t, ok)
	require.Len(t, legs, 1)
	require.NotNil(t, legs[0].Vehicle)
	assert.Equal(t, "08:35", legs[0].Vehicle.ArrivalTime.String())

	rt, ok := result.ArrivalAt("3", nil)
	require.True(t, ok)
	assert.Equal(t, "08:35", rt.Arrival.String())
}

// S2: route change via a shared station, no explicit transfer edge
// needed since both routes call at the same stop.
func testRouteChangeViaSharedStation(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt": []string{
			"route_id,route_short_name,route_type",
			"A,A,3",
			"B,B,3",
		},
		"trips.txt": []string{
			"trip_id,route_id,service_id",
			"ta,A,WEEKDAY",
			"tb,B,WEEKDAY",
		},
		"stops.txt": stopsList("1", "2", "3", "4", "5"),
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"ta,1,0,08:00:00,08:00:00",
			"ta,2,1,08:30:00,08:30:00",
			"ta,3,2,08:40:00,08:40:00",
			"tb,4,0,07:00:00,07:00:00",
			"tb,2,1,08:30:00,08:30:00",
			"tb,5,2,09:20:00,09:20:00",
		},
	})

	query, err := router.NewQuery("1").To("5").DepartureTime("08:00").Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	legs, ok := result.BestRoute("")
	require.True(t, ok)
	require.Len(t, legs, 2)
	assert.NotNil(t, legs[0].Vehicle)
	assert.NotNil(t, legs[1].Vehicle)

	rt, ok := result.ArrivalAt("5", nil)
	require.True(t, ok)
	assert.Equal(t, "09:20", rt.Arrival.String())
}

// S3: footpath transfer between two routes via a transfers.txt edge.
func testFootpathTransfer(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt": []string{
			"route_id,route_short_name,route_type",
			"A,A,3",
			"B,B,3",
		},
		"trips.txt": []string{
			"trip_id,route_id,service_id",
			"ta,A,WEEKDAY",
			"tb,B,WEEKDAY",
		},
		"stops.txt": stopsList("1", "2", "5", "6"),
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"ta,1,0,08:00:00,08:00:00",
			"ta,2,1,08:25:00,08:25:00",
			"tb,5,0,08:35:00,08:35:00",
			"tb,6,1,08:50:00,08:50:00",
		},
		"transfers.txt": []string{
			"from_stop_id,to_stop_id,transfer_type,min_transfer_time",
			"2,5,2,300",
		},
	})

	query, err := router.NewQuery("1").To("6").DepartureTime("08:00").Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	legs, ok := result.BestRoute("")
	require.True(t, ok)
	require.Len(t, legs, 3)
	require.NotNil(t, legs[0].Vehicle)
	require.NotNil(t, legs[1].Transfer)
	require.NotNil(t, legs[2].Vehicle)

	rt, ok := result.ArrivalAt("5", nil)
	require.True(t, ok)
	assert.Equal(t, "08:30", rt.Arrival.String())
}

// S4: a dominated long direct ride must lose to a faster journey with
// a change, even though the direct ride has fewer legs.
func testDominatedDirectLosesToFasterChange(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt": []string{
			"route_id,route_short_name,route_type",
			"L1,L1,3",
			"L2,L2,3",
			"L3,L3,3",
		},
		"trips.txt": []string{
			"trip_id,route_id,service_id",
			"t1,L1,WEEKDAY",
			"t2,L2,WEEKDAY",
			"t3,L3,WEEKDAY",
		},
		"stops.txt": stopsList("1", "2", "5"),
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,1,0,08:00:00,08:00:00",
			"t1,2,1,08:30:00,08:30:00",
			"t2,2,0,08:30:00,08:30:00",
			"t2,5,1,09:20:00,09:20:00",
			"t3,1,0,08:00:00,08:00:00",
			"t3,5,1,10:00:00,10:00:00",
		},
	})

	query, err := router.NewQuery("1").To("5").DepartureTime("08:00").Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	legs, ok := result.BestRoute("")
	require.True(t, ok)
	require.Len(t, legs, 2)

	rt, ok := result.ArrivalAt("5", nil)
	require.True(t, ok)
	assert.Equal(t, "09:20", rt.Arrival.String())
}

// S5: parent/platform expansion -- querying a parent station resolves
// to the platform that actually gets boarded.
func testParentPlatformExpansion(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt":   []string{"route_id,route_short_name,route_type", "A,A,2"},
		"trips.txt":    []string{"trip_id,route_id,service_id", "t1,A,WEEKDAY"},
		"stops.txt": []string{
			"stop_id,stop_name,location_type,parent_station",
			"Parent8504100,Parent,1,",
			"8504100:0:1,Platform 1,0,Parent8504100",
			"8504100:0:2,Platform 2,0,Parent8504100",
			"Parent8504748,Parent 2,1,",
			"8504748:0:1,Platform 1,0,Parent8504748",
		},
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,8504100:0:2,0,08:30:00,08:35:00",
			"t1,8504748:0:1,1,09:00:00,09:00:00",
		},
	})

	query, err := router.NewQuery("Parent8504100").To("Parent8504748").DepartureTime("08:30").Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	legs, ok := result.BestRoute("")
	require.True(t, ok)
	require.Len(t, legs, 1)
	assert.Equal(t, "8504100:0:2", mustExternalId(t, stops, legs[0].Vehicle.From))

	rt, ok := result.ArrivalAt("Parent8504748", nil)
	require.True(t, ok)
	assert.Equal(t, "09:00", rt.Arrival.String())
}

// S6: a not_available pickup on one trip must be skipped in favour of
// the next eligible trip on the same route.
func testPickupNotAvailableSkipsTrip(t *testing.T, backend string) {
	stops, tt := testutil.BuildTimetable(t, backend, map[string][]string{
		"calendar.txt": calendarAlwaysOn,
		"routes.txt":   []string{"route_id,route_short_name,route_type", "A,A,3"},
		"trips.txt": []string{
			"trip_id,route_id,service_id",
			"early,A,WEEKDAY",
			"blocked,A,WEEKDAY",
			"next,A,WEEKDAY",
		},
		"stops.txt": stopsList("1", "2"),
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time,pickup_type",
			"early,1,0,08:00:00,08:00:00,0",
			"early,2,1,08:10:00,08:10:00,0",
			"blocked,1,0,08:05:00,08:05:00,1",
			"blocked,2,1,08:15:00,08:15:00,0",
			"next,1,0,08:20:00,08:20:00,0",
			"next,2,1,08:30:00,08:30:00,0",
		},
	})

	query, err := router.NewQuery("1").To("2").DepartureTime("08:05").Build()
	require.NoError(t, err)

	result := router.New(stops, tt).Route(query)

	rt, ok := result.ArrivalAt("2", nil)
	require.True(t, ok)
	assert.Equal(t, "08:30", rt.Arrival.String())
}

func mustExternalId(t *testing.T, stops *timetable.Stops, id timetable.StopId) string {
	t.Helper()
	stop, ok := stops.ByInternalId(id)
	require.True(t, ok)
	return stop.ExternalId
}

func TestRouter(t *testing.T) {
	scenarios := []struct {
		Name string
		Test func(t *testing.T, backend string)
	}{
		{"DirectRide", testDirectRide},
		{"RouteChangeViaSharedStation", testRouteChangeViaSharedStation},
		{"FootpathTransfer", testFootpathTransfer},
		{"DominatedDirectLosesToFasterChange", testDominatedDirectLosesToFasterChange},
		{"ParentPlatformExpansion", testParentPlatformExpansion},
		{"PickupNotAvailableSkipsTrip", testPickupNotAvailableSkipsTrip},
	}

	for _, scenario := range scenarios {
		t.Run(fmt.Sprintf("%s/memory", scenario.Name), func(t *testing.T) {
			scenario.Test(t, "memory")
		})
		t.Run(fmt.Sprintf("%s/sqlite", scenario.Name), func(t *testing.T) {
			scenario.Test(t, "sqlite")
		})
	}
}
