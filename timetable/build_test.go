package timetable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmettlerl/minotor-sub000/testutil"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

func TestBuildGroupsTripsByStopSequence(t *testing.T) {
	stops, tt := testutil.BuildTimetable(t, "memory", map[string][]string{
		"calendar.txt": {
			"service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday",
			"WEEKDAY,20240101,20240101,1,0,0,0,0,0,0",
		},
		"routes.txt": {"route_id,route_short_name,route_type", "A,A,3"},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"t1,A,WEEKDAY",
			"t2,A,WEEKDAY",
			"t3,A,WEEKDAY",
		},
		"stops.txt": {
			"stop_id,stop_name",
			"1,Stop 1",
			"2,Stop 2",
			"3,Stop 3",
		},
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			// t1, t2 share the stop sequence [1,2,3]; t3 skips stop 2.
			"t1,1,0,08:00:00,08:00:00",
			"t1,2,1,08:10:00,08:10:00",
			"t1,3,2,08:20:00,08:20:00",
			"t2,1,0,09:00:00,09:00:00",
			"t2,2,1,09:10:00,09:10:00",
			"t2,3,2,09:20:00,09:20:00",
			"t3,1,0,10:00:00,10:00:00",
			"t3,3,1,10:15:00,10:15:00",
		},
	})

	require.Equal(t, 3, stops.NbStops())
	require.Equal(t, 2, tt.NbRoutes())

	routeA, ok := tt.Route(timetable.RouteId(0))
	require.True(t, ok)
	assert.Equal(t, 3, routeA.NbStops())
	assert.Equal(t, 2, routeA.NbTrips())

	routeB, ok := tt.Route(timetable.RouteId(1))
	require.True(t, ok)
	assert.Equal(t, 2, routeB.NbStops())
	assert.Equal(t, 1, routeB.NbTrips())

	stop1, ok := stops.ByExternalId("1")
	require.True(t, ok)
	routesThrough1 := tt.RoutesThrough(stop1.Id)
	assert.Len(t, routesThrough1, 2)
}

func TestBuildOnlyIncludesActiveServiceTrips(t *testing.T) {
	files := map[string][]string{
		"calendar.txt": {
			"service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday",
			"WEEKDAY,20240101,20240101,1,0,0,0,0,0,0",
			"WEEKEND,20240101,20240101,0,0,0,0,0,1,0",
		},
		"routes.txt": {"route_id,route_short_name,route_type", "A,A,3"},
		"trips.txt": {
			"trip_id,route_id,service_id",
			"weekday_trip,A,WEEKDAY",
			"weekend_trip,A,WEEKEND",
		},
		"stops.txt": {
			"stop_id,stop_name",
			"1,Stop 1",
			"2,Stop 2",
		},
		"stop_times.txt": []string{
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"weekday_trip,1,0,08:00:00,08:00:00",
			"weekday_trip,2,1,08:10:00,08:10:00",
			"weekend_trip,1,0,09:00:00,09:00:00",
			"weekend_trip,2,1,09:10:00,09:10:00",
		},
	}

	// 2024-01-01 is a Monday: only the WEEKDAY service is active.
	_, tt := testutil.BuildTimetable(t, "memory", files)
	require.Equal(t, 1, tt.NbRoutes())
	route, ok := tt.Route(timetable.RouteId(0))
	require.True(t, ok)
	assert.Equal(t, 1, route.NbTrips())
}
