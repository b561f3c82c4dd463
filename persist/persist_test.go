package persist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmettlerl/minotor-sub000/persist"
	"github.com/barmettlerl/minotor-sub000/testutil"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

var fixture = map[string][]string{
	"calendar.txt": {
		"service_id,start_date,end_date,monday,tuesday,wednesday,thursday,friday,saturday,sunday",
		"WEEKDAY,20240101,20240101,1,0,0,0,0,0,0",
	},
	"routes.txt": {
		"route_id,route_short_name,route_type",
		"A,A,3",
	},
	"trips.txt": {
		"trip_id,route_id,service_id",
		"t1,A,WEEKDAY",
	},
	"stops.txt": {
		"stop_id,stop_name,parent_station",
		"1,Stop 1,",
		"2,Stop 2,",
		"3,Stop 3,",
	},
	"stop_times.txt": {
		"trip_id,stop_id,stop_sequence,arrival_time,departure_time,pickup_type",
		"t1,1,0,08:00:00,08:10:00,0",
		"t1,2,1,08:15:00,08:25:00,1",
		"t1,3,2,08:35:00,08:45:00,0",
	},
	"transfers.txt": {
		"from_stop_id,to_stop_id,transfer_type,min_transfer_time",
		"2,3,2,300",
	},
}

func TestStopsRoundTrip(t *testing.T) {
	stops, _ := testutil.BuildTimetable(t, "memory", fixture)

	encoded := persist.SaveStops(stops)
	decoded, err := persist.LoadStops(encoded)
	require.NoError(t, err)

	require.Equal(t, stops.NbStops(), decoded.NbStops())
	for i := 0; i < stops.NbStops(); i++ {
		want, _ := stops.ByInternalId(timetable.StopId(i))
		got, ok := decoded.ByInternalId(timetable.StopId(i))
		require.True(t, ok)
		assert.Equal(t, want.ExternalId, got.ExternalId)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Parent, got.Parent)
		assert.Equal(t, want.Children, got.Children)
	}
}

func TestTimetableRoundTrip(t *testing.T) {
	_, tt := testutil.BuildTimetable(t, "memory", fixture)

	encoded, err := persist.SaveTimetable(tt)
	require.NoError(t, err)

	decoded, err := persist.LoadTimetable(encoded)
	require.NoError(t, err)

	require.Equal(t, tt.NbRoutes(), decoded.NbRoutes())
	require.Equal(t, tt.NbServiceLines(), decoded.NbServiceLines())
	require.Equal(t, tt.NbStops(), decoded.NbStops())

	for i := 0; i < tt.NbRoutes(); i++ {
		wantRoute, _ := tt.Route(timetable.RouteId(i))
		gotRoute, ok := decoded.Route(timetable.RouteId(i))
		require.True(t, ok)
		assert.Equal(t, wantRoute.Stops(), gotRoute.Stops())
		assert.Equal(t, wantRoute.NbTrips(), gotRoute.NbTrips())
		assert.Equal(t, wantRoute.ServiceLineId(), gotRoute.ServiceLineId())

		for _, stop := range wantRoute.Stops() {
			for trip := 0; trip < wantRoute.NbTrips(); trip++ {
				assert.Equal(t,
					wantRoute.ArrivalAt(stop, timetable.TripIndex(trip)),
					gotRoute.ArrivalAt(stop, timetable.TripIndex(trip)),
				)
				assert.Equal(t,
					wantRoute.PickupTypeAt(stop, timetable.TripIndex(trip)),
					gotRoute.PickupTypeAt(stop, timetable.TripIndex(trip)),
				)
			}
		}
	}

	for i := 0; i < tt.NbStops(); i++ {
		assert.Equal(t, tt.Transfers(timetable.StopId(i)), decoded.Transfers(timetable.StopId(i)))
		assert.Equal(t, tt.RoutesThrough(timetable.StopId(i)), decoded.RoutesThrough(timetable.StopId(i)))
	}
}
