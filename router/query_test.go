package router_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmettlerl/minotor-sub000/model"
	"github.com/barmettlerl/minotor-sub000/router"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

func TestParseTimeLiteral(t *testing.T) {
	cases := []struct {
		literal string
		want    timetable.Time
	}{
		{"08:00", 480},
		{"08:00:00", 480},
		{"08:00:29", 480},
		{"08:00:30", 481},
		{"25:30", 25*60 + 30},
		{"0:00", 0},
	}
	for _, c := range cases {
		got, err := router.ParseTimeLiteral(c.literal)
		require.NoError(t, err, c.literal)
		assert.Equal(t, c.want, got, c.literal)
	}
}

func TestParseTimeLiteralRejectsMalformedInput(t *testing.T) {
	for _, literal := range []string{"", "8", "08:60", "08:00:60", "ab:cd"} {
		_, err := router.ParseTimeLiteral(literal)
		assert.ErrorIs(t, err, timetable.ErrInvalidTimeLiteral, literal)
	}
}

func TestQueryBuilderDefaults(t *testing.T) {
	q, err := router.NewQuery("1").To("2").DepartureTime("08:00").Build()
	require.NoError(t, err)

	assert.Equal(t, router.DefaultMaxTransfers, q.MaxTransfers)
	assert.Equal(t, timetable.DurationFromSeconds(router.DefaultMinTransferTimeSecs), q.MinTransferTime)
	assert.Nil(t, q.AllowedModes)
	assert.True(t, q.To["2"])
}

func TestQueryBuilderSurfacesParseError(t *testing.T) {
	_, err := router.NewQuery("1").DepartureTime("not-a-time").Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, timetable.ErrInvalidTimeLiteral))
}

func TestQueryBuilderAllowedModes(t *testing.T) {
	q, err := router.NewQuery("1").AllowedModes(model.RouteTypeBus, model.RouteTypeTram).DepartureTime("08:00").Build()
	require.NoError(t, err)
	assert.True(t, q.AllowedModes[model.RouteTypeBus])
	assert.True(t, q.AllowedModes[model.RouteTypeTram])
	assert.False(t, q.AllowedModes[model.RouteTypeRail])
}
