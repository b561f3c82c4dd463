package minotor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmettlerl/minotor-sub000/storage"
)

type mockGTFSServer struct {
	Feeds    map[string][]byte
	Requests []string
	Server   *httptest.Server
}

func (m *mockGTFSServer) handler(w http.ResponseWriter, r *http.Request) {
	m.Requests = append(m.Requests, r.URL.Path)
	if feed, found := m.Feeds[r.URL.Path]; found {
		w.Write(feed)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

func managerFixture() *mockGTFSServer {
	m := &mockGTFSServer{
		Feeds:    map[string][]byte{},
		Requests: []string{},
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

func validFeed() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"America/Los_Angeles,Fake Agency,http://agency/index.html",
		},
		"routes.txt": {
			"route_id,route_short_name,route_type",
			"r,R,3",
		},
		"calendar.txt": {
			"service_id,monday,start_date,end_date",
			"mondays,1,20190101,20190301",
		},
		"trips.txt": {
			"route_id,service_id,trip_id",
			"r,mondays,t",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s,S,12,34",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,12:00:00,12:00:00,s,1",
		},
	}
}

func buildZip(t *testing.T, files map[string][]string) []byte {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// 2019-02-01 falls on a Friday, within the "mondays" calendar's date
// range but not on a monday itself -- callers that only care about a
// feed being active (not a particular trip) use this as "when".
var whenActive = time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)

func TestManagerLoadSingleFeed(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	server.Feeds["/static.zip"] = buildZip(t, validFeed())

	s := storage.NewMemoryStorage()
	m := NewManager(s)

	tt, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)

	require.Equal(t, 1, tt.Stops.NbStops())
	stop, ok := tt.Stops.ByExternalId("s")
	require.True(t, ok)
	assert.Equal(t, "S", stop.Name)
}

func TestManagerLoadMultipleURLs(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	server.Feeds["/static1.zip"] = buildZip(t, validFeed())

	files := validFeed()
	files["stops.txt"] = []string{
		"stop_id,stop_name,stop_lat,stop_lon",
		"s2,S2,12,34",
	}
	files["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"t,12:00:00,12:00:00,s2,1",
	}
	server.Feeds["/static2.zip"] = buildZip(t, files)

	s := storage.NewMemoryStorage()
	m := NewManager(s)

	tt1, err := m.Load(server.Server.URL+"/static1.zip", whenActive)
	require.NoError(t, err)
	tt2, err := m.Load(server.Server.URL+"/static2.zip", whenActive)
	require.NoError(t, err)

	stop1, ok := tt1.Stops.ByExternalId("s")
	require.True(t, ok)
	assert.Equal(t, "S", stop1.Name)

	stop2, ok := tt2.Stops.ByExternalId("s2")
	require.True(t, ok)
	assert.Equal(t, "S2", stop2.Name)
}

func TestManagerLoadWithRefresh(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	files := validFeed()
	feed1Zip := buildZip(t, files)
	files["stops.txt"] = []string{
		"stop_id,stop_name,stop_lat,stop_lon",
		"s2,S,12,34",
	}
	files["stop_times.txt"] = []string{
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
		"t,12:00:00,12:00:00,s2,1",
	}
	feed2Zip := buildZip(t, files)

	s := storage.NewMemoryStorage()
	m := NewManager(s)
	server.Feeds["/static.zip"] = feed1Zip

	tt1, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)

	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(feeds))

	stop, ok := tt1.Stops.ByExternalId("s")
	require.True(t, ok)
	assert.Equal(t, "S", stop.Name)

	// Replace the feed data served. Refreshing immediately won't
	// pick it up -- too little time has passed for the default
	// refresh interval.
	server.Feeds["/static.zip"] = feed2Zip
	require.NoError(t, m.Refresh(context.Background()))

	tt2, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)
	_, ok = tt2.Stops.ByExternalId("s")
	require.True(t, ok)
	assert.Equal(t, []string{"/static.zip"}, server.Requests)

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(feeds))

	// With a near-zero refresh interval, the next Refresh treats
	// existing data as stale and re-fetches.
	m.RefreshInterval = time.Duration(0)
	require.NoError(t, m.Refresh(context.Background()))
	tt3, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)
	_, ok = tt3.Stops.ByExternalId("s2")
	require.True(t, ok)
	assert.Equal(t, []string{"/static.zip", "/static.zip"}, server.Requests)

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, len(feeds))
}

// A feed broken past its active calendar window should surface
// ErrNoActiveFeed, not a parse error -- broken dates, not broken data.
func TestManagerNoActiveFeed(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	server.Feeds["/static.zip"] = buildZip(t, validFeed())

	s := storage.NewMemoryStorage()
	m := NewManager(s)

	farFuture := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := m.Load(server.Server.URL+"/static.zip", farFuture)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveFeed))
}

// Requesting a new URL with LoadAsync() returns ErrNoActiveFeed and
// leaves a marker record for a later Refresh() to retrieve.
func TestManagerAsyncLoad(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	server.Feeds["/static.zip"] = buildZip(t, validFeed())

	s := storage.NewMemoryStorage()
	m := NewManager(s)

	_, err := m.LoadAsync(server.Server.URL+"/static.zip", whenActive)
	assert.True(t, errors.Is(err, ErrNoActiveFeed))

	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, len(feeds))
	assert.Equal(t, server.Server.URL+"/static.zip", feeds[0].URL)
	assert.Equal(t, "", feeds[0].Hash)

	// A second async request doesn't add another marker record.
	_, err = m.LoadAsync(server.Server.URL+"/static.zip", whenActive)
	assert.True(t, errors.Is(err, ErrNoActiveFeed))
	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(feeds))

	require.NoError(t, m.Refresh(context.Background()))

	tt, err := m.LoadAsync(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)
	_, ok := tt.Stops.ByExternalId("s")
	require.True(t, ok)
}

// A feed that fails to parse, with no earlier feed for its URL, makes
// Load fail and leaves no metadata behind, so a later Load fetches the
// URL again and picks up the fixed data.
func TestManagerBrokenData(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()

	badZip := buildZip(t, map[string][]string{"parse": {"fail"}})
	server.Feeds["/static.zip"] = badZip

	s := storage.NewMemoryStorage()
	m := NewManager(s)

	_, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.Error(t, err)

	feeds, err := s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, len(feeds))

	goodZip := buildZip(t, validFeed())
	server.Feeds["/static.zip"] = goodZip

	tt, err := m.Load(server.Server.URL+"/static.zip", whenActive)
	require.NoError(t, err)
	_, ok := tt.Stops.ByExternalId("s")
	require.True(t, ok)

	feeds, err = s.ListFeeds(storage.ListFeedsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(feeds))
}
