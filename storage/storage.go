package storage

import (
	"time"

	"github.com/barmettlerl/minotor-sub000/model"
)

type Storage interface {
	// Retrieves all feed metadata records matching the given
	// filter.
	ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error)

	// Writes a FeedMetadata record. If a record with the same URL
	// and hash exists, it is updated.
	WriteFeedMetadata(metadata *FeedMetadata) error

	// Retrieves all feed requests matching the given URL. If the
	// URL is blank, all requests are returned.
	ListFeedRequests(url string) ([]FeedRequest, error)

	// Writes a FeedRequest record. If a record with the same URL
	// exists, it is updated. All consumers included in the
	// request will be created/updated. Missing consumers will
	// _not_ be removed.
	WriteFeedRequest(req FeedRequest) error

	// Gets a reader for the feed with the given hash.
	GetReader(hash string) (FeedReader, error)

	// Gets a writer for the feed with the given hash.
	GetWriter(hash string) (FeedWriter, error)
}

type ListFeedsFilter struct {
	// If set, only include feeds with the given URL.
	URL string

	// If set, only include feeds with the given hash.
	Hash string
}

// A request to download a static GTFS feed at the given URL. The same
// URL can be requested by multiple consumers of the data, possibly
// with different HTTP headers holding API keys.
type FeedRequest struct {
	URL         string
	RefreshedAt time.Time
	Consumers   []FeedConsumer
}

type FeedConsumer struct {
	Name      string
	Headers   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata for a downloaded static GTFS feed. The parsed data can be
// accessed via FeedReader.
type FeedMetadata struct {
	URL               string
	Hash              string
	RetrievedAt       time.Time
	Timezone          string
	CalendarStartDate string
	CalendarEndDate   string
	MaxArrival        string
	MaxDeparture      string
}

// Writes GTFS records for a single feed.
//
// As stop_times.txt tends to be very large, BeginStopTimes() and
// EndStopTimes() are called before and after all calls to
// WriteStopTime(), allowing transactions/batching/whathaveyou.
type FeedWriter interface {
	WriteAgency(agency model.Agency) error
	WriteStop(stop model.Stop) error
	WriteRoute(route model.Route) error
	WriteTrip(trip model.Trip) error
	BeginTrips() error
	EndTrips() error
	WriteCalendar(cal model.Calendar) error
	WriteCalendarDate(caldate model.CalendarDate) error
	WriteStopTime(stopTime model.StopTime) error
	BeginStopTimes() error
	EndStopTimes() error
	WriteTransfer(transfer model.Transfer) error
	Close() error
}

// Reads back GTFS records for a single feed, in the shape
// timetable.Build compacts into the router's dense tables.
type FeedReader interface {
	Agencies() ([]model.Agency, error)
	Stops() ([]model.Stop, error)
	Routes() ([]model.Route, error)
	Trips() ([]model.Trip, error)
	StopTimes() ([]model.StopTime, error)
	Calendars() ([]model.Calendar, error)
	CalendarDates() ([]model.CalendarDate, error)
	Transfers() ([]model.Transfer, error)

	// Services IDs for all services active on the given
	// date. Date is given as YYYYMMDD.
	ActiveServices(date string) ([]string, error)

	// Map from trip_id to [min, max] stop_sequence for that trip,
	// as per stop_times. This is useful for filtering out first
	// or last stops of a trip.
	MinMaxStopSeq() (map[string][2]uint32, error)
}
