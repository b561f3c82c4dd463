package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/barmettlerl/minotor-sub000/model"
)

// In memory implementation of Storage below

type memoryMetadataKey struct {
	URL  string
	Hash string
}

type memoryRequestKey struct {
	URL      string
	Consumer string
}

type MemoryStorage struct {
	Feeds    map[string]*MemoryStorageFeed
	Metadata map[memoryMetadataKey]*FeedMetadata
	Requests map[memoryRequestKey]FeedRequest
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:    map[string]*MemoryStorageFeed{},
		Metadata: map[memoryMetadataKey]*FeedMetadata{},
		Requests: map[memoryRequestKey]FeedRequest{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	feeds := []*FeedMetadata{}
	for _, metadata := range s.Metadata {
		if filter.URL != "" && metadata.URL != filter.URL {
			continue
		}
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		feeds = append(feeds, metadata)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) ListFeedRequests(url string) ([]FeedRequest, error) {
	reqs := []FeedRequest{}

	for _, req := range s.Requests {
		if url != "" && req.URL != url {
			continue
		}
		reqs = append(reqs, req)
	}

	return reqs, nil
}

func (s *MemoryStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	s.Metadata[memoryMetadataKey{feed.URL, feed.Hash}] = feed
	return nil
}

func (s *MemoryStorage) WriteFeedRequest(req FeedRequest) error {
	s.Requests[memoryRequestKey{req.URL, ""}] = req
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (FeedReader, error) {
	f, ok := s.Feeds[hash]
	if !ok {
		return nil, fmt.Errorf("feed not found: %s", hash)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(hash string) (FeedWriter, error) {
	f := &MemoryStorageFeed{
		calendar:        map[string]model.Calendar{},
		calendarDate:    map[string][]model.CalendarDate{},
		routes:          map[string]model.Route{},
		agency:          map[string]model.Agency{},
		stops:           map[string]model.Stop{},
		stopsByParent:   map[string][]string{},
		trips:           map[string]model.Trip{},
		stopTimesByTrip: map[string][]model.StopTime{},
		transfers:       []model.Transfer{},
		minMaxStopSeq:   map[string][2]uint32{},
	}

	s.Feeds[hash] = f

	return f, nil
}

// MemoryStorageFeed is the staging area for one ingested feed: raw GTFS
// rows keyed the way the feed referenced them, kept around until
// timetable.Build compacts them into the router's dense tables.
type MemoryStorageFeed struct {
	calendar        map[string]model.Calendar
	calendarDate    map[string][]model.CalendarDate
	routes          map[string]model.Route
	agency          map[string]model.Agency
	stops           map[string]model.Stop
	stopsByParent   map[string][]string
	trips           map[string]model.Trip
	stopTimesByTrip map[string][]model.StopTime
	transfers       []model.Transfer
	minMaxStopSeq   map[string][2]uint32
}

func (f *MemoryStorageFeed) WriteAgency(agency model.Agency) error {
	f.agency[agency.ID] = agency
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop model.Stop) error {
	f.stops[stop.ID] = stop
	if stop.ParentStation != "" {
		f.stopsByParent[stop.ParentStation] = append(f.stopsByParent[stop.ParentStation], stop.ID)
	}
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error {
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime model.StopTime) error {
	f.stopTimesByTrip[stopTime.TripID] = append(f.stopTimesByTrip[stopTime.TripID], stopTime)

	mms, found := f.minMaxStopSeq[stopTime.TripID]
	if !found {
		f.minMaxStopSeq[stopTime.TripID] = [2]uint32{stopTime.StopSequence, stopTime.StopSequence}
	} else {
		if stopTime.StopSequence < mms[0] {
			mms[0] = stopTime.StopSequence
		}
		if stopTime.StopSequence > mms[1] {
			mms[1] = stopTime.StopSequence
		}
		f.minMaxStopSeq[stopTime.TripID] = mms
	}

	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	for tripID, sts := range f.stopTimesByTrip {
		sort.Slice(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
		f.stopTimesByTrip[tripID] = sts
	}
	return nil
}

func (f *MemoryStorageFeed) WriteCalendar(row model.Calendar) error {
	f.calendar[row.ServiceID] = row
	return nil
}

func (f *MemoryStorageFeed) WriteCalendarDate(row model.CalendarDate) error {
	f.calendarDate[row.ServiceID] = append(f.calendarDate[row.ServiceID], row)
	return nil
}

func (f *MemoryStorageFeed) WriteTransfer(transfer model.Transfer) error {
	f.transfers = append(f.transfers, transfer)
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Agencies() ([]model.Agency, error) {
	agencies := []model.Agency{}
	for _, v := range f.agency {
		agencies = append(agencies, v)
	}
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]model.Stop, error) {
	stops := []model.Stop{}
	for _, v := range f.stops {
		stops = append(stops, v)
	}
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]model.Route, error) {
	routes := []model.Route{}
	for _, v := range f.routes {
		routes = append(routes, v)
	}
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]model.Trip, error) {
	trips := []model.Trip{}
	for _, v := range f.trips {
		trips = append(trips, v)
	}
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]model.StopTime, error) {
	stoptimes := []model.StopTime{}
	for _, v := range f.stopTimesByTrip {
		stoptimes = append(stoptimes, v...)
	}
	return stoptimes, nil
}

func (f *MemoryStorageFeed) Calendars() ([]model.Calendar, error) {
	cals := []model.Calendar{}
	for _, v := range f.calendar {
		cals = append(cals, v)
	}
	return cals, nil
}

func (f *MemoryStorageFeed) CalendarDates() ([]model.CalendarDate, error) {
	cds := []model.CalendarDate{}
	for _, v := range f.calendarDate {
		cds = append(cds, v...)
	}
	return cds, nil
}

func (f *MemoryStorageFeed) Transfers() ([]model.Transfer, error) {
	return f.transfers, nil
}

func (f *MemoryStorageFeed) ActiveServices(date string) ([]string, error) {
	services := map[string]bool{}

	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	for _, calendar := range f.calendar {
		if calendar.Weekday&(1<<parsedDate.Weekday()) == 0 {
			continue
		}
		if calendar.StartDate > date {
			continue
		}
		if calendar.EndDate < date {
			continue
		}
		services[calendar.ServiceID] = true
	}

	for _, cds := range f.calendarDate {
		for _, cd := range cds {
			if cd.Date == date {
				if cd.ExceptionType == 1 {
					services[cd.ServiceID] = true
				} else if cd.ExceptionType == 2 {
					services[cd.ServiceID] = false
				}
			}
		}
	}

	activeServices := []string{}
	for serviceID, active := range services {
		if active {
			activeServices = append(activeServices, serviceID)
		}
	}

	return activeServices, nil
}

func (f *MemoryStorageFeed) MinMaxStopSeq() (map[string][2]uint32, error) {
	return f.minMaxStopSeq, nil
}
