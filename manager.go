package minotor

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/barmettlerl/minotor-sub000/downloader"
	"github.com/barmettlerl/minotor-sub000/parse"
	"github.com/barmettlerl/minotor-sub000/storage"
	"github.com/barmettlerl/minotor-sub000/timetable"
)

const DefaultStaticRefreshInterval = 12 * time.Hour

const staticDownloadTimeout = 60 * time.Second

var ErrNoActiveFeed = errors.New("no active feed found")

// Manager manages GTFS feeds: downloading, staging, and compacting them
// into router-ready Timetables.
type Manager struct {
	RefreshInterval time.Duration
	Downloader      downloader.Downloader
	storage         storage.Storage
}

func NewManager(storage storage.Storage) *Manager {
	return &Manager{
		storage:         storage,
		RefreshInterval: DefaultStaticRefreshInterval,
		Downloader:      downloader.NewMemory(),
	}
}

// Timetable bundles the compacted Stops/Timetable pair built for one
// feed's reference service date, along with the metadata it was built
// from, ready to hand to router.New.
type Timetable struct {
	Metadata *storage.FeedMetadata
	Stops    *timetable.Stops
	Table    *timetable.Timetable
}

// LoadAsync loads GTFS data for a URL.
//
// If a feed is available in storage, and active at the given time, it
// is returned immediately. Otherwise, ErrNoActiveFeed is returned.
//
// If the URL is previously unseen, a marker is left in storage for a
// later call to Refresh() to retrieve it.
func (m *Manager) LoadAsync(url string, when time.Time) (*Timetable, error) {
	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{URL: url})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	if len(feeds) == 0 {
		fmt.Println("No feeds found. Adding record to request it.")
		err = m.storage.WriteFeedMetadata(&storage.FeedMetadata{URL: url})
		if err != nil {
			return nil, fmt.Errorf("writing feed metadata: %w", err)
		}
		return nil, ErrNoActiveFeed
	}

	return m.loadMostRecentActive(feeds, when)
}

// Load loads GTFS data for a URL.
//
// If the URL is previously unseen, it is retrieved immediately.
//
// If no feed is active at the given time, ErrNoActiveFeed is returned.
func (m *Manager) Load(url string, when time.Time) (*Timetable, error) {
	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{URL: url})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.Before(feeds[j].RetrievedAt)
	})

	if len(feeds) == 0 {
		metadata, err := m.refreshStatic(url)
		if err != nil {
			return nil, fmt.Errorf("refreshing static: %w", err)
		}

		err = m.storage.WriteFeedMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}

		feeds = []*storage.FeedMetadata{metadata}
	}

	return m.loadMostRecentActive(feeds, when)
}

// Refresh refreshes any feeds that might need refreshing.
func (m *Manager) Refresh(ctx context.Context) error {
	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{})
	if err != nil {
		return fmt.Errorf("listing feeds: %w", err)
	}
	feedsByURL := make(map[string][]*storage.FeedMetadata)
	for _, feed := range feeds {
		feedsByURL[feed.URL] = append(feedsByURL[feed.URL], feed)
	}

	for url, feeds := range feedsByURL {
		err = m.refreshFeeds(url, feeds)
		if err != nil {
			return fmt.Errorf("refreshing %s: %w", url, err)
		}
	}

	return nil
}

func (m *Manager) refreshFeeds(url string, feeds []*storage.FeedMetadata) error {
	// A lone record with a blank hash is an outstanding async
	// request for retrieval, left behind by LoadAsync.
	if len(feeds) == 1 && feeds[0].Hash == "" {
		fmt.Printf("Refreshing async %s\n", url)
		metadata, err := m.refreshStatic(url)
		if err != nil {
			return fmt.Errorf("refreshing static at %s: %w", url, err)
		}

		return m.storage.WriteFeedMetadata(metadata)
	}

	fmt.Printf("Refreshing existing %s\n", url)

	// If the most recently retrieved feed is outdated, it's
	// refresh time.
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[j].RetrievedAt.Before(feeds[i].RetrievedAt)
	})
	if !feeds[0].RetrievedAt.IsZero() && feeds[0].RetrievedAt.Add(m.RefreshInterval).Before(time.Now()) {
		metadata, err := m.refreshStatic(url)
		if err != nil {
			return fmt.Errorf("refreshing static at %s: %w", url, err)
		}

		err = m.storage.WriteFeedMetadata(metadata)
		if err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
	}

	return nil
}

// refreshStatic downloads and parses a static feed from a URL, returning
// the feed metadata. The feed may already be in storage from a previous
// refresh, in which case only a new URL association is recorded.
func (m *Manager) refreshStatic(url string) (*storage.FeedMetadata, error) {
	body, err := m.Downloader.Get(context.Background(), url, nil, downloader.GetOptions{
		Timeout: staticDownloadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(body))

	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	if len(feeds) > 0 {
		for _, feed := range feeds {
			if feed.URL != url {
				// Found, but from a different URL. Add a
				// record for this URL so future lookups
				// can find it.
				feed.URL = url
				err = m.storage.WriteFeedMetadata(feed)
				if err != nil {
					return nil, fmt.Errorf("writing metadata: %w", err)
				}
				return feed, nil
			}
		}

		// Found, and from the same URL already.
		return feeds[0], nil
	}

	// Feed is brand new to us. Parse and write to storage.
	writer, err := m.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}
	defer writer.Close()

	metadata, err := parse.ParseStatic(writer, body)
	if err != nil {
		// Parse failure is special. If something fails to parse
		// now, there's no reason to retry soon. Instead, treat
		// it as if the data simply hasn't been updated.
		feeds, listErr := m.storage.ListFeeds(storage.ListFeedsFilter{URL: url})
		if listErr != nil {
			return nil, fmt.Errorf("listing feeds: %w", listErr)
		}
		if len(feeds) > 0 {
			sort.Slice(feeds, func(i, j int) bool {
				return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
			})
			return feeds[0], nil
		}

		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	metadata.Hash = hash
	metadata.URL = url
	metadata.RetrievedAt = time.Now()

	return metadata, nil
}

func feedActive(feed *storage.FeedMetadata, now time.Time) (bool, error) {
	feedTz, err := time.LoadLocation(feed.Timezone)
	if err != nil {
		return false, fmt.Errorf("loading timezone: %w", err)
	}

	nowThere := now.In(feedTz)
	todayThere := time.Date(
		nowThere.Year(),
		nowThere.Month(),
		nowThere.Day(),
		0, 0, 0, 0,
		feedTz,
	).Format("20060102")

	if feed.CalendarStartDate > todayThere {
		return false, nil
	}
	if feed.CalendarEndDate < todayThere {
		return false, nil
	}

	return true, nil
}

// loadMostRecentActive selects the most recently retrieved feed from
// feeds that is also active at the given time, and compacts it into a
// Timetable for that time's service date.
func (m *Manager) loadMostRecentActive(feeds []*storage.FeedMetadata, when time.Time) (*Timetable, error) {
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.Before(feeds[j].RetrievedAt)
	})

	for i := len(feeds) - 1; i >= 0; i-- {
		fmt.Printf("Considering feed %s %s\n", feeds[i].URL, feeds[i].Hash)

		ok, err := feedActive(feeds[i], when)
		if err != nil {
			return nil, fmt.Errorf("checking if feed is active: %w", err)
		}
		if !ok {
			fmt.Printf("Feed %s is not active\n", feeds[i].URL)
			continue
		}

		return m.buildTimetable(feeds[i], when)
	}

	return nil, ErrNoActiveFeed
}

// buildTimetable reads back the staged feed and compacts it into a
// Timetable for the service date corresponding to "when" in the feed's
// own timezone.
func (m *Manager) buildTimetable(feed *storage.FeedMetadata, when time.Time) (*Timetable, error) {
	reader, err := m.storage.GetReader(feed.Hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	feedTz, err := time.LoadLocation(feed.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	serviceDate := when.In(feedTz).Format("20060102")

	stops, tt, err := timetable.Build(reader, serviceDate)
	if err != nil {
		return nil, fmt.Errorf("building timetable: %w", err)
	}

	return &Timetable{Metadata: feed, Stops: stops, Table: tt}, nil
}
