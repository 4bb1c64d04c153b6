// Package calendar ties a venue registry to feed retrieval and parsing. The
// web server and the terminal commands both go through Service.
package calendar

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"venuecal/internal/config"
	"venuecal/internal/ics"
	appLog "venuecal/internal/log"
	"venuecal/internal/metrics"
	"venuecal/internal/model"
	"venuecal/internal/view"
)

// Feed is one venue with its freshly parsed events.
type Feed struct {
	ID        string
	Venue     config.Venue
	Events    []model.Event
	Dropped   int
	FromCache bool
}

// Service loads venue feeds. The registry can be swapped at runtime with
// SetVenues or Reload; requests in flight keep the registry they started
// with.
type Service struct {
	venues  atomic.Pointer[config.Venues]
	fetcher *ics.Fetcher
	metrics *metrics.Metrics
	loc     *time.Location
}

// NewService creates a Service. m may be nil; loc nil means time.Local.
func NewService(venues *config.Venues, fetcher *ics.Fetcher, m *metrics.Metrics, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{fetcher: fetcher, metrics: m, loc: loc}
	s.venues.Store(venues)
	return s
}

// Venues returns the current registry.
func (s *Service) Venues() *config.Venues {
	return s.venues.Load()
}

// SetVenues replaces the registry.
func (s *Service) SetVenues(v *config.Venues) {
	s.venues.Store(v)
}

// Reload re-reads the registry from its file. On error the previous
// registry stays active.
func (s *Service) Reload() error {
	current := s.venues.Load()
	next, err := config.LoadVenues(current.Path)
	if err != nil {
		return err
	}
	s.venues.Store(next)
	appLog.Info("venue registry reloaded", "path", next.Path, "venues", len(next.Entries))
	return nil
}

// Location is the display zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Load retrieves and parses the feed of venue id. Errors wrap
// apperr.ErrVenueNotFound or apperr.ErrFeedUnavailable.
func (s *Service) Load(ctx context.Context, id string) (Feed, error) {
	venues := s.venues.Load()
	venue, err := venues.Lookup(id)
	if err != nil {
		return Feed{}, err
	}

	src := ics.Source{ID: id, URL: venues.ResolveFeed(venue)}
	res, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		s.countFetch(id, metrics.ResultError)
		appLog.Error("feed retrieval failed", err, "venue", id, "url", ics.RedactURL(src.URL))
		return Feed{}, err
	}
	if res.FromCache {
		s.countFetch(id, metrics.ResultCached)
	} else {
		s.countFetch(id, metrics.ResultOK)
	}

	parsed := ics.Parse(res.Body, s.loc)
	if parsed.Dropped > 0 {
		appLog.Warn("feed entries dropped", "venue", id, "dropped", parsed.Dropped)
	}
	if s.metrics != nil {
		s.metrics.FeedEvents.WithLabelValues(id).Set(float64(len(parsed.Events)))
		s.metrics.DroppedEvents.WithLabelValues(id).Add(float64(parsed.Dropped))
	}
	appLog.Debug("feed parsed", "venue", id, "events", len(parsed.Events), "from_cache", res.FromCache)

	return Feed{
		ID:        id,
		Venue:     venue,
		Events:    parsed.Events,
		Dropped:   parsed.Dropped,
		FromCache: res.FromCache,
	}, nil
}

// Week loads venue id and lays out the week containing now.
func (s *Service) Week(ctx context.Context, id string, now time.Time) (Feed, view.Week, error) {
	feed, err := s.Load(ctx, id)
	if err != nil {
		return Feed{}, view.Week{}, err
	}
	return feed, view.BuildWeek(feed.Events, now.In(s.loc)), nil
}

// Agenda loads venue id and lays out the sidebar agenda starting at now.
func (s *Service) Agenda(ctx context.Context, id string, now time.Time) (Feed, view.Agenda, error) {
	feed, err := s.Load(ctx, id)
	if err != nil {
		return Feed{}, view.Agenda{}, err
	}
	return feed, view.BuildAgenda(feed.Events, now.In(s.loc)), nil
}

func (s *Service) countFetch(id, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.FeedFetches.WithLabelValues(id, result).Inc()
}

// SummaryLine is a short human description of a feed, used by the CLI.
func (f Feed) SummaryLine() string {
	line := f.Venue.Name + ": " + strconv.Itoa(len(f.Events)) + " events"
	if f.Dropped > 0 {
		line += ", " + strconv.Itoa(f.Dropped) + " dropped"
	}
	if f.FromCache {
		line += " (cached)"
	}
	return line
}
