package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"venuecal/internal/apperr"
	"venuecal/internal/config"
	"venuecal/internal/ics"
	appLog "venuecal/internal/log"
	"venuecal/internal/view"
)

const (
	viewWeek   = "week"
	viewAgenda = "agenda"

	msgVenueNotFound   = "Venue configuration not found."
	msgFeedUnavailable = "Could not load the event calendar right now."
	msgInternal        = "Something went wrong."
)

// handleIndex keeps the old query contract: /?pub=<id>&view=agenda.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("pub")
	if id == "" {
		id = q.Get("venue")
	}
	if id == "" {
		id = s.cfg.DefaultVenue
	}
	v := viewWeek
	if q.Get("view") == viewAgenda {
		v = viewAgenda
	}
	http.Redirect(w, r, "/venues/"+url.PathEscape(id)+"/"+v, http.StatusFound)
}

func (s *Server) handleVenueIndex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	http.Redirect(w, r, "/venues/"+url.PathEscape(id)+"/"+viewWeek, http.StatusFound)
}

func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	feed, week, err := s.svc.Week(r.Context(), id, s.clock.Now())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderPage(w, viewWeek, pageData{
		Title: feed.Venue.Name + " – " + week.Label,
		View:  viewWeek,
		Venue: newVenueDTO(feed.ID, feed.Venue),
		Week:  &week,
	})
}

func (s *Server) handleAgendaPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	feed, agenda, err := s.svc.Agenda(r.Context(), id, s.clock.Now())
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderPage(w, viewAgenda, pageData{
		Title:  feed.Venue.Name + " – Upcoming",
		View:   viewAgenda,
		Venue:  newVenueDTO(feed.ID, feed.Venue),
		Agenda: &agenda,
	})
}

// handleLogo serves a venue logo stored next to the registry file.
func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	venues := s.svc.Venues()
	venue, err := venues.Lookup(id)
	if err != nil || venue.Logo == "" || ics.IsHTTPURL(venue.Logo) {
		http.NotFound(w, r)
		return
	}
	path := venue.Logo
	if !filepath.IsAbs(path) {
		path = filepath.Join(venues.Dir(), filepath.FromSlash(path))
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleVenues(w http.ResponseWriter, _ *http.Request) {
	venues := s.svc.Venues()
	out := make([]venueDTO, 0, len(venues.Entries))
	for _, id := range venues.IDs() {
		out = append(out, newVenueDTO(id, venues.Entries[id]))
	}
	writeJSON(w, http.StatusOK, venuesResponse{Venues: out, Default: s.cfg.DefaultVenue})
}

func (s *Server) handleWeekJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	feed, week, err := s.svc.Week(r.Context(), id, s.clock.Now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.countRender(viewWeek, "json")
	writeJSON(w, http.StatusOK, weekResponse{
		Venue:    newVenueDTO(feed.ID, feed.Venue),
		Label:    week.Label,
		Start:    week.Range.Start,
		End:      week.Range.End,
		Empty:    week.Empty,
		Days:     newDayDTOs(week.Days),
		Timezone: s.svc.Location().String(),
	})
}

func (s *Server) handleAgendaJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	feed, agenda, err := s.svc.Agenda(r.Context(), id, s.clock.Now())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.countRender(viewAgenda, "json")
	writeJSON(w, http.StatusOK, agendaResponse{
		Venue:    newVenueDTO(feed.ID, feed.Venue),
		Empty:    agenda.Empty,
		Days:     newDayDTOs(agenda.Days),
		Timezone: s.svc.Location().String(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "venue")
	feed, err := s.svc.Load(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.countRender("events", "ics")
	body := ics.Export(feed.Venue.Name, feed.Events, s.clock.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+id+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	s.countRender(name, "html")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	status, _, msg := classify(err)
	var buf bytes.Buffer
	if tplErr := s.pages.ExecuteTemplate(&buf, "error", errorPage{Title: http.StatusText(status), Message: msg}); tplErr != nil {
		appLog.Error("error page render failed", tplErr)
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status, code, msg := classify(err)
	writeError(w, status, code, msg)
}

// classify maps service errors to an HTTP status, a stable error code and
// the message shown to visitors.
func classify(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, apperr.ErrVenueNotFound):
		return http.StatusNotFound, "venue_not_found", msgVenueNotFound
	case errors.Is(err, apperr.ErrFeedUnavailable):
		return http.StatusBadGateway, "feed_unavailable", msgFeedUnavailable
	default:
		return http.StatusInternalServerError, "internal", msgInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	type errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	writeJSON(w, status, errResp{Error: msg, Code: code})
}

type pageData struct {
	Title  string
	View   string
	Venue  venueDTO
	Week   *view.Week
	Agenda *view.Agenda
}

type errorPage struct {
	Title   string
	Message string
}

type venueDTO struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	LogoURL string        `json:"logo_url,omitempty"`
	Colors  config.Colors `json:"colors"`
}

func newVenueDTO(id string, v config.Venue) venueDTO {
	dto := venueDTO{ID: id, Name: v.Name, Colors: v.Colors}
	switch {
	case v.Logo == "":
	case ics.IsHTTPURL(v.Logo):
		dto.LogoURL = v.Logo
	default:
		dto.LogoURL = "/venues/" + url.PathEscape(id) + "/logo"
	}
	return dto
}

type venuesResponse struct {
	Venues  []venueDTO `json:"venues"`
	Default string     `json:"default"`
}

type eventDTO struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      bool       `json:"all_day"`
	Time        string     `json:"time"`
}

type dayDTO struct {
	Date   string     `json:"date"`
	Label  string     `json:"label"`
	Events []eventDTO `json:"events"`
}

func newDayDTOs(days []view.Day) []dayDTO {
	out := make([]dayDTO, 0, len(days))
	for _, d := range days {
		dto := dayDTO{
			Date:   d.Date.Format(time.DateOnly),
			Label:  d.Label,
			Events: make([]eventDTO, 0, len(d.Items)),
		}
		for _, it := range d.Items {
			ev := eventDTO{
				Title:       it.Event.Title,
				Description: it.Event.Description,
				Location:    it.Event.Location,
				Start:       it.Event.Start,
				AllDay:      it.Event.AllDay,
				Time:        it.TimeLabel,
			}
			if it.Event.HasEnd() {
				end := it.Event.End
				ev.End = &end
			}
			dto.Events = append(dto.Events, ev)
		}
		out = append(out, dto)
	}
	return out
}

type weekResponse struct {
	Venue    venueDTO  `json:"venue"`
	Label    string    `json:"label"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Empty    bool      `json:"empty"`
	Days     []dayDTO  `json:"days"`
	Timezone string    `json:"timezone"`
}

type agendaResponse struct {
	Venue    venueDTO `json:"venue"`
	Empty    bool     `json:"empty"`
	Days     []dayDTO `json:"days"`
	Timezone string   `json:"timezone"`
}
