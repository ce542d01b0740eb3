package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"groupsched/internal/ics"
	appLog "groupsched/internal/log"
	"groupsched/internal/model"
	"groupsched/internal/schedule"
)

// stateResponse is the JSON response shape for /api/state.
type stateResponse struct {
	schedule.View
	Today     model.Date `json:"today"`
	WeekStart string     `json:"week_start"`
	Timezone  string     `json:"timezone"`
	DayWindow struct {
		Back  int `json:"back"`
		Ahead int `json:"ahead"`
	} `json:"day_window"`
}

// rangeResponse is the JSON response shape for /api/schedule?start=&end=.
type rangeResponse struct {
	Group   string                `json:"group"`
	Range   model.Interval        `json:"range"`
	Entries []model.ScheduleEntry `json:"entries"`
}

type groupRequest struct {
	Group string `json:"group"`
}

// navigateRequest moves the anchor. Date wins over Today, Today over a step.
type navigateRequest struct {
	Date  string `json:"date,omitempty"`
	Today bool   `json:"today,omitempty"`
	Unit  string `json:"unit,omitempty"`
	Step  int    `json:"step,omitempty"`
}

type viewRequest struct {
	// Mode is "table" or "calendar"; empty toggles.
	Mode string `json:"mode"`
}

type markerRequest struct {
	Month string `json:"month,omitempty"`
	Day   int    `json:"day"`
}

type markersResponse struct {
	Group string `json:"group"`
	Month string `json:"month"`
	Days  []int  `json:"days"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		View:      s.nav.View(),
		Today:     s.today(),
		WeekStart: s.cfg.WeekStart,
		Timezone:  s.nav.Location().String(),
	}
	p := s.nav.Policy()
	resp.DayWindow.Back, resp.DayWindow.Ahead = p.Back, p.Ahead
	writeJSON(w, http.StatusOK, resp)
}

// handleSchedule returns the current view's entries, or, with start and end
// (YYYY-MM-DD), requests that range for the selected group.
//
// GET /api/schedule
// GET /api/schedule?start=2024-03-01&end=2024-03-31
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		writeJSON(w, http.StatusOK, s.nav.View())
		return
	}

	iv, err := parseInterval(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group := s.nav.State().Group
	if group == "" {
		writeScheduleError(w, schedule.ErrNoGroup)
		return
	}

	entries, err := s.coord.RequestRange(r.Context(), group, iv)
	if err != nil {
		if !errors.Is(err, schedule.ErrInFlight) {
			appLog.Error("api schedule: request failed", err, "group", group, "range", iv.String())
		}
		writeScheduleError(w, err)
		return
	}
	schedule.SortChronological(entries)
	writeJSON(w, http.StatusOK, rangeResponse{Group: group, Range: iv, Entries: entries})
}

// handleICS exports everything loaded for the current group.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	group := s.nav.State().Group
	if group == "" {
		writeScheduleError(w, schedule.ErrNoGroup)
		return
	}
	body := ics.Export(group, s.coord.Entries(), s.nav.Location())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "schedule.ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleSelectGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.nav.SelectGroup(r.Context(), req.Group); err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nav.View())
}

func (s *Server) handleChangeGroup(w http.ResponseWriter, _ *http.Request) {
	s.nav.ChangeGroup()
	writeJSON(w, http.StatusOK, s.nav.View())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.navigate(r.Context(), req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.nav.View())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mode == "" {
		s.nav.Toggle(r.Context())
	} else {
		mode, err := model.ParseViewMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.nav.SetMode(r.Context(), mode)
	}
	writeJSON(w, http.StatusOK, s.nav.View())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.nav.Reload(r.Context()); err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.nav.View())
}

// handleMarkers lists the marked days of a month.
//
// GET /api/markers?month=2024-03-01 (any date in the month; default: anchor)
func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	if s.markers == nil {
		writeError(w, http.StatusNotFound, "markers are disabled")
		return
	}
	st := s.nav.State()
	if st.Group == "" {
		writeScheduleError(w, schedule.ErrNoGroup)
		return
	}
	month, err := dateOr(r.URL.Query().Get("month"), st.Anchor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := s.markers.Markers(r.Context(), st.Group, month)
	if err != nil {
		appLog.Error("api markers: load failed", err, "group", st.Group)
		writeError(w, http.StatusInternalServerError, "failed to load markers")
		return
	}
	writeJSON(w, http.StatusOK, markersResponse{Group: st.Group, Month: month.MonthKey(), Days: days})
}

func (s *Server) handleToggleMarker(w http.ResponseWriter, r *http.Request) {
	if s.markers == nil {
		writeError(w, http.StatusNotFound, "markers are disabled")
		return
	}
	var req markerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st := s.nav.State()
	if st.Group == "" {
		writeScheduleError(w, schedule.ErrNoGroup)
		return
	}
	month, err := dateOr(req.Month, st.Anchor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := s.markers.ToggleMarker(r.Context(), st.Group, month, req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, markersResponse{Group: st.Group, Month: month.MonthKey(), Days: days})
}

// navigate applies req to the navigator; shared by the form and JSON handlers.
func (s *Server) navigate(ctx context.Context, req navigateRequest) error {
	switch {
	case req.Date != "":
		d, err := model.ParseDate(req.Date)
		if err != nil {
			return err
		}
		s.nav.GoTo(ctx, d)
	case req.Today:
		s.nav.GoTo(ctx, s.today())
	default:
		if req.Step == 0 {
			return errors.New("step must not be zero")
		}
		unit := schedule.DefaultUnit(s.nav.State().Mode)
		if req.Unit != "" {
			u, err := schedule.ParseStepUnit(req.Unit)
			if err != nil {
				return err
			}
			unit = u
		}
		s.nav.Step(ctx, unit, req.Step)
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseInterval(start, end string) (model.Interval, error) {
	from, err := model.ParseDate(start)
	if err != nil {
		return model.Interval{}, fmt.Errorf("start: %w", err)
	}
	to, err := model.ParseDate(end)
	if err != nil {
		return model.Interval{}, fmt.Errorf("end: %w", err)
	}
	return model.NewInterval(from, to)
}

func dateOr(s string, def model.Date) (model.Date, error) {
	if s == "" {
		return def, nil
	}
	return model.ParseDate(s)
}
