package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"

	appLog "groupsched/internal/log"
	"groupsched/internal/model"
	"groupsched/internal/schedule"
	"groupsched/internal/view"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

type pages struct {
	tmpl *template.Template
}

func mustParsePages() *pages {
	tmpl := template.Must(template.ParseFS(embeddedTemplates, "templates/*.html"))
	return &pages{tmpl: tmpl}
}

// pageData is shared by all HTML pages.
type pageData struct {
	CSRF    template.HTML
	State   model.NavigationState
	Today   model.Date
	Error   string
	Loading bool
	Markers bool

	Table *view.Table
	Month *view.Month

	NoSessionsDay   string
	NoSessionsMonth string
}

func (p *pages) render(w http.ResponseWriter, status int, name string, data pageData) {
	// Render into a buffer so a template error does not leave half a page.
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleIndex shows the group form, the day table or the month calendar.
// ?date=YYYY-MM-DD jumps to that date first. ?view=table|calendar renders
// that view for the anchor without changing the saved mode.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	if raw := q.Get("date"); raw != "" && s.nav.State().Group != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid date: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.nav.GoTo(ctx, d)
	}

	v := s.nav.View()
	data := pageData{
		CSRF:    csrf.TemplateField(r),
		State:   v.State,
		Today:   s.today(),
		Error:   v.Error,
		Loading: v.Loading,
		Markers: s.markers != nil,

		NoSessionsDay:   view.NoSessionsDay,
		NoSessionsMonth: view.NoSessionsMonth,
	}

	if v.State.Group == "" {
		s.pages.render(w, http.StatusOK, "group.html", data)
		return
	}

	mode := v.State.Mode
	entries := v.Entries
	if raw := q.Get("view"); raw != "" {
		m, err := model.ParseViewMode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if m != mode {
			mode = m
			entries = s.entriesFor(ctx, &data, mode)
		}
	}

	if mode == model.ViewCalendar {
		var marked []int
		if s.markers != nil {
			var err error
			marked, err = s.markers.Markers(ctx, v.State.Group, v.State.Anchor)
			if err != nil {
				appLog.Error("failed to load day markers", err, "group", v.State.Group)
			}
		}
		month, err := view.MonthGrid(entries, v.State.Anchor, view.WeekStart(s.cfg.WeekStart), marked, data.Today)
		if err != nil {
			appLog.Error("failed to build month grid", err, "anchor", v.State.Anchor.String())
			http.Error(w, "failed to build calendar", http.StatusInternalServerError)
			return
		}
		data.Month = &month
		s.pages.render(w, http.StatusOK, "calendar.html", data)
		return
	}

	table := view.DayTable(entries, v.State.Anchor)
	data.Table = &table
	s.pages.render(w, http.StatusOK, "table.html", data)
}

// entriesFor loads what mode needs at the current anchor straight through the
// coordinator, leaving the navigation state alone.
func (s *Server) entriesFor(ctx context.Context, data *pageData, mode model.ViewMode) []model.ScheduleEntry {
	st := data.State
	p := s.nav.Policy()
	visible := p.VisibleRange(mode, st.Anchor)
	if !s.coord.Covered(visible) {
		iv := p.RangeFor(mode, st.Anchor)
		_, err := s.coord.RequestRange(ctx, st.Group, iv)
		switch {
		case err == nil:
		case errors.Is(err, schedule.ErrInFlight):
			data.Loading = true
		default:
			appLog.Error("schedule load failed", err, "group", st.Group, "range", iv.String())
			data.Error = schedule.UserMessage(err)
		}
	}
	entries := s.coord.EntriesIn(visible)
	schedule.SortChronological(entries)
	return entries
}

func (s *Server) handleGroupForm(w http.ResponseWriter, r *http.Request) {
	if err := s.nav.SelectGroup(r.Context(), r.PostFormValue("group")); err != nil {
		s.pages.render(w, http.StatusBadRequest, "group.html", pageData{
			CSRF:  csrf.TemplateField(r),
			State: s.nav.State(),
			Error: groupFormError(err),
		})
		return
	}
	redirectHome(w, r)
}

func groupFormError(err error) string {
	if errors.Is(err, schedule.ErrEmptyGroup) {
		return "Введите номер группы"
	}
	return err.Error()
}

func (s *Server) handleChangeGroupForm(w http.ResponseWriter, r *http.Request) {
	s.nav.ChangeGroup()
	redirectHome(w, r)
}

// handleNavigateForm accepts step (signed int) with optional unit, date, or
// today=1.
func (s *Server) handleNavigateForm(w http.ResponseWriter, r *http.Request) {
	req := navigateRequest{
		Date:  r.PostFormValue("date"),
		Today: r.PostFormValue("today") != "",
		Unit:  r.PostFormValue("unit"),
	}
	if raw := r.PostFormValue("step"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid step", http.StatusBadRequest)
			return
		}
		req.Step = n
	}
	if err := s.navigate(r.Context(), req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleToggleForm(w http.ResponseWriter, r *http.Request) {
	s.nav.Toggle(r.Context())
	redirectHome(w, r)
}

func (s *Server) handleMarkerForm(w http.ResponseWriter, r *http.Request) {
	if s.markers == nil {
		http.NotFound(w, r)
		return
	}
	st := s.nav.State()
	if st.Group == "" {
		redirectHome(w, r)
		return
	}
	day, err := strconv.Atoi(r.PostFormValue("day"))
	if err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	if _, err := s.markers.ToggleMarker(r.Context(), st.Group, st.Anchor, day); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleReloadForm(w http.ResponseWriter, r *http.Request) {
	if err := s.nav.Reload(r.Context()); err != nil {
		appLog.Error("reload failed", err)
	}
	redirectHome(w, r)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
