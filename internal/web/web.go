package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"groupsched/internal/auth"
	"groupsched/internal/config"
	appLog "groupsched/internal/log"
	"groupsched/internal/model"
	"groupsched/internal/schedule"
)

// MarkerStore keeps the user's day markers for the calendar view.
type MarkerStore interface {
	Markers(ctx context.Context, group string, month model.Date) ([]int, error)
	ToggleMarker(ctx context.Context, group string, month model.Date, day int) ([]int, error)
}

// Server provides the HTML pages and the JSON API for one browsing session.
type Server struct {
	cfg     *config.Config
	debug   bool
	mux     *http.ServeMux
	nav     *schedule.Navigator
	coord   *schedule.Coordinator
	markers MarkerStore
	pages   *pages
}

// NewServer constructs a new Server. markers may be nil, which disables the
// marker endpoints.
func NewServer(cfg *config.Config, nav *schedule.Navigator, coord *schedule.Coordinator, markers MarkerStore, debug bool) *Server {
	s := &Server{
		cfg:     cfg,
		debug:   debug,
		mux:     http.NewServeMux(),
		nav:     nav,
		coord:   coord,
		markers: markers,
		pages:   mustParsePages(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if key := s.csrfKey(); key != nil {
		appLog.Info("CSRF protection enabled for form posts")
		h = csrfMiddleware(key)(h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if s.debug {
		h = logRequests(h)
	}
	return h
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one line per request in debug mode.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started).Round(time.Microsecond),
		)
	})
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /group", s.handleGroupForm)
	s.mux.HandleFunc("POST /change-group", s.handleChangeGroupForm)
	s.mux.HandleFunc("POST /navigate", s.handleNavigateForm)
	s.mux.HandleFunc("POST /toggle", s.handleToggleForm)
	s.mux.HandleFunc("POST /markers", s.handleMarkerForm)
	s.mux.HandleFunc("POST /reload", s.handleReloadForm)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleICS)
	s.mux.HandleFunc("POST /api/group", s.handleSelectGroup)
	s.mux.HandleFunc("DELETE /api/group", s.handleChangeGroup)
	s.mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/view", s.handleView)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.HandleFunc("GET /api/markers", s.handleMarkers)
	s.mux.HandleFunc("POST /api/markers", s.handleToggleMarker)

	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured calendar snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	// http.ServeFile answers 404 for a snapshot that was never taken.
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	ba := s.cfg.BasicAuth
	// An empty username or no password at all means disabled.
	return ba.Username != "" && (ba.Password != "" || ba.PasswordHash != "")
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	ba := *s.cfg.BasicAuth

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !auth.SecureCompare(u, ba.Username) || !checkPassword(ba, p) {
			w.Header().Set("WWW-Authenticate", `Basic realm="groupsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkPassword prefers the Argon2id hash over the plaintext password.
func checkPassword(ba config.BasicAuthConfig, password string) bool {
	if ba.PasswordHash != "" {
		ok, err := auth.VerifyPassword(password, ba.PasswordHash)
		if err != nil {
			appLog.Error("basic auth: bad password_hash in config", err)
			return false
		}
		return ok
	}
	return auth.SecureCompare(password, ba.Password)
}

func (s *Server) csrfKey() []byte {
	if s.cfg == nil || s.cfg.CSRFKey == "" {
		return nil
	}
	key := []byte(s.cfg.CSRFKey)
	if len(key) != 32 {
		appLog.Error("csrf_key ignored", errors.New("key must be 32 bytes"), "len", len(key))
		return nil
	}
	return key
}

// csrfMiddleware protects HTML form posts. JSON API requests
// (Content-Type: application/json) are exempt.
func csrfMiddleware(authKey []byte) func(http.Handler) http.Handler {
	protect := csrf.Protect(
		authKey,
		csrf.Secure(false),
		csrf.Path("/"),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				next.ServeHTTP(w, r)
				return
			}
			if r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (s *Server) today() model.Date {
	return model.Today(s.nav.Location())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeScheduleError maps coordinator and navigator errors to HTTP statuses.
func writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrEmptyGroup),
		errors.Is(err, schedule.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrNoGroup),
		errors.Is(err, schedule.ErrGroupMismatch),
		errors.Is(err, schedule.ErrInFlight),
		errors.Is(err, schedule.ErrStale):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrInvalidResponse),
		errors.Is(err, schedule.ErrNetworkFailure):
		writeError(w, http.StatusBadGateway, schedule.UserMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
