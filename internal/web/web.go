package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"mbtalerts/internal/calendar"
	"mbtalerts/internal/config"
	appLog "mbtalerts/internal/log"
	"mbtalerts/internal/model"
	"mbtalerts/internal/reconcile"
)

// Server exposes the daemon's health, the outcome of recent sync passes
// and a preview of what the current feed would produce.
type Server struct {
	cfg    *config.Config
	state  *State
	source reconcile.AlertSource
	rec    *reconcile.Reconciler
	mux    *http.ServeMux

	// In-memory cache for /api/alerts so page reloads do not hit the feed.
	alertsMu    sync.RWMutex
	alertsCache *alertsCache
}

// NewServer constructs a new Server. source may be nil, in which case
// /api/alerts reports 503.
func NewServer(cfg *config.Config, state *State, source reconcile.AlertSource, rec *reconcile.Reconciler) *Server {
	s := &Server{
		cfg:    cfg,
		state:  state,
		source: source,
		rec:    rec,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Status.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.Status.BasicAuth
	if ba == nil {
		return false
	}
	// Empty username or password disables auth.
	return ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.Status.BasicAuth.Username
	password := s.cfg.Status.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="mbtalerts", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on cfg.Status.Listen until ctx is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Status.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Status.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// alertsResponse is the JSON response shape for /api/alerts.
type alertsResponse struct {
	Alerts      []alertDTO `json:"alerts"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// alertDTO is an alert as it would be written to the calendar.
type alertDTO struct {
	ID      string             `json:"id"`
	Line    string             `json:"line"`
	Effect  string             `json:"effect"`
	Skipped bool               `json:"skipped"`
	Summary string             `json:"summary"`
	Start   calendar.EventTime `json:"start"`
	End     calendar.EventTime `json:"end"`
}

// alertsCache holds a cached /api/alerts response and its timestamp.
type alertsCache struct {
	resp      alertsResponse
	updatedAt time.Time
}

// handleAlerts previews the calendar events the current feed maps to.
//
// GET /api/alerts
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "alert source unavailable")
		return
	}

	const alertsCacheTTL = 30 * time.Second
	now := time.Now()

	s.alertsMu.RLock()
	ac := s.alertsCache
	s.alertsMu.RUnlock()
	if ac != nil && now.Sub(ac.updatedAt) < alertsCacheTTL {
		writeJSON(w, http.StatusOK, ac.resp)
		return
	}

	alerts, err := s.source.Alerts(r.Context())
	if err != nil {
		appLog.Error("api alerts: fetch failed", err)
		writeError(w, http.StatusBadGateway, "failed to fetch alerts")
		return
	}

	resp := alertsResponse{Alerts: make([]alertDTO, 0, len(alerts)), GeneratedAt: now}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, s.toDTO(a))
	}

	s.alertsMu.Lock()
	s.alertsCache = &alertsCache{resp: resp, updatedAt: now}
	s.alertsMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) toDTO(a model.Alert) alertDTO {
	p := s.rec.Mapper.ToEvent(a)
	return alertDTO{
		ID:      a.ID,
		Line:    model.LineName(a),
		Effect:  a.Effect,
		Skipped: s.rec.Skips(a.Effect),
		Summary: p.Summary,
		Start:   p.Start,
		End:     p.End,
	}
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
