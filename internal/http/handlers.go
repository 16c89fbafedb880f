package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	applog "stacksight/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports 503 until the database answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "database": "not_configured"}
	status := http.StatusOK

	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", s.trace.Total())
	metric("suspicious_requests_total", "counter", "Requests matching a probing pattern", s.detector.Suspicious())
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", s.limiter.ActiveClients())
	if s.opts.LookupCache != nil {
		st := s.opts.LookupCache.Stats()
		metric("lookup_cache_hits_total", "counter", "Lookup cache hits", st.Hits)
		metric("lookup_cache_misses_total", "counter", "Lookup cache misses", st.Misses)
		metric("lookup_cache_entries", "gauge", "Lookup cache entries", st.Entries)
	}
	metric("uptime_seconds", "gauge", "Seconds since start", int64(time.Since(s.started).Seconds()))
}

type homePage struct {
	Username string
	Accounts []string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		s.render(w, r, http.StatusOK, "home.html", homePage{})
		return
	}

	accounts, err := s.svc.Accounts(r.Context(), sess.Username)
	if err != nil {
		status, _ := statusFor(err)
		logFailure(r, status, applog.OpList, err)
	}
	s.render(w, r, http.StatusOK, "home.html", homePage{Username: sess.Username, Accounts: accounts})
}
