package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"stacksight/internal/auth"
	applog "stacksight/internal/log"
)

const sessionCookie = "stacksight_session"

type sessionKey struct{}

// SessionFromContext returns the session resolved for the request, if any.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(auth.Session)
	return sess, ok
}

// loadSession resolves the session cookie. A bad or expired token is
// cleared and the request continues anonymously.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Verify(c.Value)
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
				DebugContext(r.Context(), "Discarding session cookie", applog.FieldError, err)
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		logger := applog.FromContext(ctx).With(applog.FieldUsername, sess.Username)
		ctx = applog.WithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser sends anonymous visitors to the login page. API callers get
// a 401 instead of a redirect.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSONError(w, http.StatusUnauthorized, "login required")
			return
		}
		redirect(w, r, "/login")
	})
}

func (s *Server) startSession(w http.ResponseWriter, username string) error {
	token, sess, err := s.sessions.Issue(username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUser is only called behind requireUser.
func currentUser(r *http.Request) string {
	sess, _ := SessionFromContext(r.Context())
	return sess.Username
}

// redirect navigates the browser, through HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
