package http

import (
	"net/http"

	applog "stacksight/internal/log"
)

type authPage struct {
	Username string
	Error    string
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := SessionFromContext(r.Context()); ok {
		redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", authPage{})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := SessionFromContext(r.Context()); ok {
		redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "login.html", authPage{})
}

// handleSignup creates the user and logs them straight in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}
	username := body.Get("username")

	if err := s.svc.SignUp(r.Context(), username, body.Raw("password"), body.Get("email")); err != nil {
		writeFormError(w, r, applog.OpSignUp, err)
		return
	}
	if err := s.startSession(w, username); err != nil {
		writeFormError(w, r, applog.OpSignUp, err)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}

	username, err := s.svc.Login(r.Context(), body.Get("username"), body.Raw("password"))
	if err != nil {
		writeFormError(w, r, applog.OpLogin, err)
		return
	}
	if err := s.startSession(w, username); err != nil {
		writeFormError(w, r, applog.OpLogin, err)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	redirect(w, r, "/login")
}
