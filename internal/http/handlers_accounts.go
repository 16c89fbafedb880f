package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stacksight/internal/core"
	applog "stacksight/internal/log"
	"stacksight/internal/services"
)

type insertPage struct {
	Username string
	Accounts []string
	Lookups  core.Lookups
	Year     int
	Month    int
	Months   []int
}

// handleInsertPage renders the account and balance forms.
func (s *Server) handleInsertPage(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)

	lookups, err := s.svc.Lookups(r.Context())
	if err != nil {
		status, msg := statusFor(err)
		logFailure(r, status, applog.OpRead, err)
		http.Error(w, msg, status)
		return
	}
	accounts, err := s.svc.Accounts(r.Context(), username)
	if err != nil {
		status, msg := statusFor(err)
		logFailure(r, status, applog.OpList, err)
		http.Error(w, msg, status)
		return
	}

	now := time.Now()
	s.render(w, r, http.StatusOK, "insert.html", insertPage{
		Username: username,
		Accounts: accounts,
		Lookups:  lookups,
		Year:     now.Year(),
		Month:    int(now.Month()),
		Months:   []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}

	in := services.AccountInput{
		Number:  body.Get("account_num"),
		Company: body.Get("company"),
		Plan:    body.Get("plan"),
		Path:    body.Get("path"),
	}
	if err := s.svc.AddAccount(r.Context(), currentUser(r), in); err != nil {
		writeFormError(w, r, applog.OpCreate, err)
		return
	}

	msg := fmt.Sprintf("Account %s added", in.Number)
	SuccessResponse(http.StatusCreated, msg).
		TriggerAccountCreated(in.Number).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		Write(w)
}

func (s *Server) handleRecordUpdate(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}

	year, month := ParsePeriodParams(body.Get, time.Now())
	in := services.UpdateInput{
		AccountNumber: body.Get("account_num"),
		Year:          year,
		Month:         month,
		Amount:        body.Get("amount"),
	}
	update, err := s.svc.RecordUpdate(r.Context(), currentUser(r), in)
	if err != nil {
		writeFormError(w, r, applog.OpUpsert, err)
		return
	}

	msg := fmt.Sprintf("Balance of %s for %s saved: %s", update.AccountNumber, update.Period, update.Amount)
	SuccessResponse(http.StatusOK, msg).
		TriggerBalanceRecorded(update.AccountNumber, update.Period.String()).
		TriggerSuccessNotification(msg).
		Write(w)
}

type accountInfoResponse struct {
	AccountNumber string `json:"account_num"`
	Company       string `json:"company"`
	Plan          string `json:"plan"`
	Path          string `json:"path"`
	CompanyLink   string `json:"company_link"`
}

func (s *Server) handleAccountInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.AccountInfo(r.Context(), currentUser(r), chi.URLParam(r, "num"))
	if err != nil {
		writeAPIError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, accountInfoResponse{
		AccountNumber: info.Number,
		Company:       info.Company,
		Plan:          info.Plan,
		Path:          info.Path,
		CompanyLink:   info.CompanyLink,
	})
}

func (s *Server) handleLookups(w http.ResponseWriter, r *http.Request) {
	lookups, err := s.svc.Lookups(r.Context())
	if err != nil {
		writeAPIError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, lookups)
}
