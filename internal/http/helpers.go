package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"stacksight/internal/core"
	"stacksight/internal/db"
	applog "stacksight/internal/log"
	"stacksight/internal/storage"
)

// fieldMessages are shown for validation failures.
var fieldMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyUsername, "Username is required"},
	{core.ErrEmptyPassword, "Password is required"},
	{core.ErrEmptyEmail, "Email is required"},
	{core.ErrInvalidEmail, "Email address is not valid"},
	{core.ErrEmptyAccountNumber, "Account number is required"},
	{core.ErrEmptyCompany, "Company is required"},
	{core.ErrEmptyPlan, "Financial plan is required"},
	{core.ErrEmptyPath, "Financial path is required"},
	{core.ErrInvalidPeriod, "Period must be a month between 2000 and now"},
	{core.ErrInvalidAmount, "Amount must be a number between 0 and 99,999,999.99"},
	{core.ErrFieldTooLong, "A field is too long"},
	{storage.ErrUnknownDimension, "Unknown chart grouping"},
	{db.ErrForeignKey, "Unknown company, plan or path"},
	{db.ErrDataFormat, "Invalid value for company, plan or path"},
}

// statusFor maps a service error to the HTTP status and the message shown
// to the user. Unexpected errors never leak their text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, core.ErrAccountExists):
		return http.StatusConflict, "Account number already exists"
	case errors.Is(err, db.ErrUniqueViolation):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, core.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, db.ErrDataFormat), errors.Is(err, db.ErrForeignKey):
		for _, fm := range fieldMessages {
			if errors.Is(err, fm.err) {
				return http.StatusUnprocessableEntity, fm.msg
			}
		}
		return http.StatusUnprocessableEntity, "Invalid input"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The request took too long"
	default:
		return http.StatusInternalServerError, "Something went wrong, please retry"
	}
}

// logFailure logs server-side failures; client errors are expected traffic.
func logFailure(r *http.Request, status int, op string, err error) {
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithUsername(currentUser(r)))
		return
	}
	fields := applog.NewFields().WithOperation(op).WithError(err)
	logger.InfoContext(r.Context(), "Request rejected", append(fields.ToSlice(), applog.FieldStatusCode, status)...)
}

// writeFormError answers an htmx form post.
func writeFormError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logFailure(r, status, op, err)
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// writeAPIError answers a JSON API call.
func writeAPIError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logFailure(r, status, op, err)
	writeJSONError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
