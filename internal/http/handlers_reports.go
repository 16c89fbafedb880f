package http

import (
	"net/http"

	"stacksight/internal/core"
	applog "stacksight/internal/log"
	"stacksight/internal/storage"
)

const (
	viewLatest = "latest"
	viewAll    = "all"
)

type tablesPage struct {
	Username string
	View     string
	Accounts []string
	Selected []string
	Rows     []core.BalanceRow
}

// handleTables lists balances: the newest per account, or the full history
// with view=all. htmx requests get only the table fragment.
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)
	query := r.URL.Query()
	selected := ParseSelection(query)

	view := query.Get("view")
	if view != viewAll {
		view = viewLatest
	}

	var (
		rows []core.BalanceRow
		err  error
	)
	if view == viewAll {
		rows, err = s.svc.AllBalances(r.Context(), username, selected)
	} else {
		rows, err = s.svc.LatestBalances(r.Context(), username, selected)
	}
	if err != nil {
		status, msg := statusFor(err)
		logFailure(r, status, applog.OpRead, err)
		http.Error(w, msg, status)
		return
	}

	page := tablesPage{Username: username, View: view, Selected: selected, Rows: rows}
	if isHTMX(r) {
		s.render(w, r, http.StatusOK, "balances-table", page)
		return
	}
	if page.Accounts, err = s.svc.Accounts(r.Context(), username); err != nil {
		status, msg := statusFor(err)
		logFailure(r, status, applog.OpList, err)
		http.Error(w, msg, status)
		return
	}
	s.render(w, r, http.StatusOK, "tables.html", page)
}

type chartsPage struct {
	Username   string
	Accounts   []string
	Dimensions []storage.Dimension
}

func (s *Server) handleChartsPage(w http.ResponseWriter, r *http.Request) {
	username := currentUser(r)
	accounts, err := s.svc.Accounts(r.Context(), username)
	if err != nil {
		status, msg := statusFor(err)
		logFailure(r, status, applog.OpList, err)
		http.Error(w, msg, status)
		return
	}
	s.render(w, r, http.StatusOK, "charts.html", chartsPage{
		Username:   username,
		Accounts:   accounts,
		Dimensions: storage.Dimensions(),
	})
}

type seriesResponse struct {
	Series []core.Series `json:"series"`
}

func (s *Server) handleSeparatedChart(w http.ResponseWriter, r *http.Request) {
	series, err := s.svc.SeparatedChart(r.Context(), currentUser(r), ParseSelection(r.URL.Query()))
	if err != nil {
		writeAPIError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{Series: nonNilSeries(series)})
}

// handleCombinedChart sums the selection per month; by= splits the sum by
// one of storage.Dimensions.
func (s *Server) handleCombinedChart(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	series, err := s.svc.CombinedChart(r.Context(), currentUser(r), ParseSelection(query), query.Get("by"))
	if err != nil {
		writeAPIError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{Series: nonNilSeries(series)})
}

func nonNilSeries(s []core.Series) []core.Series {
	if s == nil {
		return []core.Series{}
	}
	return s
}
