package core

import "time"

// BalanceRow is one line of the balances tables.
type BalanceRow struct {
	AccountNumber string
	Company       string
	CompanyType   string
	Plan          string
	Path          string
	Amount        Money
	Period        time.Time
}

// SeriesPoint is an amount at the start of a period.
type SeriesPoint struct {
	Date   time.Time `json:"date"`
	Amount Money     `json:"amount"`
}

// Series is a named line of a chart. Name is empty for combined charts
// that are not split by any dimension.
type Series struct {
	Name   string        `json:"name"`
	Points []SeriesPoint `json:"points"`
}

// Lookups bundles the reference data offered when registering an account.
type Lookups struct {
	Companies []string `json:"companies"`
	Plans     []string `json:"plans"`
	Paths     []string `json:"paths"`
}
