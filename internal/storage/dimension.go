package storage

import (
	"errors"
	"fmt"
)

var ErrUnknownDimension = errors.New("unknown dimension")

// Dimension is a label the combined chart can be split by. Only labels in
// dimensionColumns ever reach SQL, and they map to fixed expressions.
type Dimension string

const (
	DimensionNone        Dimension = ""
	DimensionAccount     Dimension = "account"
	DimensionCompany     Dimension = "company"
	DimensionCompanyType Dimension = "company_type"
	DimensionPlan        Dimension = "plan"
	DimensionPath        Dimension = "path"
)

var dimensionColumns = map[Dimension]string{
	DimensionAccount:     "accounts.account_num",
	DimensionCompany:     "companies.company_t",
	DimensionCompanyType: "company_types.ctype_t",
	DimensionPlan:        "financial_plans.plan_t",
	DimensionPath:        "paths.fin_path_t",
}

// Dimensions lists the labels accepted by ParseDimension, besides the empty one.
func Dimensions() []Dimension {
	return []Dimension{DimensionAccount, DimensionCompany, DimensionCompanyType, DimensionPlan, DimensionPath}
}

// ParseDimension validates a user-supplied label. The empty string means no split.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if d == DimensionNone {
		return d, nil
	}
	if _, ok := dimensionColumns[d]; !ok {
		return DimensionNone, fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

func (d Dimension) column() (string, error) {
	col, ok := dimensionColumns[d]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, string(d))
	}
	return col, nil
}

func (d Dimension) String() string {
	if d == DimensionNone {
		return "none"
	}
	return string(d)
}
