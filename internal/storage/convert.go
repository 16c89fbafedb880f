package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stacksight/internal/core"
)

// Drivers disagree on the Go types they return: pgx hands back numeric as
// text, SQLite stores it as INTEGER or REAL and may return dates as text.

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asMoney(v any) (core.Money, error) {
	switch t := v.(type) {
	case nil:
		return core.Money{}, nil
	case int64:
		return core.NewMoney(decimal.NewFromInt(t)), nil
	case float64:
		return core.NewMoney(decimal.NewFromFloat(t)), nil
	case decimal.Decimal:
		return core.NewMoney(t), nil
	case string, []byte:
		d, err := decimal.NewFromString(asString(t))
		if err != nil {
			return core.Money{}, fmt.Errorf("parse amount %q: %w", asString(t), err)
		}
		return core.NewMoney(d), nil
	default:
		return core.Money{}, fmt.Errorf("unexpected amount type %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case string, []byte:
		s := asString(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("parse date %q", s)
	default:
		return time.Time{}, fmt.Errorf("unexpected date type %T", v)
	}
}
