package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Request fields are parsed by name so a bad value surfaces as a validation
// error on that field, e.g. {"field":"work_date","code":"invalid_work_date"}.

func fieldError(field string) error {
	return newValidationError(field, "invalid_"+field, "invalid "+field)
}

func boolField(field, value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, fieldError(field)
	}
	return &parsed, nil
}

// decimalField parses money and hour amounts. Nil means the field was omitted.
func decimalField(field, value string) (*decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fieldError(field)
	}
	return &parsed, nil
}

func requiredDecimalField(field, value string) (decimal.Decimal, error) {
	parsed, err := decimalField(field, value)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if parsed == nil {
		return decimal.Decimal{}, fieldError(field)
	}
	return *parsed, nil
}

// dateField accepts a calendar date or an RFC3339 timestamp and returns the UTC date at midnight.
func dateField(field, value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if parsed, err := time.Parse(time.DateOnly, trimmed); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fieldError(field)
	}
	y, m, d := parsed.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func optionalDateField(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := dateField(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// rangeBound parses a filter bound. A bare date is widened to the whole day
// when it closes the range, so `to=2026-01-31` includes entries on the 31st.
func rangeBound(field, value string, closing bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	day, err := time.Parse(time.DateOnly, trimmed)
	if err != nil {
		return nil, fieldError(field)
	}
	if closing {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
