// Package calculator computes pay amounts with exact decimal arithmetic.
package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	rateScale      = 2
	hoursScale     = 2
	deductionScale = 4
)

var (
	ErrNegativeRate  = errors.New("negative_hourly_rate")
	ErrNegativeHours = errors.New("negative_hours")
	ErrDeductionRate = errors.New("invalid_deduction_rate")
)

// Amounts is the outcome of one pay computation.
type Amounts struct {
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	TotalHours decimal.Decimal `json:"total_hours"`
	GrossPay   decimal.Decimal `json:"gross_pay"`
	Deductions decimal.Decimal `json:"deductions"`
	NetPay     decimal.Decimal `json:"net_pay"`
}

// Compute returns gross = rate * hours, deductions = gross * deductionRate and
// net = gross - deductions. Rate and hours are held at two places, so gross is
// exact at four; deductions are rounded to four places and net is derived from
// them, which keeps net + deductions == gross for every result.
func Compute(rate, hours, deductionRate decimal.Decimal) (Amounts, error) {
	if rate.IsNegative() {
		return Amounts{}, ErrNegativeRate
	}
	if hours.IsNegative() {
		return Amounts{}, ErrNegativeHours
	}
	if deductionRate.IsNegative() || deductionRate.GreaterThan(decimal.NewFromInt(1)) {
		return Amounts{}, ErrDeductionRate
	}

	rate = rate.Round(rateScale)
	hours = hours.Round(hoursScale)
	gross := rate.Mul(hours)
	deductions := gross.Mul(deductionRate).Round(deductionScale)

	return Amounts{
		HourlyRate: rate,
		TotalHours: hours,
		GrossPay:   gross,
		Deductions: deductions,
		NetPay:     gross.Sub(deductions),
	}, nil
}

// ResolveRate picks the employee rate when present, else the fallback.
func ResolveRate(rate decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if rate.Valid {
		return rate.Decimal
	}
	return fallback
}
