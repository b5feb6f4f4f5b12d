package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeObservedPolicy(t *testing.T) {
	amounts, err := Compute(d("25"), d("40"), d("0.10"))
	require.NoError(t, err)

	assert.True(t, amounts.GrossPay.Equal(d("1000")))
	assert.True(t, amounts.Deductions.Equal(d("100")))
	assert.True(t, amounts.NetPay.Equal(d("900")))
}

func TestComputeIdentitiesHold(t *testing.T) {
	cases := []struct {
		rate, hours, deduction string
	}{
		{"33.33", "17.75", "0.10"},
		{"19.99", "0.01", "0.075"},
		{"120", "163.5", "0.3333"},
		{"0", "40", "0.10"},
		{"42.5", "0", "0.10"},
		{"15.555", "7.125", "0.1"},
	}
	for _, tc := range cases {
		amounts, err := Compute(d(tc.rate), d(tc.hours), d(tc.deduction))
		require.NoError(t, err)

		assert.True(t, amounts.GrossPay.Equal(amounts.HourlyRate.Mul(amounts.TotalHours)), "gross for %+v", tc)
		assert.True(t, amounts.NetPay.Equal(amounts.GrossPay.Sub(amounts.Deductions)), "net for %+v", tc)
		assert.True(t, amounts.GrossPay.Equal(amounts.GrossPay.Round(4)), "gross scale for %+v", tc)
		assert.True(t, amounts.Deductions.Equal(amounts.Deductions.Round(4)), "deduction scale for %+v", tc)
	}
}

func TestComputeRoundsInputs(t *testing.T) {
	amounts, err := Compute(d("15.555"), d("7.125"), d("0.1"))
	require.NoError(t, err)
	assert.True(t, amounts.HourlyRate.Equal(d("15.56")))
	assert.True(t, amounts.TotalHours.Equal(d("7.13")))
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	_, err := Compute(d("-1"), d("1"), d("0.1"))
	assert.ErrorIs(t, err, ErrNegativeRate)

	_, err = Compute(d("1"), d("-1"), d("0.1"))
	assert.ErrorIs(t, err, ErrNegativeHours)

	_, err = Compute(d("1"), d("1"), d("1.5"))
	assert.ErrorIs(t, err, ErrDeductionRate)
}

func TestResolveRate(t *testing.T) {
	fallback := d("25")
	assert.True(t, ResolveRate(decimal.NullDecimal{}, fallback).Equal(fallback))
	assert.True(t, ResolveRate(decimal.NewNullDecimal(d("31.5")), fallback).Equal(d("31.5")))
}
