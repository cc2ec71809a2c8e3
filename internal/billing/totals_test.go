package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSurchargedRecord(t *testing.T) {
	got := Compute(dec("1000"), true, 0)

	require.True(t, got.Base.Equal(dec("1000")))
	require.True(t, got.Surcharge.Equal(dec("50")))
	require.True(t, got.VAT.Equal(dec("210")))
	require.True(t, got.UnitFee.Equal(dec("0")))
	require.True(t, got.Net.Equal(dec("1050")))
	require.True(t, got.Gross.Equal(dec("1260")))
}

func TestComputeUnitFeeRecord(t *testing.T) {
	got := Compute(dec("500"), false, 10)

	require.True(t, got.Surcharge.IsZero())
	require.True(t, got.VAT.Equal(dec("105")))
	require.True(t, got.UnitFee.Equal(dec("15")))
	require.True(t, got.Net.Equal(dec("515")))
	require.True(t, got.Gross.Equal(dec("620")))
}

func TestComputeGrossIdentity(t *testing.T) {
	cases := []struct {
		base         string
		hasSurcharge bool
		units        int
	}{
		{"0", false, 0},
		{"0", true, 7},
		{"99.99", false, 0},
		{"1234.56", true, 3},
		{"100000", true, 450},
	}
	for _, tc := range cases {
		base := dec(tc.base)
		got := Compute(base, tc.hasSurcharge, tc.units)

		surcharge := decimal.Zero
		if tc.hasSurcharge {
			surcharge = base.Mul(dec("0.05"))
		}
		want := base.Mul(dec("1.21")).
			Add(surcharge).
			Add(dec("1.50").Mul(decimal.NewFromInt(int64(tc.units))))
		require.True(t, got.Gross.Equal(want), "base=%s surcharge=%v units=%d: got %s want %s",
			tc.base, tc.hasSurcharge, tc.units, got.Gross, want)
	}
}

func TestComputeNeverRejects(t *testing.T) {
	// Negative input passes through; validation happens at the service
	// boundary, not here.
	got := Compute(dec("-10"), true, 0)
	require.True(t, got.Base.Equal(dec("-10")))
	require.True(t, got.Surcharge.Equal(dec("-0.5")))

	zero := Compute(decimal.Decimal{}, false, 0)
	require.True(t, zero.Gross.IsZero())
}

func TestTotalsAdd(t *testing.T) {
	a := Compute(dec("1000"), true, 0)
	b := Compute(dec("500"), false, 10)
	sum := a.Add(b)

	require.True(t, sum.Base.Equal(dec("1500")))
	require.True(t, sum.Surcharge.Equal(dec("50")))
	require.True(t, sum.UnitFee.Equal(dec("15")))
	require.True(t, sum.VAT.Equal(dec("315")))
	require.True(t, sum.Net.Equal(dec("1565")))
	require.True(t, sum.Gross.Equal(dec("1880")))
}
