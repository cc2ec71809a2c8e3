package billing

import "github.com/shopspring/decimal"

// Fixed rates. These are business constants of the source system, not
// runtime configuration.
var (
	vatRate       = decimal.NewFromFloat(0.21)
	surchargeRate = decimal.NewFromFloat(0.05)
	unitFee       = decimal.NewFromFloat(1.50)
)

// Totals holds the derived monetary figures for one record or a sum of them.
type Totals struct {
	Base      decimal.Decimal `json:"base"`
	Surcharge decimal.Decimal `json:"plus"`
	VAT       decimal.Decimal `json:"iva"`
	UnitFee   decimal.Decimal `json:"importeUnidades"`
	Net       decimal.Decimal `json:"liquido"`
	Gross     decimal.Decimal `json:"totalConIVA"`
}

// Compute derives the totals for a single record-like input. It never fails:
// a negative or unset base and a negative unit count pass through as given;
// rejecting them is the caller's concern.
func Compute(base decimal.Decimal, hasSurcharge bool, units int) Totals {
	surcharge := decimal.Zero
	if hasSurcharge {
		surcharge = base.Mul(surchargeRate)
	}
	vat := base.Mul(vatRate)
	fee := unitFee.Mul(decimal.NewFromInt(int64(units)))
	net := base.Add(surcharge).Add(fee)
	return Totals{
		Base:      base,
		Surcharge: surcharge,
		VAT:       vat,
		UnitFee:   fee,
		Net:       net,
		Gross:     net.Add(vat),
	}
}

// ComputeRecord derives the totals for a work record.
func ComputeRecord(r WorkRecord) Totals {
	return Compute(r.Base, r.HasSurcharge, r.Units)
}

// Add returns the field-wise sum of two Totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Base:      t.Base.Add(o.Base),
		Surcharge: t.Surcharge.Add(o.Surcharge),
		VAT:       t.VAT.Add(o.VAT),
		UnitFee:   t.UnitFee.Add(o.UnitFee),
		Net:       t.Net.Add(o.Net),
		Gross:     t.Gross.Add(o.Gross),
	}
}

// Equal reports field-wise equality ignoring exponent representation.
func (t Totals) Equal(o Totals) bool {
	return t.Base.Equal(o.Base) &&
		t.Surcharge.Equal(o.Surcharge) &&
		t.VAT.Equal(o.VAT) &&
		t.UnitFee.Equal(o.UnitFee) &&
		t.Net.Equal(o.Net) &&
		t.Gross.Equal(o.Gross)
}
