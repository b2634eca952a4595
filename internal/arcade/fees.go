package arcade

import "github.com/shopspring/decimal"

// FeeCalculator returns the current economy fees. Values are
// time-insensitive.
type FeeCalculator interface {
	InstallationFee() decimal.Decimal
	// DismantleFee is the amount owed in currency c when c is the currency
	// chosen for the dismantle.
	DismantleFee(c Currency) decimal.Decimal
}

type StaticFees struct {
	Installation   decimal.Decimal
	DismantleTeras decimal.Decimal
	DismantleAkv   decimal.Decimal
}

func (f StaticFees) InstallationFee() decimal.Decimal { return f.Installation }

func (f StaticFees) DismantleFee(c Currency) decimal.Decimal {
	switch c {
	case CurrencyTeras:
		return f.DismantleTeras
	case CurrencyAkv:
		return f.DismantleAkv
	default:
		return decimal.Zero
	}
}
