package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrPricingInvalid signals invalid monetary inputs or a computation that
// produced an out-of-range result.
var ErrPricingInvalid = errors.New("pricing: invalid input")

var oneHundred = decimal.NewFromInt(100)

// PricingLineInput carries the raw values needed to price a single line.
type PricingLineInput struct {
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// PricedLine holds the derived monetary values for one line.
type PricedLine struct {
	LineTotal      decimal.Decimal
	DiscountAmount decimal.Decimal
}

// SaleTotals aggregates the priced lines with the header-level amounts.
type SaleTotals struct {
	Lines       []PricedLine
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// PriceSale computes line totals, the subtotal net of line discounts, the tax
// amount, and the final total. All arithmetic is exact decimal; rounding to
// two places happens only when amounts are persisted or rendered.
//
// A header discount exceeding subtotal plus tax yields a negative total, which
// is rejected rather than clamped: it is a data-entry mistake.
func PriceSale(lines []PricingLineInput, taxRate, headerDiscount decimal.Decimal) (SaleTotals, error) {
	if len(lines) == 0 {
		return SaleTotals{}, fmt.Errorf("%w: at least one line is required", ErrPricingInvalid)
	}
	if taxRate.IsNegative() {
		return SaleTotals{}, fmt.Errorf("%w: tax rate must not be negative", ErrPricingInvalid)
	}
	if headerDiscount.IsNegative() {
		return SaleTotals{}, fmt.Errorf("%w: discount amount must not be negative", ErrPricingInvalid)
	}

	totals := SaleTotals{
		Lines:    make([]PricedLine, 0, len(lines)),
		Subtotal: decimal.Zero,
	}

	for i, line := range lines {
		if line.Quantity < 1 {
			return SaleTotals{}, fmt.Errorf("%w: line %d quantity must be at least 1", ErrPricingInvalid, i)
		}
		if line.UnitPrice.IsNegative() {
			return SaleTotals{}, fmt.Errorf("%w: line %d unit price must not be negative", ErrPricingInvalid, i)
		}
		if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(oneHundred) {
			return SaleTotals{}, fmt.Errorf("%w: line %d discount percent must be between 0 and 100", ErrPricingInvalid, i)
		}

		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		lineDiscount := lineTotal.Mul(line.DiscountPercent).Div(oneHundred)

		totals.Lines = append(totals.Lines, PricedLine{
			LineTotal:      lineTotal,
			DiscountAmount: lineDiscount,
		})
		totals.Subtotal = totals.Subtotal.Add(lineTotal.Sub(lineDiscount))
	}

	totals.TaxAmount = totals.Subtotal.Mul(taxRate).Div(oneHundred)
	totals.TotalAmount = totals.Subtotal.Add(totals.TaxAmount).Sub(headerDiscount)

	if totals.TotalAmount.IsNegative() {
		return SaleTotals{}, fmt.Errorf("%w: discount %s exceeds subtotal plus tax", ErrPricingInvalid, headerDiscount.StringFixed(2))
	}

	return totals, nil
}

// RoundMoney normalises a monetary amount to two decimal places. Used at the
// persistence and presentation boundaries only.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
