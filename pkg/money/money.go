// Package money converts between the decimal amounts the import pipeline
// works with and the integer minor units the persistence layer stores. It
// leans on go-money for ISO-4217 currency metadata so zero-decimal currencies
// round correctly, and on shopspring/decimal to avoid float drift.
package money

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/Ghost8002/fynance-18-sub001/internal/domain/import/normalizer"
)

// DefaultCurrency is assumed when an import carries no currency hint.
const DefaultCurrency = "BRL"

// ToMinorUnits converts a decimal amount into minor units for the given
// ISO-4217 currency code. Unknown codes fall back to two fraction digits.
func ToMinorUnits(amount decimal.Decimal, currencyCode string) int64 {
	fraction := 2
	if currency := money.GetCurrency(currencyCode); currency != nil {
		fraction = currency.Fraction
	}
	return amount.Shift(int32(fraction)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(cents int64, currencyCode string) decimal.Decimal {
	fraction := 2
	if currency := money.GetCurrency(currencyCode); currency != nil {
		fraction = currency.Fraction
	}
	return decimal.New(cents, 0).Shift(-int32(fraction))
}

// SignedByType applies transaction polarity to an unsigned amount: expenses
// become negative, income stays positive. Pipeline amounts are always
// absolute values, so this is the single place a sign is reintroduced before
// persistence.
func SignedByType(amount decimal.Decimal, txType normalizer.TransactionType) decimal.Decimal {
	abs := amount.Abs()
	if txType == normalizer.TypeExpense {
		return abs.Neg()
	}
	return abs
}

// SignedMinorUnits combines SignedByType and ToMinorUnits for the commit path.
func SignedMinorUnits(amount decimal.Decimal, txType normalizer.TransactionType, currencyCode string) int64 {
	return ToMinorUnits(SignedByType(amount, txType), currencyCode)
}

// Format renders minor units for logs and report summaries, e.g. "R$1.234,56".
func Format(cents int64, currencyCode string) string {
	return money.New(cents, currencyCode).Display()
}
