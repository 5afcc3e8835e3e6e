package store

import "github.com/shopspring/decimal"

// decimalPtr converts a nullable JSON float into a nullable decimal,
// since PostgREST serializes numeric columns as JSON numbers.
func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
