package models

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

var ratioSentinel = []byte(`"N/A"`)

// Ratio is a decimal ratio that may be undefined, such as the long/short
// ratio of a portfolio with no short exposure. An undefined ratio
// serializes as the literal "N/A" for compatibility with persisted data.
type Ratio struct {
	Value decimal.Decimal
	Valid bool
}

// DefinedRatio returns a defined ratio
func DefinedRatio(v decimal.Decimal) Ratio {
	return Ratio{Value: v, Valid: true}
}

// UndefinedRatio returns the undefined sentinel
func UndefinedRatio() Ratio {
	return Ratio{}
}

func (r Ratio) String() string {
	if !r.Valid {
		return "N/A"
	}
	return r.Value.String()
}

// MarshalJSON renders a numeric string, or "N/A" when undefined
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return ratioSentinel, nil
	}
	return r.Value.MarshalJSON()
}

// UnmarshalJSON accepts a numeric string, a bare number, null, or "N/A"
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, ratioSentinel) || bytes.Equal(data, []byte("null")) {
		*r = Ratio{}
		return nil
	}
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to unmarshal ratio: %w", err)
	}
	*r = Ratio{Value: v, Valid: true}
	return nil
}
