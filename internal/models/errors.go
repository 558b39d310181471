package models

import "fmt"

// InvalidInputError reports a domain-rule violation on an input value:
// non-positive quantity or price, a bad date, or an unrecognized
// position/transaction type.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
