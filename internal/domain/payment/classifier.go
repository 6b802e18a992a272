package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountMissing = errors.New("transaction has no amount")
	ErrAmountInvalid = errors.New("transaction amount is not a number")
)

// Transaction is a single record as returned by the transaction source.
// Numbers are expected to be decoded as json.Number.
type Transaction map[string]any

const amountField = "amount"

// ParseAmount extracts the monetary amount of a transaction. The amount is read
// from the "amount" field, or from "amount.amount" when that field is an object.
// Strings may use spaces as thousands separators and a decimal comma ("1 234,56").
func ParseAmount(tx Transaction) (decimal.Decimal, error) {
	raw, ok := tx[amountField]
	if !ok || raw == nil {
		return decimal.Zero, ErrAmountMissing
	}
	if nested, isObject := raw.(map[string]any); isObject {
		raw, ok = nested[amountField]
		if !ok || raw == nil {
			return decimal.Zero, ErrAmountMissing
		}
	}

	switch v := raw.(type) {
	case string:
		return parseLocaleAmount(v)
	case json.Number:
		return parseDecimal(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrAmountInvalid, raw)
	}
}

var spaceRemover = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

func parseLocaleAmount(s string) (decimal.Decimal, error) {
	normalized := strings.ReplaceAll(spaceRemover.Replace(s), ",", ".")
	return parseDecimal(normalized)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountInvalid, s)
	}
	return d, nil
}

// Qualifies reports whether amount counts as the expected payment.
// The threshold is strict: an amount equal to min does not qualify.
func Qualifies(amount, min decimal.Decimal) bool {
	return amount.IsPositive() && amount.GreaterThan(min)
}

// Classify returns the amount of tx and true when tx is a qualifying payment.
// A non-nil error describes why the amount could not be read; ok is false then.
func Classify(tx Transaction, min decimal.Decimal) (amount decimal.Decimal, ok bool, err error) {
	amount, err = ParseAmount(tx)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !Qualifies(amount, min) {
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}
