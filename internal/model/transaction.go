package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies a transaction as money in or money out.
type TxType string

const (
	TxCredit  TxType = "credit"
	TxDebit   TxType = "debit"
	TxUnknown TxType = "unknown"
)

// ParseTxType maps a canonical type string back to a TxType.
func ParseTxType(s string) (TxType, bool) {
	switch TxType(s) {
	case TxCredit, TxDebit, TxUnknown:
		return TxType(s), true
	}
	return "", false
}

// TypeForAmount derives the type from the sign of an amount.
func TypeForAmount(amount decimal.Decimal) TxType {
	switch amount.Sign() {
	case -1:
		return TxDebit
	case 1:
		return TxCredit
	}
	return TxUnknown
}

// Transaction is one canonical statement line.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = money out
	Type        TxType
	Balance     decimal.NullDecimal
	Page        int // source position, 1-based
	Line        int
}

// ValidationError describes a broken Transaction invariant.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// Validate checks the date and the amount/type sign agreement.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ValidationError{Field: "date", Description: "missing date"}
	}
	switch t.Type {
	case TxDebit:
		if t.Amount.IsPositive() {
			return ValidationError{Field: "amount", Description: fmt.Sprintf("debit with positive amount %s", t.Amount.StringFixed(2))}
		}
	case TxCredit:
		if t.Amount.IsNegative() {
			return ValidationError{Field: "amount", Description: fmt.Sprintf("credit with negative amount %s", t.Amount.StringFixed(2))}
		}
	case TxUnknown:
	default:
		return ValidationError{Field: "type", Description: fmt.Sprintf("unknown type %q", t.Type)}
	}
	return nil
}

// Table is the ordered transaction list of one document, in document order.
type Table []Transaction
