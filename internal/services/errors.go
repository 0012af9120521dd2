package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount              = errors.New("amount must be a positive integer")
	ErrSelfTransferNotAllowed     = errors.New("cannot transfer to yourself")
	ErrPinNotSet                  = errors.New("transaction pin not set")
	ErrInvalidPin                 = errors.New("invalid transaction pin")
	ErrInvalidPinFormat           = errors.New("transaction pin must be 4 to 6 digits")
	ErrPinLocked                  = errors.New("too many failed pin attempts")
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrUserNotFound               = errors.New("user not found")
	ErrAccountNotFound            = errors.New("account not found")
	ErrSenderAccountNotFound      = errors.New("sender account not found")
	ErrInsufficientFunds          = errors.New("insufficient funds")
	ErrRecipientNotFound          = errors.New("recipient not found")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrCannotReverseAReversal     = errors.New("cannot reverse a reversal")
	ErrTransactionAlreadyReversed = errors.New("transaction already reversed")
	ErrInvalidCursor              = errors.New("invalid pagination cursor")
	ErrUnexpected                 = errors.New("unexpected ledger failure")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrSelfTransferNotAllowed, "self_transfer_not_allowed"},
	{ErrPinNotSet, "pin_not_set"},
	{ErrInvalidPin, "invalid_pin"},
	{ErrInvalidPinFormat, "invalid_pin_format"},
	{ErrPinLocked, "pin_locked"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrUserNotFound, "user_not_found"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrSenderAccountNotFound, "sender_account_not_found"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrRecipientNotFound, "recipient_not_found"},
	{ErrTransactionNotFound, "transaction_not_found"},
	{ErrCannotReverseAReversal, "cannot_reverse_a_reversal"},
	{ErrTransactionAlreadyReversed, "transaction_already_reversed"},
	{ErrInvalidCursor, "invalid_cursor"},
	{ErrUnexpected, "unexpected"},
}

// Kind returns a stable snake_case name for err, "ok" for nil and
// "unexpected" for anything outside the ledger taxonomy.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unexpected"
}

// unexpected wraps storage failures as ErrUnexpected, keeping the cause.
// Errors already in the taxonomy pass through untouched.
func unexpected(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnexpected) || Kind(err) != "unexpected" {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}
