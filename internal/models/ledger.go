package models

import (
	"time"
)

type AccountType string

// AccountTypeLiability is the only account type: funds owed to the user.
const AccountTypeLiability AccountType = "LIABILITY"

type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "TRANSFER"
	TransactionTypeReversal TransactionType = "REVERSAL"
)

// Account holds a user's balance for one organization and currency
type Account struct {
	ID             string      `json:"id" db:"id"`
	OwnerUserID    string      `json:"ownerUserId" db:"owner_user_id"`
	OrganizationID string      `json:"organizationId" db:"organization_id"`
	CurrencyCode   string      `json:"currencyCode" db:"currency_code"`
	AccountType    AccountType `json:"accountType" db:"account_type"`
	Balance        int64       `json:"balance" db:"balance"` // minor units
	HumanCode      string      `json:"humanCode" db:"human_code"`
	Version        int         `json:"-" db:"version"` // for optimistic locking
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt" db:"updated_at"`
}

// Transaction is an immutable, balanced financial event
type Transaction struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organizationId" db:"organization_id"`
	Type           TransactionType `json:"type" db:"type"`
	Description    string          `json:"description" db:"description"`
	Reference      *string         `json:"reference" db:"reference"` // original transaction id for a REVERSAL
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	Postings       []Posting       `json:"postings,omitempty"`
}

// Posting is one signed line of a transaction against a single account
type Posting struct {
	ID            string    `json:"id" db:"id"`
	TransactionID string    `json:"transactionId" db:"transaction_id"`
	AccountID     string    `json:"accountId" db:"account_id"`
	Amount        int64     `json:"amount" db:"amount"` // minor units, negative = debit
	Description   *string   `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	Account       *Account  `json:"account,omitempty"`
}

// PostingsTotal returns the sum of all posting amounts.
func (t *Transaction) PostingsTotal() int64 {
	var total int64
	for _, p := range t.Postings {
		total += p.Amount
	}
	return total
}
