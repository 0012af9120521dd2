package services

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/orgledger/backend/internal/models"
)

// GetAccount returns the account for (userID, organizationID, currency) or
// ErrAccountNotFound. It never creates one.
func GetAccount(ctx context.Context, q Querier, userID, organizationID, currency string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_user_id = $1 AND organization_id = $2 AND currency_code = $3`,
		userID, organizationID, normalizeCurrency(currency))

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, unexpected(err)
	}
	return account, nil
}

// CreateAccount inserts a zero-balance liability account. When another writer
// created the same triple first, the existing account is returned and created
// is false.
func CreateAccount(ctx context.Context, q Querier, userID, organizationID, currency string) (account *models.Account, created bool, err error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO accounts (id, owner_user_id, organization_id, currency_code, account_type, balance, human_code)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		ON CONFLICT (owner_user_id, organization_id, currency_code) DO NOTHING
		RETURNING `+accountColumns,
		uuid.NewString(), userID, organizationID, normalizeCurrency(currency), string(models.AccountTypeLiability), generateHumanCode())

	account, err = scanAccount(row)
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, unexpected(err)
	}

	// Lost the race: the conflicting row is committed or visible to us now.
	account, err = GetAccount(ctx, q, userID, organizationID, currency)
	if err != nil {
		return nil, false, unexpected(err)
	}
	return account, false, nil
}

// EnsureAccount is the find-or-create entry point used by the engines.
func EnsureAccount(ctx context.Context, q Querier, userID, organizationID, currency string) (*models.Account, bool, error) {
	account, err := GetAccount(ctx, q, userID, organizationID, currency)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}
	return CreateAccount(ctx, q, userID, organizationID, currency)
}

// ListAccounts returns every account a user holds in an organization, by currency.
func ListAccounts(ctx context.Context, q Querier, userID, organizationID string) ([]models.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE owner_user_id = $1 AND organization_id = $2
		ORDER BY currency_code`, userID, organizationID)
	if err != nil {
		return nil, unexpected(err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, unexpected(err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, unexpected(err)
	}
	return accounts, nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// generateHumanCode returns a 10-digit display code. It is informational and
// not guaranteed unique.
func generateHumanCode() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
