package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/orgledger/backend/internal/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so every storage helper
// can run standalone or inside a caller's unit of work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const accountColumns = `id, owner_user_id, organization_id, currency_code, account_type, balance, human_code, version, created_at, updated_at`

const transactionColumns = `id, organization_id, type, description, reference, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.OwnerUserID,
		&account.OrganizationID,
		&account.CurrencyCode,
		&account.AccountType,
		&account.Balance,
		&account.HumanCode,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	var reference sql.NullString
	err := row.Scan(&txn.ID, &txn.OrganizationID, &txn.Type, &txn.Description, &reference, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	if reference.Valid {
		txn.Reference = &reference.String
	}
	return &txn, nil
}

// lockAccount takes the row lock that serializes every writer of an account
// for the rest of the surrounding transaction.
func lockAccount(ctx context.Context, q Querier, accountID string) (*models.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s disappeared while locking", accountID)
	}
	return account, err
}

// lockAccounts locks the given accounts in ascending id order to prevent deadlocks
func lockAccounts(ctx context.Context, q Querier, accountIDs ...string) (map[string]*models.Account, error) {
	ids := make([]string, 0, len(accountIDs))
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		account, err := lockAccount(ctx, q, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func updateAccountBalance(ctx context.Context, q Querier, account *models.Account, newBalance int64, now time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, account.ID, account.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", account.ID)
	}

	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = now
	return nil
}

func insertTransaction(ctx context.Context, q Querier, txn *models.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions (id, organization_id, type, description, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.OrganizationID, string(txn.Type), txn.Description, nullString(txn.Reference), txn.CreatedAt)
	return err
}

func insertPosting(ctx context.Context, q Querier, posting *models.Posting) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO postings (id, transaction_id, account_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		posting.ID, posting.TransactionID, posting.AccountID, posting.Amount, nullString(posting.Description), posting.CreatedAt)
	return err
}

// loadPostings returns the postings of the given transactions, each joined
// with its account, grouped by transaction id.
func loadPostings(ctx context.Context, q Querier, transactionIDs []string) (map[string][]models.Posting, error) {
	byTransaction := make(map[string][]models.Posting, len(transactionIDs))
	if len(transactionIDs) == 0 {
		return byTransaction, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.transaction_id, p.account_id, p.amount, p.description, p.created_at,
		       a.id, a.owner_user_id, a.organization_id, a.currency_code, a.account_type,
		       a.balance, a.human_code, a.version, a.created_at, a.updated_at
		FROM postings p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.transaction_id = ANY($1)
		ORDER BY p.created_at, p.id`, pq.Array(transactionIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Posting
		var description sql.NullString
		var a models.Account
		err := rows.Scan(
			&p.ID, &p.TransactionID, &p.AccountID, &p.Amount, &description, &p.CreatedAt,
			&a.ID, &a.OwnerUserID, &a.OrganizationID, &a.CurrencyCode, &a.AccountType,
			&a.Balance, &a.HumanCode, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if description.Valid {
			p.Description = &description.String
		}
		p.Account = &a
		byTransaction[p.TransactionID] = append(byTransaction[p.TransactionID], p)
	}
	return byTransaction, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func transactionPostings(ctx context.Context, q Querier, transactionID string) ([]models.Posting, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, transaction_id, account_id, amount, description, created_at
		FROM postings
		WHERE transaction_id = $1
		ORDER BY created_at, id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []models.Posting
	for rows.Next() {
		var p models.Posting
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.AccountID, &p.Amount, &description, &p.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			p.Description = &description.String
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres unique violation on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
