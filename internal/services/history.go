package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orgledger/backend/internal/models"
)

const DefaultHistoryLimit = 50

type HistoryQuery struct {
	OrganizationID string
	Currency       string // optional; matches transactions with any posting in this currency
	Limit          int
	Cursor         string
}

type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"nextCursor,omitempty"`
}

type historyCursor struct {
	createdAt time.Time
	id        string
}

func encodeCursor(t models.Transaction) string {
	raw := fmt.Sprintf("%d|%s", t.CreatedAt.UnixNano(), t.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (*historyCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidCursor
	}
	return &historyCursor{createdAt: time.Unix(0, n).UTC(), id: id}, nil
}

// GetTransactions returns one page of an organization's transactions, newest
// first, each with its postings and their accounts.
func GetTransactions(ctx context.Context, q Querier, query HistoryQuery) (*TransactionPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var sb strings.Builder
	args := []any{query.OrganizationID}
	sb.WriteString(`
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.organization_id = $1`)

	if query.Cursor != "" {
		cursor, err := decodeCursor(query.Cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, cursor.createdAt, cursor.id)
		fmt.Fprintf(&sb, `
		AND (t.created_at, t.id) < ($%d, $%d)`, len(args)-1, len(args))
	}

	if currency := normalizeCurrency(query.Currency); currency != "" {
		args = append(args, currency)
		fmt.Fprintf(&sb, `
		AND EXISTS (
			SELECT 1 FROM postings p
			JOIN accounts a ON a.id = p.account_id
			WHERE p.transaction_id = t.id AND a.currency_code = $%d
		)`, len(args))
	}

	args = append(args, limit+1)
	fmt.Fprintf(&sb, `
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $%d`, len(args))

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, unexpected(err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, unexpected(err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, unexpected(err)
	}

	page := &TransactionPage{}
	if len(transactions) > limit {
		transactions = transactions[:limit]
		page.NextCursor = encodeCursor(transactions[limit-1])
	}

	if err := attachPostings(ctx, q, transactions); err != nil {
		return nil, err
	}
	page.Transactions = transactions
	return page, nil
}

// GetTransaction returns a single transaction of the organization with its postings.
func GetTransaction(ctx context.Context, q Querier, organizationID, transactionID string) (*models.Transaction, error) {
	if _, err := uuid.Parse(transactionID); err != nil {
		return nil, ErrTransactionNotFound
	}

	txn, err := scanTransaction(q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND organization_id = $2`, transactionID, organizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, unexpected(err)
	}

	transactions := []models.Transaction{*txn}
	if err := attachPostings(ctx, q, transactions); err != nil {
		return nil, err
	}
	return &transactions[0], nil
}

func attachPostings(ctx context.Context, q Querier, transactions []models.Transaction) error {
	ids := make([]string, len(transactions))
	for i, t := range transactions {
		ids[i] = t.ID
	}
	postings, err := loadPostings(ctx, q, ids)
	if err != nil {
		return unexpected(err)
	}
	for i := range transactions {
		transactions[i].Postings = postings[transactions[i].ID]
	}
	return nil
}
