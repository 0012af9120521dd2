package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/orgledger/backend/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against a disposable Postgres when LEDGER_TEST_DATABASE_URL is set.
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, zap.NewNop()))
	return db
}

func TestIntegration_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	org := "org-" + uuid.NewString()

	sender, _, err := EnsureAccount(ctx, db, "sender", org, "USD")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE accounts SET balance = 1000 WHERE id = $1`, sender.ID)
	require.NoError(t, err)

	service := NewLedgerService(allowPins{}, nil, nil, nil, zap.NewNop())

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Transfer(ctx, db, TransferRequest{
				SenderID:       "sender",
				RecipientID:    fmt.Sprintf("recipient-%d", i%3),
				OrganizationID: org,
				Amount:         100,
				Currency:       "USD",
				Pin:            "1234",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	}
	assert.Equal(t, 10, succeeded)

	var total, drained int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE organization_id = $1`, org).Scan(&total))
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = $1`, sender.ID).Scan(&drained))
	assert.Equal(t, int64(1000), total)
	assert.Equal(t, int64(0), drained)

	var recipients int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE organization_id = $1 AND owner_user_id <> 'sender'`, org).Scan(&recipients))
	assert.Equal(t, 3, recipients, "find-or-create produced duplicate accounts")

	var unbalanced int
	require.NoError(t, db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT p.transaction_id
			FROM postings p JOIN transactions t ON t.id = p.transaction_id
			WHERE t.organization_id = $1
			GROUP BY p.transaction_id
			HAVING SUM(p.amount) <> 0
		) unbalanced`, org).Scan(&unbalanced))
	assert.Zero(t, unbalanced)
}

func TestIntegration_ReverseOnlyOnce(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	org := "org-" + uuid.NewString()

	sender, _, err := EnsureAccount(ctx, db, "sender", org, "EUR")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE accounts SET balance = 500 WHERE id = $1`, sender.ID)
	require.NoError(t, err)

	service := NewLedgerService(allowPins{}, nil, nil, nil, zap.NewNop())
	txn, err := service.Transfer(ctx, db, TransferRequest{
		SenderID: "sender", RecipientID: "recipient", OrganizationID: org,
		Amount: 200, Currency: "EUR", Pin: "1234",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.ReverseTransaction(ctx, db, ReversalRequest{OrganizationID: org, TransactionID: txn.ID, Reason: "duplicate"})
		}(i)
	}
	wg.Wait()

	reversed := 0
	for _, err := range errs {
		if err == nil {
			reversed++
			continue
		}
		assert.ErrorIs(t, err, ErrTransactionAlreadyReversed)
	}
	assert.Equal(t, 1, reversed)

	account, err := GetAccount(ctx, db, "sender", org, "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
}
