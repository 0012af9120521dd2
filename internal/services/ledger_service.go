package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orgledger/backend/internal/audit"
	"github.com/orgledger/backend/internal/metrics"
	"github.com/orgledger/backend/internal/models"
	"go.uber.org/zap"
)

// RecipientLookup resolves a user id from an email address, case-insensitively.
// It returns ErrUserNotFound when nobody owns the address.
type RecipientLookup interface {
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
}

type TransferRequest struct {
	SenderID       string
	RecipientID    string
	OrganizationID string
	Amount         int64
	Currency       string
	Pin            string
	Description    string
}

type ReversalRequest struct {
	OrganizationID string
	TransactionID  string
	Reason         string
}

// LedgerService runs transfers and reversals. It holds no database handle;
// every call names the *sql.DB its unit of work runs against.
type LedgerService struct {
	pins    PinVerifier
	users   RecipientLookup
	audit   *audit.Logger
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewLedgerService(pins PinVerifier, users RecipientLookup, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		pins:    pins,
		users:   users,
		audit:   auditLogger,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (s *LedgerService) Transfer(ctx context.Context, db *sql.DB, req TransferRequest) (*models.Transaction, error) {
	start := time.Now()
	txn, err := s.transfer(ctx, db, req)
	s.metrics.ObserveTransfer(Kind(err), normalizeCurrency(req.Currency), req.Amount, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrUnexpected) {
			s.logger.Error("transfer failed",
				zap.String("sender_id", req.SenderID),
				zap.String("recipient_id", req.RecipientID),
				zap.String("organization_id", req.OrganizationID),
				zap.Error(err))
			s.audit.LogError("transfer", "", err)
		}
		return nil, err
	}

	s.audit.LogTransfer(txn.ID, txn.OrganizationID, txn.Postings[0].AccountID, txn.Postings[1].AccountID, req.Amount, normalizeCurrency(req.Currency))
	s.logger.Info("transfer completed",
		zap.String("transaction_id", txn.ID),
		zap.String("organization_id", txn.OrganizationID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", normalizeCurrency(req.Currency)))
	return txn, nil
}

// TransferByEmail resolves the recipient from an email address and delegates to Transfer.
func (s *LedgerService) TransferByEmail(ctx context.Context, db *sql.DB, recipientEmail string, req TransferRequest) (*models.Transaction, error) {
	recipientID, err := s.users.FindUserIDByEmail(ctx, strings.TrimSpace(recipientEmail))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, unexpected(err)
	}
	req.RecipientID = recipientID
	return s.Transfer(ctx, db, req)
}

func (s *LedgerService) transfer(ctx context.Context, db *sql.DB, req TransferRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.SenderID == req.RecipientID {
		return nil, ErrSelfTransferNotAllowed
	}
	if err := s.pins.VerifyPin(ctx, req.SenderID, req.Pin); err != nil {
		return nil, unexpected(err)
	}

	sender, err := GetAccount(ctx, db, req.SenderID, req.OrganizationID, req.Currency)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrSenderAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if sender.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, unexpected(err)
	}
	defer tx.Rollback()

	recipient, created, err := EnsureAccount(ctx, tx, req.RecipientID, req.OrganizationID, req.Currency)
	if err != nil {
		return nil, unexpected(err)
	}

	locked, err := lockAccounts(ctx, tx, sender.ID, recipient.ID)
	if err != nil {
		return nil, unexpected(err)
	}
	from, to := locked[sender.ID], locked[recipient.ID]

	// The pre-check read may be stale by now.
	if from.Balance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	now := s.now()
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", req.SenderID, req.RecipientID)
	}
	txn := &models.Transaction{
		ID:             s.newID(),
		OrganizationID: req.OrganizationID,
		Type:           models.TransactionTypeTransfer,
		Description:    description,
		CreatedAt:      now,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, unexpected(err)
	}

	debit := models.Posting{ID: s.newID(), TransactionID: txn.ID, AccountID: from.ID, Amount: -req.Amount, CreatedAt: now}
	credit := models.Posting{ID: s.newID(), TransactionID: txn.ID, AccountID: to.ID, Amount: req.Amount, CreatedAt: now}
	for _, p := range []*models.Posting{&debit, &credit} {
		if err := insertPosting(ctx, tx, p); err != nil {
			return nil, unexpected(err)
		}
	}

	if err := updateAccountBalance(ctx, tx, from, from.Balance-req.Amount, now); err != nil {
		return nil, unexpected(err)
	}
	if err := updateAccountBalance(ctx, tx, to, to.Balance+req.Amount, now); err != nil {
		return nil, unexpected(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unexpected(err)
	}

	if created {
		s.metrics.AccountCreated()
	}

	debit.Account, credit.Account = from, to
	txn.Postings = []models.Posting{debit, credit}
	return txn, nil
}

// ReverseTransaction writes a compensating REVERSAL for an existing transfer.
// Callers are expected to have checked the organization capability already.
func (s *LedgerService) ReverseTransaction(ctx context.Context, db *sql.DB, req ReversalRequest) (*models.Transaction, error) {
	start := time.Now()
	reversal, err := s.reverse(ctx, db, req)
	s.metrics.ObserveReversal(Kind(err), time.Since(start))
	if err != nil {
		if errors.Is(err, ErrUnexpected) {
			s.logger.Error("reversal failed",
				zap.String("transaction_id", req.TransactionID),
				zap.String("organization_id", req.OrganizationID),
				zap.Error(err))
			s.audit.LogError("reversal", req.TransactionID, err)
		}
		return nil, err
	}

	s.audit.LogReversal(reversal.ID, req.TransactionID, req.OrganizationID, req.Reason)
	s.logger.Info("transaction reversed",
		zap.String("transaction_id", reversal.ID),
		zap.String("original_transaction_id", req.TransactionID),
		zap.String("organization_id", req.OrganizationID))
	return reversal, nil
}

func (s *LedgerService) reverse(ctx context.Context, db *sql.DB, req ReversalRequest) (*models.Transaction, error) {
	if _, err := uuid.Parse(req.TransactionID); err != nil {
		return nil, ErrTransactionNotFound
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, unexpected(err)
	}
	defer tx.Rollback()

	original, err := scanTransaction(tx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE`, req.TransactionID, req.OrganizationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, unexpected(err)
	}
	if original.Type == models.TransactionTypeReversal {
		return nil, ErrCannotReverseAReversal
	}

	var alreadyReversed bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1 AND type = $2)`,
		original.ID, string(models.TransactionTypeReversal)).Scan(&alreadyReversed)
	if err != nil {
		return nil, unexpected(err)
	}
	if alreadyReversed {
		return nil, ErrTransactionAlreadyReversed
	}

	postings, err := transactionPostings(ctx, tx, original.ID)
	if err != nil {
		return nil, unexpected(err)
	}

	accountIDs := make([]string, 0, len(postings))
	for _, p := range postings {
		accountIDs = append(accountIDs, p.AccountID)
	}
	locked, err := lockAccounts(ctx, tx, accountIDs...)
	if err != nil {
		return nil, unexpected(err)
	}

	now := s.now()
	reversal := &models.Transaction{
		ID:             s.newID(),
		OrganizationID: original.OrganizationID,
		Type:           models.TransactionTypeReversal,
		Description:    fmt.Sprintf("Reversal of: %s. Reason: %s", original.Description, req.Reason),
		Reference:      &original.ID,
		CreatedAt:      now,
	}
	if err := insertTransaction(ctx, tx, reversal); err != nil {
		if isUniqueViolation(err, "transactions_single_reversal_idx") {
			return nil, ErrTransactionAlreadyReversed
		}
		return nil, unexpected(err)
	}

	for _, p := range postings {
		inverse := models.Posting{
			ID:            s.newID(),
			TransactionID: reversal.ID,
			AccountID:     p.AccountID,
			Amount:        -p.Amount,
			Description:   p.Description,
			CreatedAt:     now,
		}
		if err := insertPosting(ctx, tx, &inverse); err != nil {
			return nil, unexpected(err)
		}

		account := locked[p.AccountID]
		newBalance := account.Balance + inverse.Amount
		if newBalance < 0 {
			s.logger.Warn("reversal leaves account negative",
				zap.String("account_id", account.ID),
				zap.String("original_transaction_id", original.ID),
				zap.Int64("balance", newBalance))
		}
		if err := updateAccountBalance(ctx, tx, account, newBalance, now); err != nil {
			return nil, unexpected(err)
		}

		inverse.Account = account
		reversal.Postings = append(reversal.Postings, inverse)
	}

	if err := tx.Commit(); err != nil {
		return nil, unexpected(err)
	}
	return reversal, nil
}

// GetBalance returns the caller's account in currency, provisioning it on first use.
func (s *LedgerService) GetBalance(ctx context.Context, db *sql.DB, userID, organizationID, currency string) (*models.Account, error) {
	account, created, err := EnsureAccount(ctx, db, userID, organizationID, currency)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.AccountCreated()
	}
	return account, nil
}
