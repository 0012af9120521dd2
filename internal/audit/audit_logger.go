package audit

import (
	"time"

	"go.uber.org/zap"
)

const (
	EventTransfer = "TRANSFER"
	EventReversal = "REVERSAL"
	EventPinSet   = "PIN_SET"
	EventError    = "ERROR"
)

type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventType      string            `json:"event_type"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	OrganizationID string            `json:"organization_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	Amount         int64             `json:"amount,omitempty"`
	Currency       string            `json:"currency,omitempty"`
	Status         string            `json:"status"`
	Details        map[string]string `json:"details,omitempty"`
}

// Logger writes one structured record per ledger mutation or failure.
// A nil *Logger discards events.
type Logger struct {
	log *zap.Logger
	now func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{
		log: logger.Named("audit"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (a *Logger) LogTransfer(transactionID, organizationID, fromAccount, toAccount string, amount int64, currency string) {
	a.emit(Event{
		EventType:      EventTransfer,
		TransactionID:  transactionID,
		OrganizationID: organizationID,
		Amount:         amount,
		Currency:       currency,
		Status:         "SUCCESS",
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *Logger) LogReversal(transactionID, originalID, organizationID, reason string) {
	a.emit(Event{
		EventType:      EventReversal,
		TransactionID:  transactionID,
		OrganizationID: organizationID,
		Status:         "SUCCESS",
		Details: map[string]string{
			"original_transaction": originalID,
			"reason":               reason,
		},
	})
}

func (a *Logger) LogPinSet(userID string) {
	a.emit(Event{
		EventType: EventPinSet,
		UserID:    userID,
		Status:    "SUCCESS",
	})
}

func (a *Logger) LogError(operation, reference string, err error) {
	a.emit(Event{
		EventType:     EventError,
		TransactionID: reference,
		Status:        "FAILED",
		Details: map[string]string{
			"operation": operation,
			"error":     err.Error(),
		},
	})
}

func (a *Logger) emit(event Event) {
	if a == nil || a.log == nil {
		return
	}
	event.Timestamp = a.now()
	a.log.Info("AUDIT",
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("transaction_id", event.TransactionID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("user_id", event.UserID),
		zap.Int64("amount", event.Amount),
		zap.String("currency", event.Currency),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
	)
}
