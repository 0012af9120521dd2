package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_Events(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewLogger(zap.New(core))

	logger.LogTransfer("tx-1", "org-1", "acc-a", "acc-b", 300, "USD")
	logger.LogReversal("tx-2", "tx-1", "org-1", "duplicate")
	logger.LogPinSet("user-1")
	logger.LogError("transfer", "tx-3", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 4)

	transfer := entries[0].ContextMap()
	assert.Equal(t, "AUDIT", entries[0].Message)
	assert.Equal(t, EventTransfer, transfer["event_type"])
	assert.Equal(t, "tx-1", transfer["transaction_id"])
	assert.Equal(t, int64(300), transfer["amount"])
	assert.Equal(t, "SUCCESS", transfer["status"])

	reversal := entries[1].ContextMap()
	assert.Equal(t, EventReversal, reversal["event_type"])
	assert.Equal(t, map[string]string{"original_transaction": "tx-1", "reason": "duplicate"}, reversal["details"])

	assert.Equal(t, "user-1", entries[2].ContextMap()["user_id"])

	failure := entries[3].ContextMap()
	assert.Equal(t, "FAILED", failure["status"])
	assert.Equal(t, map[string]string{"operation": "transfer", "error": "boom"}, failure["details"])
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.LogTransfer("tx", "org", "a", "b", 1, "USD")
		logger.LogError("op", "ref", errors.New("x"))
	})
}
