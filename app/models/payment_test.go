package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTerminalStates(t *testing.T) {
	for _, state := range []string{PaymentStateConfirmed, PaymentStateFailed, PaymentStateCanceled, PaymentStateRefunded} {
		assert.True(t, IsTerminalPaymentState(state), state)
	}
	for _, state := range []string{PaymentStateCreated, PaymentStatePending, ""} {
		assert.False(t, IsTerminalPaymentState(state), state)
	}
}

func TestPaymentInfoDataEmptyAndCorrupt(t *testing.T) {
	p := &Payment{}
	assert.Empty(t, p.InfoData())

	p.InfoJSON = "{not json"
	assert.Empty(t, p.InfoData())
}

func TestPaymentMergeIntoNullBlob(t *testing.T) {
	// SetInfoData(nil) stores the literal "null"; a later merge must land
	// in a fresh map, not a nil one.
	p := &Payment{}
	require.NoError(t, p.SetInfoData(nil))
	assert.Equal(t, "null", p.InfoJSON)
	assert.NotNil(t, p.InfoData())

	require.NoError(t, p.MergeInfo(map[string]interface{}{"receipt_number": "R-1"}))
	assert.Equal(t, "R-1", p.InfoString("receipt_number"))
}

func TestPaymentMergeInfoOverwritesAndKeeps(t *testing.T) {
	p := &Payment{}
	require.NoError(t, p.SetInfoData(map[string]interface{}{
		"checkout_id": "ch_1",
		"payment_id":  "pa_1",
	}))

	require.NoError(t, p.MergeInfo(map[string]interface{}{
		"payment_id":     "pa_2",
		"receipt_number": "R-9",
	}))

	info := p.InfoData()
	assert.Equal(t, "ch_1", info["checkout_id"])
	assert.Equal(t, "pa_2", info["payment_id"])
	assert.Equal(t, "R-9", info["receipt_number"])
}

func TestPaymentInfoString(t *testing.T) {
	p := &Payment{}
	require.NoError(t, p.SetInfoData(map[string]interface{}{
		"checkout_id":     "ch_1",
		"amount_in_cents": float64(15000),
	}))

	assert.Equal(t, "ch_1", p.InfoString("checkout_id"))
	assert.Equal(t, "", p.InfoString("amount_in_cents"))
	assert.Equal(t, "", p.InfoString("missing"))
}

func TestPaymentMergeInfoNoop(t *testing.T) {
	p := &Payment{InfoJSON: `{"a":"b"}`}
	require.NoError(t, p.MergeInfo(nil))
	assert.Equal(t, `{"a":"b"}`, p.InfoJSON)
}
