package notifier

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"marketwatch/internal/store"
)

func TestFormatMessage_FallsBackToMarketID(t *testing.T) {
	msg := AlertMessage{MarketID: 42, Side: "buy", Status: "high", Score: "26.00"}

	text := FormatMessage(msg)

	assert.Contains(t, text, "market 42")
	assert.Contains(t, text, "[high]")
	assert.Contains(t, text, "score=26.00")
}

func TestFormatMessage_ListsReasonsAndWallets(t *testing.T) {
	msg := AlertMessage{
		MarketID:    1,
		MarketName:  "Will it rain?",
		Side:        "buy",
		Status:      "watch",
		Score:       "5.50",
		ReasonTypes: []string{"CLUSTERING", "REPEAT_ENTRIES"},
		Wallets:     []string{"0xa", "0xb"},
	}

	text := FormatMessage(msg)

	assert.Contains(t, text, "Will it rain?")
	assert.Contains(t, text, "- CLUSTERING")
	assert.Contains(t, text, "- REPEAT_ENTRIES")
	assert.Contains(t, text, "wallet: 0xa")
	assert.Contains(t, text, "wallet: 0xb")
}

func TestReasonTypes_FromExplanationHistogram(t *testing.T) {
	a := store.Alert{
		WhyJSON: store.JSONMap{
			"counts_by_signal": map[string]any{
				"FRESH_WALLET_BIG_SIZE": float64(2),
				"CLUSTERING":            float64(1),
			},
		},
	}

	assert.Equal(t, []string{"CLUSTERING", "FRESH_WALLET_BIG_SIZE"}, reasonTypes(a))
}

func TestReasonTypes_FallsBackToAlertMessage(t *testing.T) {
	message := "score=26.00 status=high"
	a := store.Alert{
		Message: &message,
		Score:   decimal.NewNullDecimal(decimal.NewFromFloat(26.0)),
	}

	assert.Equal(t, []string{message}, reasonTypes(a))
}
