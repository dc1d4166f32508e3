package polymarketapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMarket_ExternalIDPrecedence(t *testing.T) {
	m := RawMarket{Slug: "will-it-rain", ID: "123"}
	assert.Equal(t, "will-it-rain", m.ExternalID())

	m2 := RawMarket{ConditionID: "0xabc", Slug: "ignored"}
	assert.Equal(t, "0xabc", m2.ExternalID())
}

func TestRawMarket_NormalizeDerivesStatusFromFlags(t *testing.T) {
	m := RawMarket{ID: "m1", Question: "Will it rain?", Active: true}
	norm, ok := m.Normalize()
	require.True(t, ok)
	assert.Equal(t, "active", norm.Status)
	assert.Equal(t, "Will it rain?", norm.Name)

	closed := RawMarket{ID: "m2", Closed: true}
	normClosed, ok := closed.Normalize()
	require.True(t, ok)
	assert.Equal(t, "closed", normClosed.Status)
}

func TestRawMarket_NormalizeDropsEmptyID(t *testing.T) {
	_, ok := RawMarket{}.Normalize()
	assert.False(t, ok)
}

func TestRawTrade_WalletAndFieldPrecedence(t *testing.T) {
	tr := RawTrade{Wallet: "0xaaa", Side: "BUY", Shares: "100", Price: "0.42", Timestamp: "2026-01-01T00:00:00Z"}
	norm, ok := tr.Normalize()
	require.True(t, ok)
	assert.Equal(t, "0xaaa", norm.WalletAddress)
	assert.Equal(t, "buy", norm.Side)
	assert.Equal(t, "100", norm.SharesRaw)
	assert.Equal(t, "0.42", norm.PriceRaw)
}

func TestRawTrade_DropsWhenNoWallet(t *testing.T) {
	_, ok := RawTrade{Side: "buy", Timestamp: "2026-01-01T00:00:00Z"}.Normalize()
	assert.False(t, ok)
}

func TestRawTrade_DropsUnparseableTimestamp(t *testing.T) {
	_, ok := RawTrade{ProxyWallet: "0xaaa", Timestamp: "not-a-time"}.Normalize()
	assert.False(t, ok)
}

func TestParseTimestamp_SecondsVsMilliseconds(t *testing.T) {
	secTime, ok := parseTimestamp(float64(1_700_000_000))
	require.True(t, ok)
	assert.Equal(t, time.Unix(1_700_000_000, 0), secTime)

	msTime, ok := parseTimestamp(float64(1_700_000_000_000))
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), msTime)
}
