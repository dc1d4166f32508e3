// Package polymarketapi is the HTTP client for the two upstream feeds
// ingestion consumes: a markets index and a per-market trade feed.
package polymarketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client polls the public markets and trades endpoints.
type Client struct {
	httpClient *http.Client
	marketsURL string
	tradesURL  string
	userAgent  string
}

// New builds a Client with a fixed request timeout, matching the
// upstream contract's single client-timeout knob.
func New(marketsURL, tradesURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		marketsURL: marketsURL,
		tradesURL:  tradesURL,
		userAgent:  userAgent,
	}
}

// RawMarket is one entry from the markets endpoint, before id
// precedence is resolved.
type RawMarket struct {
	ConditionID      string `json:"conditionId"`
	ConditionIDSnake string `json:"condition_id"`
	Slug             string `json:"slug"`
	ID               string `json:"id"`
	MarketID         string `json:"marketId"`
	Address          string `json:"address"`
	UUID             string `json:"uuid"`

	Question string `json:"question"`
	Title    string `json:"title"`
	Category string `json:"category"`

	Active   bool   `json:"active"`
	Closed   bool   `json:"closed"`
	Archived bool   `json:"archived"`
	Status   string `json:"status"`

	ResolvedAt any `json:"resolvedAt"`
	ClosedTime any `json:"closedTime"`
}

type marketsEnvelope struct {
	Markets []RawMarket `json:"markets"`
}

// NormalizedMarket is the shape ingestion upserts into the store.
type NormalizedMarket struct {
	ExternalID string
	Name       string
	Category   string
	Status     string
	ResolvedAt *time.Time
}

// ExternalID resolves the id-field precedence the ingestion contract
// specifies: conditionId, condition_id, slug, id, marketId, address, uuid.
func (m RawMarket) ExternalID() string {
	for _, candidate := range []string{m.ConditionID, m.ConditionIDSnake, m.Slug, m.ID, m.MarketID, m.Address, m.UUID} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Normalize converts a raw market entry into the upsert shape,
// deriving status from the active/closed/archived flags when an
// explicit status field is absent.
func (m RawMarket) Normalize() (NormalizedMarket, bool) {
	extID := m.ExternalID()
	if extID == "" {
		return NormalizedMarket{}, false
	}
	name := m.Question
	if name == "" {
		name = m.Title
	}
	status := strings.ToLower(m.Status)
	if status == "" {
		switch {
		case m.Archived:
			status = "inactive"
		case m.Closed:
			status = "closed"
		case m.Active:
			status = "active"
		default:
			status = "inactive"
		}
	}
	var resolvedAt *time.Time
	if t, ok := parseTimestamp(m.ResolvedAt); ok {
		resolvedAt = &t
	} else if t, ok := parseTimestamp(m.ClosedTime); ok {
		resolvedAt = &t
	}
	return NormalizedMarket{
		ExternalID: extID,
		Name:       name,
		Category:   m.Category,
		Status:     status,
		ResolvedAt: resolvedAt,
	}, true
}

// FetchMarkets retrieves the full market index and normalizes each entry.
func (c *Client) FetchMarkets(ctx context.Context) ([]NormalizedMarket, error) {
	var raw []RawMarket
	if err := c.doGetMarkets(ctx, &raw); err != nil {
		return nil, err
	}
	out := make([]NormalizedMarket, 0, len(raw))
	for _, m := range raw {
		if norm, ok := m.Normalize(); ok {
			out = append(out, norm)
		}
	}
	return out, nil
}

// doGetMarkets decodes either a bare JSON array or an object carrying a
// "markets" array, mirroring the upstream contract's two accepted shapes.
func (c *Client) doGetMarkets(ctx context.Context, dest *[]RawMarket) error {
	body, err := c.get(ctx, c.marketsURL)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(body, dest)
	}
	var env marketsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("polymarketapi: decode markets: %w", err)
	}
	*dest = env.Markets
	return nil
}

// RawTrade is one entry from the trades endpoint, before wallet-field
// precedence is resolved.
type RawTrade struct {
	ProxyWallet   string `json:"proxyWallet"`
	Wallet        string `json:"wallet"`
	WalletAddress string `json:"wallet_address"`
	Address       string `json:"address"`

	Side string `json:"side"`

	Shares json.Number `json:"shares"`
	Amount json.Number `json:"amount"`
	Size   json.Number `json:"size"`

	Price     json.Number `json:"price"`
	FillPrice json.Number `json:"fill_price"`
	AvgPrice  json.Number `json:"avg_price"`

	Timestamp any `json:"timestamp"`

	Hash            string `json:"hash"`
	TransactionHash string `json:"transactionHash"`
}

type tradesEnvelope struct {
	Trades []RawTrade `json:"trades"`
}

// NormalizedTrade is the shape ingestion inserts into the store.
type NormalizedTrade struct {
	WalletAddress string
	Side          string
	SharesRaw     string
	PriceRaw      string
	TradedAt      time.Time
	Hash          *string
}

// walletAddress resolves the wallet field precedence the ingestion
// contract specifies: proxyWallet, wallet, wallet_address, address.
func (t RawTrade) walletAddress() string {
	for _, candidate := range []string{t.ProxyWallet, t.Wallet, t.WalletAddress, t.Address} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func (t RawTrade) sharesRaw() string {
	for _, n := range []json.Number{t.Shares, t.Amount, t.Size} {
		if n != "" {
			return n.String()
		}
	}
	return ""
}

func (t RawTrade) priceRaw() string {
	for _, n := range []json.Number{t.Price, t.FillPrice, t.AvgPrice} {
		if n != "" {
			return n.String()
		}
	}
	return ""
}

func (t RawTrade) hash() *string {
	for _, h := range []string{t.Hash, t.TransactionHash} {
		if h != "" {
			return &h
		}
	}
	return nil
}

// Normalize drops a trade that has no wallet or no parsable timestamp,
// lower-cases side, and resolves the size/price/wallet field precedence.
func (t RawTrade) Normalize() (NormalizedTrade, bool) {
	wallet := t.walletAddress()
	if wallet == "" {
		return NormalizedTrade{}, false
	}
	ts, ok := parseTimestamp(t.Timestamp)
	if !ok {
		return NormalizedTrade{}, false
	}
	return NormalizedTrade{
		WalletAddress: wallet,
		Side:          strings.ToLower(t.Side),
		SharesRaw:     t.sharesRaw(),
		PriceRaw:      t.priceRaw(),
		TradedAt:      ts,
		Hash:          t.hash(),
	}, true
}

// FetchRecentTrades polls the per-market trade feed since the given
// cursor (nil means "from the beginning"). A 404 is treated as an
// empty result, not an error.
func (c *Client) FetchRecentTrades(ctx context.Context, externalID string, since *time.Time) ([]NormalizedTrade, error) {
	url := c.tradesURL + "?asset=" + externalID
	if since != nil {
		url += "&startTime=" + strconv.FormatInt(since.UnixMilli(), 10)
	}

	body, status, err := c.getWithStatus(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("polymarketapi: trades status=%d body=%s", status, string(body))
	}

	var raw []RawTrade
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("polymarketapi: decode trades: %w", err)
		}
	} else {
		var env tradesEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("polymarketapi: decode trades: %w", err)
		}
		raw = env.Trades
	}

	out := make([]NormalizedTrade, 0, len(raw))
	for _, t := range raw {
		if norm, ok := t.Normalize(); ok {
			out = append(out, norm)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.getWithStatus(ctx, url)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("polymarketapi: status=%d body=%s", status, string(body))
	}
	return body, nil
}

func (c *Client) getWithStatus(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("polymarketapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("polymarketapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("polymarketapi: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// parseTimestamp accepts ISO-8601 strings or Unix seconds/milliseconds
// (numbers greater than 1e10 are treated as milliseconds), the same
// heuristic the ingestion contract specifies.
func parseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		if val == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t, true
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return fromNumeric(f), true
		}
		return time.Time{}, false
	case float64:
		return fromNumeric(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromNumeric(f), true
	default:
		return time.Time{}, false
	}
}

func fromNumeric(v float64) time.Time {
	if v > 1e10 {
		return time.UnixMilli(int64(v))
	}
	return time.Unix(int64(v), 0)
}
