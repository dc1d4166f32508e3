// Package polymarketevents is an optional, supplemental websocket feed
// that shortens ingestion latency. It is never required: the HTTP
// poll in internal/ingestion (through internal/polymarketapi) is the
// only path that advances a market's trade cursor.
package polymarketevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Print is a single last-trade-price tick decoded off the market
// channel.
type Print struct {
	AssetID   string
	Price     string
	Size      string
	Side      string
	Timestamp time.Time
}

// Client maintains a single websocket connection to the public market
// channel and decodes last_trade_price events into Print values.
type Client struct {
	logger *zap.Logger

	url    string
	dialer *websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn
}

// New builds a Client against the given websocket URL. An empty url
// means the supplemental feed is disabled; callers should not call
// Connect in that case.
func New(logger *zap.Logger, url string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{logger: logger, url: url, dialer: websocket.DefaultDialer}
}

// Enabled reports whether a websocket URL was configured.
func (c *Client) Enabled() bool { return c.url != "" }

type subscribeMessage struct {
	Type    string   `json:"type"`
	AssetID []string `json:"assets_ids"`
}

type wireEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

// Connect dials the market channel and subscribes to the given asset
// ids, streaming decoded prints to the returned channel until ctx is
// canceled or the connection drops.
func (c *Client) Connect(ctx context.Context, assetIDs []string) (<-chan Print, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarketevents: dial: %w", err)
	}

	if err := conn.WriteJSON(subscribeMessage{Type: "market", AssetID: assetIDs}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("polymarketevents: subscribe: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	out := make(chan Print, 256)
	go c.readLoop(ctx, conn, out)
	return out, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Print) {
	defer close(out)
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("polymarketevents: read failed, feed stopping", zap.Error(err))
			return
		}

		var ev wireEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.EventType != "last_trade_price" {
			continue
		}
		ts, err := parseTimestamp(ev.Timestamp)
		if err != nil {
			continue
		}

		select {
		case out <- Print{AssetID: ev.AssetID, Price: ev.Price, Size: ev.Size, Side: ev.Side, Timestamp: ts}:
		case <-ctx.Done():
			return
		}
	}
}

// Close tears down the active connection, if any.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("polymarketevents: unparseable timestamp %q", raw)
}
