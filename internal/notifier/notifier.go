// Package notifier is the boundary surface between the core pipeline
// and the external chat collaborator: a small interface plus the
// concrete adapters that implement it.
package notifier

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SignalSummary is one supporting signal shown alongside an alert.
type SignalSummary struct {
	SignalType    string
	Severity      string
	WalletAddress string
	Side          string
	Score         string
	ObservedAt    time.Time
}

// AlertMessage is everything the notifier needs to format and send a
// dispatch for one alert.
type AlertMessage struct {
	MarketID    uint64
	MarketName  string
	Side        string
	Status      string
	Score       string
	ReasonTypes []string
	Wallets     []string
	Signals     []SignalSummary
	UpdatedAt   time.Time
}

// Notifier is the contract the external chat collaborator fulfills.
type Notifier interface {
	SendAlert(ctx context.Context, msg AlertMessage) error
	Close() error
}

// LogNotifier logs the formatted message instead of delivering it.
// Used whenever no chat credential is configured, per the dry-run
// contract: an absent credential keeps the worker running, it does
// not fail it.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendAlert(_ context.Context, msg AlertMessage) error {
	n.logger.Info("alert dispatch (dry-run)",
		zap.Uint64("market_id", msg.MarketID),
		zap.String("text", FormatMessage(msg)),
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// FormatMessage builds the human-readable text both LogNotifier and
// DiscordNotifier send, falling back to "market <id>" when the market
// name is unavailable. The worker truncates ReasonTypes and Wallets to
// its configured limits before the message reaches this point.
func FormatMessage(msg AlertMessage) string {
	marketName := msg.MarketName
	if marketName == "" {
		marketName = fmt.Sprintf("market %d", msg.MarketID)
	}

	text := fmt.Sprintf("[%s] %s (%s) score=%s", msg.Status, marketName, msg.Side, msg.Score)
	for _, r := range msg.ReasonTypes {
		text += "\n- " + r
	}
	for _, w := range msg.Wallets {
		text += "\nwallet: " + w
	}
	return text
}
