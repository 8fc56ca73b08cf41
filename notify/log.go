package notify

import (
	"context"
	"log/slog"

	goCred "github.com/MrEthical07/goCred"
)

// LogSender logs every message instead of delivering it. Bodies contain live
// action links, so use it only where logs are private.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements goCred.Notifier.
func (s LogSender) Send(ctx context.Context, msg goCred.Message) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
