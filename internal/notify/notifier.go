package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	sharedkafka "github.com/spyderbr6/betty-sub004/internal/shared/kafka"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Notifier publica notificações no tópico de notificações em modo
// fire-and-forget: falha de publicação é logada e nunca propaga para a
// operação que a originou.
type Notifier struct {
	Log    *zap.Logger
	Writer *sharedkafka.Writer

	OnSent  func()
	OnError func()
}

func New(log *zap.Logger, brokers, topic string) *Notifier {
	return &Notifier{Log: log, Writer: sharedkafka.NewWriter(brokers, topic)}
}

// Notify serializa e publica a notificação. Nunca retorna erro.
func (n *Notifier) Notify(ctx context.Context, userID, typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		n.Log.Error("notification payload marshal failed", zap.Error(err))
		return
	}
	ev := events.Notification{
		UserID:   userID,
		Type:     typ,
		Payload:  raw,
		TsUnixMs: time.Now().UnixMilli(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		n.Log.Error("notification marshal failed", zap.Error(err))
		return
	}
	if err := sharedkafka.WriteJSON(ctx, n.Writer, userID, b); err != nil {
		n.Log.Warn("notification publish failed",
			zap.String("userId", userID), zap.String("type", typ), zap.Error(err))
		if n.OnError != nil {
			n.OnError()
		}
		return
	}
	if n.OnSent != nil {
		n.OnSent()
	}
}

func (n *Notifier) Close() error { return n.Writer.Close() }
