package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// PubSubChannel é o canal Redis Pub/Sub por onde o notification-worker
// redistribui as notificações para as instâncias do sync-service.
const PubSubChannel = "notifications_broadcast"

// StartRedisSubscriber escuta o canal e repassa cada notificação para as
// conexões WebSocket do usuário de destino.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, hub *Hub) {
	sub := r.Subscribe(ctx, PubSubChannel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var n events.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					log.Warn("notification broadcast unmarshal failed", zap.Error(err))
					continue
				}
				hub.NotifyUser(n)
			}
		}
	}()
}
