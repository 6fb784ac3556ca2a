package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedcache "github.com/spyderbr6/betty-sub004/internal/shared/cache"
	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	sharedkafka "github.com/spyderbr6/betty-sub004/internal/shared/kafka"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
	"github.com/spyderbr6/betty-sub004/internal/shared/metrics"
	"github.com/spyderbr6/betty-sub004/internal/sync/ws"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Worker que consome o tópico de notificações e redistribui via Redis Pub/Sub
// para as instâncias do sync-service entregarem aos usuários conectados.
// Mensagem que não desserializa vai para a DLQ e o consumo continua.
func main() {
	cfg := config.Load()

	log, err := logger.New("notification-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "notification-worker",
		Topic:    cfg.TopicNotifications,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicNotificationsDLQ != "" {
		dlqWriter = sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicNotificationsDLQ)
		defer dlqWriter.Close()
	}

	// Métricas Prometheus
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_broadcast_total", Help: "notificações redistribuídas"})
	poisoned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notify_dlq_total", Help: "mensagens enviadas para a DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(delivered, poisoned, errorsBy)

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		return redisClient.Ping(hctx).Err()
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("notification-worker started", zap.String("consume", cfg.TopicNotifications))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("notification-worker stopped")
				return
			}
			log.Warn("kafka read", zap.Error(err))
			errorsBy.WithLabelValues("read").Inc()
			time.Sleep(time.Second)
			continue
		}

		var n events.Notification
		if jerr := json.Unmarshal(msg.Value, &n); jerr != nil || n.UserID == "" {
			log.Error("invalid notification, sent to dlq", zap.Error(jerr))
			if dlqWriter != nil {
				_ = sharedkafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			poisoned.Inc()
			continue
		}

		if err := redisClient.Publish(ctx, ws.PubSubChannel, msg.Value).Err(); err != nil {
			log.Warn("broadcast publish failed", zap.Error(err))
			errorsBy.WithLabelValues("publish").Inc()
			continue
		}
		delivered.Inc()
	}
}
