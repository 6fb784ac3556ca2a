package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ledgerclient "github.com/spyderbr6/betty-sub004/internal/ledger/client"
	"github.com/spyderbr6/betty-sub004/internal/notify"
	sharedcache "github.com/spyderbr6/betty-sub004/internal/shared/cache"
	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	sharedkafka "github.com/spyderbr6/betty-sub004/internal/shared/kafka"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
	"github.com/spyderbr6/betty-sub004/internal/shared/metrics"
	"github.com/spyderbr6/betty-sub004/internal/sync/feed"
	"github.com/spyderbr6/betty-sub004/internal/sync/platform"
	"github.com/spyderbr6/betty-sub004/internal/sync/session"
	"github.com/spyderbr6/betty-sub004/internal/sync/ws"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("sync-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "sync-service"), zap.String("env", cfg.Env))

	// Redis: canal de redistribuição de notificações entre instâncias
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas Prometheus
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_feed_events_total", Help: "eventos consumidos do change feed"},
		[]string{"entity"})
	invalid := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_feed_invalid_total", Help: "eventos inválidos descartados"},
		[]string{"entity"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_feed_degraded_total", Help: "falhas de leitura do feed"},
		[]string{"entity"})
	prometheus.MustRegister(consumed, invalid, degraded)

	mgr := session.NewManager()
	sessionsGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "sync_active_sessions", Help: "sessões ativas"},
		func() float64 { return float64(mgr.Count()) })
	prometheus.MustRegister(sessionsGauge)

	// Colaboradores externos compartilhados entre as sessões
	notifier := notify.New(log, cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifier.Close()
	platformClient := platform.New(cfg.WagerURL)
	deps := session.Deps{
		Log:      log,
		Lookup:   platformClient,
		Platform: platformClient,
		Ledger:   ledgerclient.New(cfg.LedgerURL),
		Notifier: notifier,
	}

	hub := ws.NewHub(log, deps, mgr, func(r *http.Request) bool { return true })

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Adapter do change feed: um consumer group por instância, pois cada
	// instância mantém as réplicas das próprias sessões.
	groupID := "sync-service"
	readers := map[events.EntityKind]*sharedkafka.Reader{
		events.KindBet:         sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetChanges, groupID),
		events.KindSquaresGame: sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicSquaresChanges, groupID),
		events.KindParticipant: sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicParticipantChanges, groupID),
		events.KindInvitation:  sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicInviteChanges, groupID),
		events.KindFriendship:  sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicFriendshipChanges, groupID),
	}
	adapter := &feed.Adapter{
		Log:     log,
		Readers: readers,
		Handler: mgr.Dispatch,
		OnEvent: func(kind events.EntityKind) { consumed.WithLabelValues(string(kind)).Inc() },
		OnInvalid: func(kind events.EntityKind) {
			invalid.WithLabelValues(string(kind)).Inc()
		},
		OnDegraded: func(kind events.EntityKind, _ error) {
			degraded.WithLabelValues(string(kind)).Inc()
		},
	}
	go adapter.Run(ctx)
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	// Notificações redistribuídas via Redis Pub/Sub chegam pelo subscriber
	ws.StartRedisSubscriber(ctx, log, redisClient, hub)

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		return redisClient.Ping(hctx).Err()
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Servidor WebSocket público
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	apiSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}

	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = apiSrv.Shutdown(shCtx)
	}()

	log.Info("ws listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("ws srv", zap.Error(err))
	}
	log.Info("sync-service stopped")
}
