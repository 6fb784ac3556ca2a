package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ledgerclient "github.com/spyderbr6/betty-sub004/internal/ledger/client"
	"github.com/spyderbr6/betty-sub004/internal/notify"
	"github.com/spyderbr6/betty-sub004/internal/settlement"
	sharedcache "github.com/spyderbr6/betty-sub004/internal/shared/cache"
	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	"github.com/spyderbr6/betty-sub004/internal/shared/db"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
	"github.com/spyderbr6/betty-sub004/internal/shared/metrics"
	wcache "github.com/spyderbr6/betty-sub004/internal/wager/cache"
	"github.com/spyderbr6/betty-sub004/internal/wager/feedpub"
	wagerhttp "github.com/spyderbr6/betty-sub004/internal/wager/http"
	wrepo "github.com/spyderbr6/betty-sub004/internal/wager/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("wager-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wager-service"), zap.String("env", cfg.Env))

	// Postgres: registro durável de apostas, bolões e relações sociais
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de snapshots quentes para a API de leitura
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas Prometheus
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_change_events_published_total", Help: "eventos publicados no change feed"},
		[]string{"entity"})
	publishErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wager_change_events_errors_total", Help: "falhas de publicação no change feed"})
	prometheus.MustRegister(published, publishErrs)

	// Publisher do change feed
	feed := feedpub.New(log, cfg.KafkaBrokers)
	defer feed.Close()
	feed.OnPublished = func(kind events.EntityKind) { published.WithLabelValues(string(kind)).Inc() }
	feed.OnError = func() { publishErrs.Inc() }

	repo := wrepo.NewPostgres(pg)

	// Colaboradores da liquidação: razão e notificações
	ledger := ledgerclient.New(cfg.LedgerURL)
	notifier := notify.New(log, cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifier.Close()

	engine := &settlement.Engine{
		Log:           log,
		Repo:          repo,
		Ledger:        ledger,
		Notifier:      notifier,
		FeeBps:        cfg.PlatformFeeBps,
		DisputeWindow: cfg.DisputeWindow,
	}

	api := &wagerhttp.API{
		Log:    log,
		Repo:   repo,
		Cache:  wcache.New(redisClient),
		Feed:   feed,
		Engine: engine,
	}

	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
