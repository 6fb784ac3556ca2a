package main

import (
	"net/http"

	"go.uber.org/zap"

	lhttp "github.com/spyderbr6/betty-sub004/internal/ledger/http"
	lrepo "github.com/spyderbr6/betty-sub004/internal/ledger/repo"
	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	"github.com/spyderbr6/betty-sub004/internal/shared/db"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
	"github.com/spyderbr6/betty-sub004/internal/shared/metrics"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("ledger-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "ledger-service"), zap.String("env", cfg.Env))

	// Postgres: saldos e transações imutáveis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := lrepo.NewPostgres(pg)
	api := lhttp.NewServer(log, repo)

	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext)
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
