package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ledgerclient "github.com/spyderbr6/betty-sub004/internal/ledger/client"
	"github.com/spyderbr6/betty-sub004/internal/notify"
	"github.com/spyderbr6/betty-sub004/internal/settlement"
	"github.com/spyderbr6/betty-sub004/internal/shared/config"
	"github.com/spyderbr6/betty-sub004/internal/shared/db"
	"github.com/spyderbr6/betty-sub004/internal/shared/logger"
	"github.com/spyderbr6/betty-sub004/internal/shared/metrics"
	"github.com/spyderbr6/betty-sub004/internal/wager/feedpub"
	wrepo "github.com/spyderbr6/betty-sub004/internal/wager/repo"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Worker que finaliza apostas cuja janela de disputa expirou:
// efetiva as transações PENDING no razão, move a aposta para RESOLVED e
// publica as mudanças no feed. Cada passo é idempotente, então reprocessar a
// mesma aposta após um crash parcial é seguro.
func main() {
	cfg := config.Load()

	log, err := logger.New("dispute-finalizer-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := wrepo.NewPostgres(pg)
	ledger := ledgerclient.New(cfg.LedgerURL)
	feed := feedpub.New(log, cfg.KafkaBrokers)
	defer feed.Close()
	notifier := notify.New(log, cfg.KafkaBrokers, cfg.TopicNotifications)
	defer notifier.Close()

	// Métricas Prometheus
	finalized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finalizer_bets_finalized_total", Help: "apostas finalizadas"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finalizer_invitations_expired_total", Help: "convites expirados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finalizer_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(finalized, expired, errorsBy)

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext)
	defer metricsSrv.Close()
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("dispute-finalizer started", zap.Duration("disputeWindow", cfg.DisputeWindow))

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("dispute-finalizer stopped")
			return
		case <-ticker.C:
			runOnce(ctx, log, repo, ledger, feed, notifier, finalized, expired, errorsBy)
		}
	}
}

func runOnce(
	ctx context.Context,
	log *zap.Logger,
	repo *wrepo.Postgres,
	ledger *ledgerclient.Client,
	feed *feedpub.Publisher,
	notifier *notify.Notifier,
	finalized, expired prometheus.Counter,
	errorsBy *prometheus.CounterVec,
) {
	ids, err := repo.ListBetsPendingFinalization(ctx, time.Now())
	if err != nil {
		log.Error("list pending finalization", zap.Error(err))
		errorsBy.WithLabelValues("list").Inc()
		return
	}

	for _, betID := range ids {
		if err := finalizeBet(ctx, log, repo, ledger, feed, notifier, betID); err != nil {
			log.Error("finalize bet", zap.String("betId", betID), zap.Error(err))
			errorsBy.WithLabelValues("finalize").Inc()
			continue
		}
		finalized.Inc()
	}

	// Convites PENDING vencidos saem do estado visível de todos os viewers
	invs, err := repo.ExpireInvitations(ctx)
	if err != nil {
		log.Error("expire invitations", zap.Error(err))
		errorsBy.WithLabelValues("invitations").Inc()
		return
	}
	for _, inv := range invs {
		_ = feed.Publish(ctx, events.KindInvitation, events.OpUpdated, inv.ID, inv)
		expired.Inc()
	}
}

// finalizeBet efetiva os payouts e fecha a aposta. Ordem importa: o crédito no
// razão vem antes da transição de status, então um crash entre os passos
// deixa a aposta em PENDING_RESOLUTION e o retry refaz só o que faltou.
func finalizeBet(
	ctx context.Context,
	log *zap.Logger,
	repo *wrepo.Postgres,
	ledger *ledgerclient.Client,
	feed *feedpub.Publisher,
	notifier *notify.Notifier,
	betID string,
) error {
	txIDs, err := ledger.FinalizeBet(ctx, betID)
	if err != nil {
		return err
	}

	err = repo.TransitionBetStatus(ctx, betID, entities.BetPendingResolution, entities.BetResolved)
	if errors.Is(err, settlement.ErrStatusConflict) {
		// outro worker finalizou entre o list e o update
		return nil
	}
	if err != nil {
		return err
	}

	bet, err := repo.GetBet(ctx, betID)
	if err != nil {
		return err
	}
	_ = feed.Publish(ctx, events.KindBet, events.OpUpdated, betID, bet)

	log.Info("bet finalized",
		zap.String("betId", betID), zap.Int("transactions", len(txIDs)))

	for _, userID := range bet.ParticipantIDs {
		notifier.Notify(ctx, userID, "BET_FINALIZED", map[string]any{"betId": betID})
	}
	return nil
}
