package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

type fakeRepo struct {
	bet   entities.Bet
	parts []entities.Participant
	game  entities.SquaresGame
	picks []entities.SquarePick

	beginErr   error
	resolveErr error

	beginCalls   int
	resolveCalls int
	wonSide      string
	disputeEnds  time.Time
	payouts      map[string]int64
}

func (f *fakeRepo) GetBet(ctx context.Context, id string) (entities.Bet, error) {
	return f.bet, nil
}

func (f *fakeRepo) ListParticipants(ctx context.Context, betID string) ([]entities.Participant, error) {
	return f.parts, nil
}

func (f *fakeRepo) BeginBetResolution(ctx context.Context, betID, winningSide string, disputeEndsAt time.Time) error {
	f.beginCalls++
	if f.beginErr != nil {
		return f.beginErr
	}
	f.wonSide = winningSide
	f.disputeEnds = disputeEndsAt
	return nil
}

func (f *fakeRepo) SetParticipantPayout(ctx context.Context, participantID string, payoutCents int64) error {
	if f.payouts == nil {
		f.payouts = map[string]int64{}
	}
	f.payouts[participantID] = payoutCents
	return nil
}

func (f *fakeRepo) GetSquares(ctx context.Context, id string) (entities.SquaresGame, error) {
	return f.game, nil
}

func (f *fakeRepo) ListPicks(ctx context.Context, gameID string) ([]entities.SquarePick, error) {
	return f.picks, nil
}

func (f *fakeRepo) ResolveSquaresGame(ctx context.Context, gameID string) error {
	f.resolveCalls++
	return f.resolveErr
}

type fakeLedger struct {
	txs []entities.Transaction
}

func (f *fakeLedger) RecordSettlement(ctx context.Context, tx entities.Transaction) (string, error) {
	f.txs = append(f.txs, tx)
	return "tx-" + tx.UserID, nil
}

type fakeNotifier struct {
	sent []string // "userID:type"
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, typ string, payload any) {
	f.sent = append(f.sent, userID+":"+typ)
}

func newEngine(repo *fakeRepo, ledger *fakeLedger, notifier *fakeNotifier) *Engine {
	return &Engine{
		Log:           zap.NewNop(),
		Repo:          repo,
		Ledger:        ledger,
		Notifier:      notifier,
		FeeBps:        500,
		DisputeWindow: 48 * time.Hour,
		Now:           func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestResolveBet(t *testing.T) {
	repo := &fakeRepo{
		bet: entities.Bet{
			ID: "b1", CreatorID: "alice", Status: entities.BetActive,
			SideAName: "Lakers", SideBName: "Celtics", TotalPotCents: 10000,
		},
		parts: []entities.Participant{
			part("p1", "alice", "Lakers", 4000),
			part("p2", "bob", "Celtics", 6000),
		},
	}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	eng := newEngine(repo, ledger, notifier)

	require.NoError(t, eng.ResolveBet(context.Background(), "b1", "alice", "Lakers"))

	require.Equal(t, 1, repo.beginCalls)
	require.Equal(t, "Lakers", repo.wonSide)
	require.Equal(t, eng.Now().Add(48*time.Hour), repo.disputeEnds)

	// vencedor único leva o pote inteiro, bruto gravado no participante
	require.Equal(t, int64(10000), repo.payouts["p1"])
	require.Equal(t, int64(0), repo.payouts["p2"])

	require.Len(t, ledger.txs, 2)
	byUser := map[string]entities.Transaction{}
	for _, tx := range ledger.txs {
		byUser[tx.UserID] = tx
	}

	won := byUser["alice"]
	require.Equal(t, entities.TxBetWon, won.Type)
	require.Equal(t, entities.TxPending, won.Status, "fundos só se movem após a janela de disputa")
	require.Equal(t, int64(10000), won.AmountCents)
	require.Equal(t, int64(500), won.PlatformFeeCents)
	require.Equal(t, int64(9500), won.ActualAmountCents)
	require.Equal(t, "b1", won.RelatedBetID)
	require.Equal(t, "p1", won.RelatedParticipantID)

	lost := byUser["bob"]
	require.Equal(t, entities.TxBetLost, lost.Type)
	require.Equal(t, entities.TxCompleted, lost.Status, "perda é registro de auditoria, sem movimento")
	require.Zero(t, lost.AmountCents)

	require.ElementsMatch(t, []string{"alice:BET_RESOLVED", "bob:BET_RESOLVED"}, notifier.sent)
}

func TestResolveBetRaceLoserHasNoSideEffects(t *testing.T) {
	repo := &fakeRepo{
		bet: entities.Bet{
			ID: "b1", CreatorID: "alice", Status: entities.BetActive,
			SideAName: "Lakers", SideBName: "Celtics",
		},
		beginErr: ErrStatusConflict,
	}
	ledger := &fakeLedger{}
	eng := newEngine(repo, ledger, &fakeNotifier{})

	err := eng.ResolveBet(context.Background(), "b1", "alice", "Lakers")
	require.ErrorIs(t, err, ErrResolutionRace)
	require.Empty(t, ledger.txs)
	require.Empty(t, repo.payouts)
}

func TestResolveBetGuards(t *testing.T) {
	repo := &fakeRepo{
		bet: entities.Bet{
			ID: "b1", CreatorID: "alice", Status: entities.BetActive,
			SideAName: "Lakers", SideBName: "Celtics",
		},
	}
	eng := newEngine(repo, &fakeLedger{}, &fakeNotifier{})

	// só o criador resolve
	err := eng.ResolveBet(context.Background(), "b1", "bob", "Lakers")
	require.ErrorIs(t, err, ErrNotCreator)

	// lado precisa ser um dos dois da aposta
	err = eng.ResolveBet(context.Background(), "b1", "alice", "Bulls")
	require.Error(t, err)
	require.Zero(t, repo.beginCalls)

	// fora de ACTIVE não resolve
	repo.bet.Status = entities.BetResolved
	err = eng.ResolveBet(context.Background(), "b1", "alice", "Lakers")
	require.ErrorIs(t, err, ErrNotResolvable)
}

func TestResolveSquaresWinner(t *testing.T) {
	repo := &fakeRepo{
		game: entities.SquaresGame{
			ID: "g1", CreatorID: "alice", Status: entities.SquaresLive,
			TotalPotCents: 50000, NumbersAssigned: true,
			HomeDigits: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			AwayDigits: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
		picks: []entities.SquarePick{
			{ID: "k1", GameID: "g1", UserID: "bob", Index: 73, AmountCents: 500},
			{ID: "k2", GameID: "g1", UserID: "carol", Index: 12, AmountCents: 500},
		},
	}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	eng := newEngine(repo, ledger, notifier)

	// placar 23 x 17: coluna 3, linha 7 -> quadrado 73 (de bob)
	require.NoError(t, eng.ResolveSquares(context.Background(), "g1", "alice", 23, 17))
	require.Equal(t, 1, repo.resolveCalls)

	require.Len(t, ledger.txs, 1)
	tx := ledger.txs[0]
	require.Equal(t, "bob", tx.UserID)
	require.Equal(t, entities.TxSquaresWon, tx.Type)
	require.Equal(t, entities.TxPending, tx.Status)
	require.Equal(t, int64(50000), tx.AmountCents)
	require.Equal(t, int64(2500), tx.PlatformFeeCents)
	require.Equal(t, int64(47500), tx.ActualAmountCents)

	require.Equal(t, []string{"bob:SQUARES_WON"}, notifier.sent)
}

func TestResolveSquaresUnsoldWinnerRefundsAll(t *testing.T) {
	repo := &fakeRepo{
		game: entities.SquaresGame{
			ID: "g1", CreatorID: "alice", Status: entities.SquaresLive,
			TotalPotCents: 1000, NumbersAssigned: true,
			HomeDigits: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			AwayDigits: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
		picks: []entities.SquarePick{
			{ID: "k1", GameID: "g1", UserID: "bob", Index: 5, AmountCents: 500},
			{ID: "k2", GameID: "g1", UserID: "carol", Index: 42, AmountCents: 500},
		},
	}
	ledger := &fakeLedger{}
	eng := newEngine(repo, ledger, &fakeNotifier{})

	// quadrado vencedor 73 não foi comprado: reembolso integral
	require.NoError(t, eng.ResolveSquares(context.Background(), "g1", "alice", 23, 17))

	require.Len(t, ledger.txs, 2)
	for _, tx := range ledger.txs {
		require.Equal(t, entities.TxBetRefunded, tx.Type)
		require.Equal(t, entities.TxPending, tx.Status)
		require.Equal(t, int64(500), tx.AmountCents)
		require.Equal(t, tx.AmountCents, tx.ActualAmountCents)
		require.Zero(t, tx.PlatformFeeCents)
	}
}

func TestResolveSquaresGuards(t *testing.T) {
	repo := &fakeRepo{
		game: entities.SquaresGame{ID: "g1", CreatorID: "alice", Status: entities.SquaresActive},
	}
	eng := newEngine(repo, &fakeLedger{}, &fakeNotifier{})

	err := eng.ResolveSquares(context.Background(), "g1", "bob", 10, 7)
	require.ErrorIs(t, err, ErrNotCreator)

	// só resolve a partir de LIVE
	err = eng.ResolveSquares(context.Background(), "g1", "alice", 10, 7)
	require.ErrorIs(t, err, ErrNotResolvable)
	require.Zero(t, repo.resolveCalls)
}
