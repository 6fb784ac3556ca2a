package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

type fakePlatform struct {
	existing *entities.Participant

	getParticipantErr error
	createErr         error
	applyJoinErr      error
	purchaseErr       error
	inviteStatusErr   error

	created        []entities.Participant
	deletedParts   []string
	appliedJoins   int
	purchased      []entities.SquarePick
	deletedPicks   []string
	inviteStatuses map[string]entities.InvitationStatus
}

func (f *fakePlatform) GetParticipant(ctx context.Context, betID, userID string) (*entities.Participant, error) {
	return f.existing, f.getParticipantErr
}

func (f *fakePlatform) CreateParticipant(ctx context.Context, p entities.Participant) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, p)
	return nil
}

func (f *fakePlatform) DeleteParticipant(ctx context.Context, id string) error {
	f.deletedParts = append(f.deletedParts, id)
	return nil
}

func (f *fakePlatform) ApplyBetJoin(ctx context.Context, betID, userID, side string, amountCents int64) error {
	if f.applyJoinErr != nil {
		return f.applyJoinErr
	}
	f.appliedJoins++
	return nil
}

func (f *fakePlatform) UpdateInvitationStatus(ctx context.Context, id string, status entities.InvitationStatus) error {
	if f.inviteStatusErr != nil {
		return f.inviteStatusErr
	}
	if f.inviteStatuses == nil {
		f.inviteStatuses = map[string]entities.InvitationStatus{}
	}
	f.inviteStatuses[id] = status
	return nil
}

func (f *fakePlatform) PurchaseSquares(ctx context.Context, gameID, userID string, picks []entities.SquarePick) error {
	if f.purchaseErr != nil {
		return f.purchaseErr
	}
	f.purchased = append(f.purchased, picks...)
	return nil
}

func (f *fakePlatform) DeletePick(ctx context.Context, id string) error {
	f.deletedPicks = append(f.deletedPicks, id)
	return nil
}

type fakeActionLedger struct {
	balance      int64
	balanceErr   error
	placementErr error
	purchaseErr  error

	placements int
	purchases  int
}

func (f *fakeActionLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeActionLedger) RecordBetPlacement(ctx context.Context, userID string, amountCents int64, betID, participantID, title, side string) (string, error) {
	if f.placementErr != nil {
		return "", f.placementErr
	}
	f.placements++
	return "tx-placement", nil
}

func (f *fakeActionLedger) RecordSquaresPurchase(ctx context.Context, userID string, amountCents int64, gameID string) (string, error) {
	if f.purchaseErr != nil {
		return "", f.purchaseErr
	}
	f.purchases++
	return "tx-purchase", nil
}

type fakeActionNotifier struct {
	sent []string // "userID:type"
}

func (f *fakeActionNotifier) Notify(ctx context.Context, userID, typ string, payload any) {
	f.sent = append(f.sent, userID+":"+typ)
}

func activeBet() entities.Bet {
	return entities.Bet{
		ID: "b1", CreatorID: "creator", Title: "Final",
		Status: entities.BetActive, SideAName: "Lakers", SideBName: "Celtics",
		SideACount: 1, SideBCount: 1, TotalPotCents: 2000,
		ParticipantIDs: []string{"creator", "someone"},
	}
}

func newPipeline(platform *fakePlatform, ledger *fakeActionLedger, notifier *fakeActionNotifier) (*Pipeline, *store.Store) {
	st := store.New("viewer")
	p := &Pipeline{
		Log:      zap.NewNop(),
		Store:    st,
		Platform: platform,
		Ledger:   ledger,
	}
	if notifier != nil {
		p.Notifier = notifier
	}
	return p, st
}

func TestJoinBetSuccess(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 5000}
	notifier := &fakeActionNotifier{}
	p, st := newPipeline(platform, ledger, notifier)
	st.PutBet(activeBet())

	res, err := p.JoinBet(context.Background(), "b1", "Lakers", 1000)
	require.NoError(t, err)
	require.False(t, res.AlreadyJoined)
	require.NotEmpty(t, res.ParticipantID)
	require.Equal(t, "tx-placement", res.TransactionID)

	require.Len(t, platform.created, 1)
	require.Equal(t, "viewer", platform.created[0].UserID)
	require.Equal(t, entities.ParticipantAccepted, platform.created[0].Status)
	require.Equal(t, 1, platform.appliedJoins)
	require.Equal(t, 1, ledger.placements)

	// estado otimista visível: a confirmação autoritativa virá pelo feed
	b, ok := st.GetBet("b1")
	require.True(t, ok)
	require.True(t, b.HasParticipant("viewer"))
	require.Equal(t, 2, b.SideACount)
	require.Equal(t, int64(3000), b.TotalPotCents)
	require.True(t, st.HasPending(store.RefBet, "b1"))
	require.True(t, st.HasPending(store.RefParticipant, res.ParticipantID))

	require.Equal(t, []string{"creator:BET_JOINED"}, notifier.sent)
}

func TestJoinBetInsufficientBalanceRollsBack(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 500}
	p, st := newPipeline(platform, ledger, nil)
	st.PutBet(activeBet())
	before := st.Snapshot()

	_, err := p.JoinBet(context.Background(), "b1", "Lakers", 1000)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	after := st.Snapshot()
	require.Equal(t, before.Bets, after.Bets)
	require.Equal(t, before.Participants, after.Participants)
	require.Empty(t, platform.created)
	require.False(t, st.HasPending(store.RefBet, "b1"))
}

func TestJoinBetServerSidePositionIsIdempotentSuccess(t *testing.T) {
	existing := &entities.Participant{
		ID: "p-existing", BetID: "b1", UserID: "viewer",
		Side: "Lakers", AmountCents: 1000, Status: entities.ParticipantAccepted,
	}
	platform := &fakePlatform{existing: existing}
	ledger := &fakeActionLedger{balance: 5000}
	p, st := newPipeline(platform, ledger, nil)
	st.PutBet(activeBet())

	res, err := p.JoinBet(context.Background(), "b1", "Lakers", 1000)
	require.NoError(t, err)
	require.True(t, res.AlreadyJoined)
	require.Equal(t, "p-existing", res.ParticipantID)

	// o patch local foi revertido e a posição do servidor entrou no lugar
	b, _ := st.GetBet("b1")
	require.Equal(t, 1, b.SideACount, "contadores não duplicam")
	require.Contains(t, st.Snapshot().Participants, "p-existing")
	require.Empty(t, platform.created)
	require.Zero(t, ledger.placements)
}

func TestJoinBetLocalParticipantShortCircuits(t *testing.T) {
	platform := &fakePlatform{}
	p, st := newPipeline(platform, &fakeActionLedger{balance: 5000}, nil)
	b := activeBet()
	b.AddParticipant("viewer")
	st.PutBet(b)

	res, err := p.JoinBet(context.Background(), "b1", "Lakers", 1000)
	require.NoError(t, err)
	require.True(t, res.AlreadyJoined)
	require.Empty(t, platform.created)
}

func TestJoinBetLedgerFailureCompensates(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 5000, placementErr: errors.New("ledger down")}
	p, st := newPipeline(platform, ledger, nil)
	st.PutBet(activeBet())
	before := st.Snapshot()

	_, err := p.JoinBet(context.Background(), "b1", "Lakers", 1000)
	require.ErrorIs(t, err, ErrTransactionRecordingFailed)

	// o Participant criado externamente foi deletado em compensação
	require.Len(t, platform.created, 1)
	require.Equal(t, []string{platform.created[0].ID}, platform.deletedParts)

	after := st.Snapshot()
	require.Equal(t, before.Bets, after.Bets)
	require.Equal(t, before.Participants, after.Participants)
}

func TestJoinBetValidations(t *testing.T) {
	p, st := newPipeline(&fakePlatform{}, &fakeActionLedger{balance: 5000}, nil)

	// aposta desconhecida
	_, err := p.JoinBet(context.Background(), "missing", "Lakers", 1000)
	require.ErrorIs(t, err, ErrBetNoLongerAvailable)

	st.PutBet(activeBet())

	// stake precisa ser positiva
	_, err = p.JoinBet(context.Background(), "b1", "Lakers", 0)
	require.Error(t, err)

	// lado inexistente
	_, err = p.JoinBet(context.Background(), "b1", "Bulls", 1000)
	require.Error(t, err)
}

func activeGame() entities.SquaresGame {
	return entities.SquaresGame{
		ID: "g1", CreatorID: "creator", Status: entities.SquaresActive,
		PricePerSquareCents: 500, SquaresSold: 10, TotalPotCents: 5000,
	}
}

func TestPurchaseSquaresSuccess(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 5000}
	notifier := &fakeActionNotifier{}
	p, st := newPipeline(platform, ledger, notifier)
	st.PutSquares(activeGame())

	res, err := p.PurchaseSquares(context.Background(), "g1", []int{7, 42})
	require.NoError(t, err)
	require.Len(t, res.PickIDs, 2)
	require.Equal(t, "tx-purchase", res.TransactionID)

	require.Len(t, platform.purchased, 2)
	require.Equal(t, 1, ledger.purchases)

	g, ok := st.GetSquares("g1")
	require.True(t, ok)
	require.Equal(t, 12, g.SquaresSold)
	require.Equal(t, int64(6000), g.TotalPotCents)
	require.Contains(t, st.Snapshot().PurchasedSquaresIDs, "g1")

	require.Equal(t, []string{"creator:SQUARES_PURCHASED"}, notifier.sent)
}

func TestPurchaseSquaresRaceLoserRollsBack(t *testing.T) {
	platform := &fakePlatform{purchaseErr: errors.New("square already taken")}
	ledger := &fakeActionLedger{balance: 5000}
	p, st := newPipeline(platform, ledger, nil)
	st.PutSquares(activeGame())
	before := st.Snapshot()

	_, err := p.PurchaseSquares(context.Background(), "g1", []int{7})
	require.ErrorIs(t, err, ErrSquaresUnavailable)

	after := st.Snapshot()
	require.Equal(t, before.Squares, after.Squares)
	require.Empty(t, after.Picks)
	require.NotContains(t, after.PurchasedSquaresIDs, "g1")
	require.Zero(t, ledger.purchases)
}

func TestPurchaseSquaresLedgerFailureCompensates(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 5000, purchaseErr: errors.New("ledger down")}
	p, st := newPipeline(platform, ledger, nil)
	st.PutSquares(activeGame())

	_, err := p.PurchaseSquares(context.Background(), "g1", []int{7, 42})
	require.ErrorIs(t, err, ErrTransactionRecordingFailed)

	// todos os picks efetivados são deletados em compensação
	require.Len(t, platform.deletedPicks, 2)
	require.Empty(t, st.Snapshot().Picks)
}

func TestPurchaseSquaresValidations(t *testing.T) {
	p, st := newPipeline(&fakePlatform{}, &fakeActionLedger{balance: 1_000_000}, nil)
	st.PutSquares(activeGame())

	_, err := p.PurchaseSquares(context.Background(), "g1", nil)
	require.Error(t, err)

	_, err = p.PurchaseSquares(context.Background(), "g1", []int{100})
	require.Error(t, err)

	// capacidade: 10 vendidos + 91 pedidos > 100
	idx := make([]int, 91)
	for i := range idx {
		idx[i] = i
	}
	_, err = p.PurchaseSquares(context.Background(), "g1", idx)
	require.ErrorIs(t, err, ErrSquaresUnavailable)

	// jogo fora de ACTIVE
	locked := activeGame()
	locked.Status = entities.SquaresLocked
	st.PutSquares(locked)
	_, err = p.PurchaseSquares(context.Background(), "g1", []int{7})
	require.ErrorIs(t, err, ErrSquaresUnavailable)
}

func TestAcceptInvitationJoinsAndResolvesInvite(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 5000}
	p, st := newPipeline(platform, ledger, nil)
	st.PutBet(activeBet())
	st.PutInvitation(entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "creator", ToUserID: "viewer", Status: entities.InvitePending,
	})

	res, err := p.AcceptInvitation(context.Background(), "i1", "Lakers", 1000)
	require.NoError(t, err)
	require.NotEmpty(t, res.ParticipantID)

	require.Equal(t, entities.InviteAccepted, platform.inviteStatuses["i1"])
	_, ok := st.GetInvitation("i1")
	require.False(t, ok)
}

func TestAcceptInvitationJoinFailureKeepsInvite(t *testing.T) {
	platform := &fakePlatform{}
	ledger := &fakeActionLedger{balance: 100}
	p, st := newPipeline(platform, ledger, nil)
	st.PutBet(activeBet())
	st.PutInvitation(entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "creator", ToUserID: "viewer", Status: entities.InvitePending,
	})

	_, err := p.AcceptInvitation(context.Background(), "i1", "Lakers", 1000)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// convite segue acionável para nova tentativa
	inv, ok := st.GetInvitation("i1")
	require.True(t, ok)
	require.Equal(t, entities.InvitePending, inv.Status)
	require.Empty(t, platform.inviteStatuses)
}

func TestDeclineInvitation(t *testing.T) {
	platform := &fakePlatform{}
	p, st := newPipeline(platform, &fakeActionLedger{}, nil)
	st.PutInvitation(entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "creator", ToUserID: "viewer", Status: entities.InvitePending,
	})

	require.NoError(t, p.DeclineInvitation(context.Background(), "i1"))
	require.Equal(t, entities.InviteDeclined, platform.inviteStatuses["i1"])
	_, ok := st.GetInvitation("i1")
	require.False(t, ok)

	// recusar de novo é no-op
	require.NoError(t, p.DeclineInvitation(context.Background(), "i1"))
}

func TestDeclineInvitationServerErrorKeepsLocalState(t *testing.T) {
	platform := &fakePlatform{inviteStatusErr: errors.New("unavailable")}
	p, st := newPipeline(platform, &fakeActionLedger{}, nil)
	st.PutInvitation(entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "creator", ToUserID: "viewer", Status: entities.InvitePending,
	})

	require.Error(t, p.DeclineInvitation(context.Background(), "i1"))
	_, ok := st.GetInvitation("i1")
	require.True(t, ok)
}
