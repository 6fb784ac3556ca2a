package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

type stubLookup struct {
	bets     map[string]entities.Bet
	squares  map[string]entities.SquaresGame
	profiles map[string]entities.UserProfile
}

var errLookup = errors.New("lookup failed")

func (s *stubLookup) GetBet(ctx context.Context, id string) (entities.Bet, error) {
	if b, ok := s.bets[id]; ok {
		return b, nil
	}
	return entities.Bet{}, errLookup
}

func (s *stubLookup) GetSquares(ctx context.Context, id string) (entities.SquaresGame, error) {
	if g, ok := s.squares[id]; ok {
		return g, nil
	}
	return entities.SquaresGame{}, errLookup
}

func (s *stubLookup) GetUserProfile(ctx context.Context, id string) (entities.UserProfile, error) {
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return entities.UserProfile{}, errLookup
}

type counters struct {
	applied, removed, dropped, anomaly int
}

func newReconciler(t *testing.T, viewerID string, lk *stubLookup) (*Reconciler, *store.Store, *counters) {
	t.Helper()
	if lk == nil {
		lk = &stubLookup{}
	}
	st := store.New(viewerID)
	c := &counters{}
	r := &Reconciler{
		Log:       zap.NewNop(),
		Store:     st,
		Lookup:    lk,
		OnApplied: func(events.EntityKind) { c.applied++ },
		OnRemoved: func(events.EntityKind) { c.removed++ },
		OnDropped: func(events.EntityKind) { c.dropped++ },
		OnAnomaly: func(events.EntityKind) { c.anomaly++ },
	}
	return r, st, c
}

func ev(t *testing.T, kind events.EntityKind, op events.Op, payload any) events.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.ChangeEvent{Entity: kind, Op: op, Payload: raw, TsUnixMs: time.Now().UnixMilli()}
}

func TestApplyBetOverwritesByID(t *testing.T) {
	r, st, c := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindBet, events.OpCreated, entities.Bet{
		ID: "b1", Status: entities.BetActive, SideACount: 1, TotalPotCents: 1000,
	}))
	r.Apply(ctx, ev(t, events.KindBet, events.OpUpdated, entities.Bet{
		ID: "b1", Status: entities.BetActive, SideACount: 2, TotalPotCents: 2000,
	}))

	b, ok := st.GetBet("b1")
	require.True(t, ok)
	require.Equal(t, 2, b.SideACount)
	require.Equal(t, int64(2000), b.TotalPotCents)
	require.Equal(t, 2, c.applied)
}

func TestApplyBetRejectsBackwardStatus(t *testing.T) {
	r, st, c := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	// viewer participa, então PENDING_RESOLUTION continua visível
	r.Apply(ctx, ev(t, events.KindBet, events.OpUpdated, entities.Bet{
		ID: "b1", Status: entities.BetPendingResolution,
		ParticipantIDs: []string{"viewer"}, WinningSide: "A",
	}))

	// replay antigo tentando voltar para ACTIVE
	r.Apply(ctx, ev(t, events.KindBet, events.OpUpdated, entities.Bet{
		ID: "b1", Status: entities.BetActive, ParticipantIDs: []string{"viewer"},
	}))

	b, ok := st.GetBet("b1")
	require.True(t, ok)
	require.Equal(t, entities.BetPendingResolution, b.Status)
	require.Equal(t, "A", b.WinningSide)
	require.Equal(t, 1, c.anomaly)
}

func TestApplyBetTerminalLeavesMirror(t *testing.T) {
	r, st, c := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindBet, events.OpCreated, entities.Bet{
		ID: "b1", Status: entities.BetActive,
	}))
	require.Equal(t, 1, c.applied)

	r.Apply(ctx, ev(t, events.KindBet, events.OpUpdated, entities.Bet{
		ID: "b1", Status: entities.BetResolved,
	}))

	_, ok := st.GetBet("b1")
	require.False(t, ok, "aposta terminal sai do espelho da sessão")
	require.Equal(t, 1, c.removed)
}

func TestApplyBetNotVisibleToStranger(t *testing.T) {
	r, st, _ := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	// SETUP de terceiro não entra no espelho
	r.Apply(ctx, ev(t, events.KindBet, events.OpCreated, entities.Bet{
		ID: "b1", CreatorID: "other", Status: entities.BetSetup,
	}))
	_, ok := st.GetBet("b1")
	require.False(t, ok)

	// mas o próprio SETUP do viewer entra
	r.Apply(ctx, ev(t, events.KindBet, events.OpCreated, entities.Bet{
		ID: "b2", CreatorID: "viewer", Status: entities.BetSetup,
	}))
	_, ok = st.GetBet("b2")
	require.True(t, ok)
}

func TestApplyBetDeleted(t *testing.T) {
	r, st, _ := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindBet, events.OpCreated, entities.Bet{
		ID: "b1", Status: entities.BetActive,
	}))
	r.Apply(ctx, ev(t, events.KindBet, events.OpDeleted, map[string]string{"id": "b1"}))

	_, ok := st.GetBet("b1")
	require.False(t, ok)
}

func TestApplyBetMalformedPayloadDropped(t *testing.T) {
	r, _, c := newReconciler(t, "viewer", nil)

	r.Apply(context.Background(), events.ChangeEvent{
		Entity: events.KindBet, Op: events.OpCreated, Payload: json.RawMessage(`{not json`),
	})
	require.Equal(t, 1, c.dropped)
	require.Zero(t, c.applied)
}

func TestApplyParticipantDeclinedRemoved(t *testing.T) {
	r, st, _ := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindParticipant, events.OpCreated, entities.Participant{
		ID: "p1", BetID: "b1", UserID: "viewer", Status: entities.ParticipantAccepted,
	}))
	require.Contains(t, st.Snapshot().Participants, "p1")

	r.Apply(ctx, ev(t, events.KindParticipant, events.OpUpdated, entities.Participant{
		ID: "p1", BetID: "b1", UserID: "viewer", Status: entities.ParticipantDeclined,
	}))
	require.NotContains(t, st.Snapshot().Participants, "p1")
}

func TestApplyInvitationEnrichment(t *testing.T) {
	lk := &stubLookup{
		bets:     map[string]entities.Bet{"b1": {ID: "b1", Title: "Final da Champions"}},
		profiles: map[string]entities.UserProfile{"bob": {ID: "bob", DisplayName: "Bob"}},
	}
	r, st, _ := newReconciler(t, "viewer", lk)

	r.Apply(context.Background(), ev(t, events.KindInvitation, events.OpCreated, entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "bob", ToUserID: "viewer", Status: entities.InvitePending,
	}))

	inv, ok := st.GetInvitation("i1")
	require.True(t, ok)
	require.Equal(t, "Final da Champions", inv.TargetTitle)
	require.Equal(t, "Bob", inv.FromUserName)
}

func TestApplyInvitationLookupFailureDrops(t *testing.T) {
	r, st, c := newReconciler(t, "viewer", &stubLookup{})

	r.Apply(context.Background(), ev(t, events.KindInvitation, events.OpCreated, entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "missing",
		FromUserID: "bob", ToUserID: "viewer", Status: entities.InvitePending,
	}))

	_, ok := st.GetInvitation("i1")
	require.False(t, ok, "sem enriquecimento o convite não materializa")
	require.Equal(t, 1, c.dropped)
}

func TestApplyInvitationNotForViewerRemoved(t *testing.T) {
	lk := &stubLookup{
		bets:     map[string]entities.Bet{"b1": {ID: "b1", Title: "t"}},
		profiles: map[string]entities.UserProfile{"bob": {ID: "bob", DisplayName: "Bob"}},
	}
	r, st, _ := newReconciler(t, "viewer", lk)
	ctx := context.Background()

	base := entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		FromUserID: "bob", ToUserID: "viewer", Status: entities.InvitePending,
	}
	r.Apply(ctx, ev(t, events.KindInvitation, events.OpCreated, base))
	_, ok := st.GetInvitation("i1")
	require.True(t, ok)

	// convite aceito sai do espelho (deixa de ser acionável)
	accepted := base
	accepted.Status = entities.InviteAccepted
	r.Apply(ctx, ev(t, events.KindInvitation, events.OpUpdated, accepted))
	_, ok = st.GetInvitation("i1")
	require.False(t, ok)

	// convite de terceiros nunca entra
	other := base
	other.ID = "i2"
	other.ToUserID = "someone-else"
	r.Apply(ctx, ev(t, events.KindInvitation, events.OpCreated, other))
	_, ok = st.GetInvitation("i2")
	require.False(t, ok)
}

func TestApplyFriendshipMustInvolveViewer(t *testing.T) {
	r, st, _ := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindFriendship, events.OpCreated, entities.Friendship{
		ID: "f1", User1ID: "bob", User2ID: "viewer",
	}))
	require.Contains(t, st.Snapshot().FriendIDs, "bob")

	r.Apply(ctx, ev(t, events.KindFriendship, events.OpCreated, entities.Friendship{
		ID: "f2", User1ID: "bob", User2ID: "carol",
	}))
	require.NotContains(t, st.Snapshot().Friendships, "f2")
}

func TestApplySquaresMonotonicAndVisibility(t *testing.T) {
	r, st, c := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	r.Apply(ctx, ev(t, events.KindSquaresGame, events.OpCreated, entities.SquaresGame{
		ID: "g1", CreatorID: "other", Status: entities.SquaresActive,
	}))
	_, ok := st.GetSquares("g1")
	require.True(t, ok)

	// viewer comprou um quadrado: o jogo segue visível depois de LOCKED
	r.Apply(ctx, ev(t, events.KindSquarePick, events.OpCreated, entities.SquarePick{
		ID: "k1", GameID: "g1", UserID: "viewer", Index: 3,
	}))
	r.Apply(ctx, ev(t, events.KindSquaresGame, events.OpUpdated, entities.SquaresGame{
		ID: "g1", CreatorID: "other", Status: entities.SquaresLocked,
	}))
	g, ok := st.GetSquares("g1")
	require.True(t, ok)
	require.Equal(t, entities.SquaresLocked, g.Status)

	// regressão LOCKED -> ACTIVE é anomalia
	r.Apply(ctx, ev(t, events.KindSquaresGame, events.OpUpdated, entities.SquaresGame{
		ID: "g1", CreatorID: "other", Status: entities.SquaresActive,
	}))
	g, _ = st.GetSquares("g1")
	require.Equal(t, entities.SquaresLocked, g.Status)
	require.Equal(t, 1, c.anomaly)
}

func TestApplyReplaySameEventIsNoOp(t *testing.T) {
	r, st, _ := newReconciler(t, "viewer", nil)
	ctx := context.Background()

	e := ev(t, events.KindBet, events.OpUpdated, entities.Bet{
		ID: "b1", Status: entities.BetActive, SideACount: 1,
	})
	r.Apply(ctx, e)
	before := st.Snapshot()
	r.Apply(ctx, e)
	after := st.Snapshot()

	require.Equal(t, before.Bets, after.Bets)
}
