package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

func TestPutIsIdempotentOnReplay(t *testing.T) {
	s := New("viewer")
	b := entities.Bet{ID: "b1", Status: entities.BetActive, ParticipantIDs: []string{"u1"}}

	s.PutBet(b)
	first := s.Snapshot()
	s.PutBet(b) // redelivery at-least-once
	second := s.Snapshot()

	require.Equal(t, first.Bets, second.Bets)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New("viewer")
	s.PutBet(entities.Bet{ID: "b1", ParticipantIDs: []string{"u1"}})
	s.PutSquares(entities.SquaresGame{ID: "g1", HomeDigits: []int{1, 2, 3}})

	snap := s.Snapshot()
	snap.Bets["b1"].ParticipantIDs[0] = "mutated"
	snap.Squares["g1"].HomeDigits[0] = 99
	delete(snap.Bets, "b1")

	b, ok := s.GetBet("b1")
	require.True(t, ok)
	require.Equal(t, []string{"u1"}, b.ParticipantIDs)

	g, ok := s.GetSquares("g1")
	require.True(t, ok)
	require.Equal(t, 1, g.HomeDigits[0])
}

func TestInvitationIndexesFollowMutations(t *testing.T) {
	s := New("viewer")
	s.PutInvitation(entities.Invitation{
		ID: "i1", Kind: entities.InviteBet, TargetID: "b1",
		ToUserID: "viewer", Status: entities.InvitePending,
	})
	s.PutInvitation(entities.Invitation{
		ID: "i2", Kind: entities.InviteSquares, TargetID: "g1",
		ToUserID: "viewer", Status: entities.InvitePending,
	})

	snap := s.Snapshot()
	require.Contains(t, snap.InvitedBetIDs, "b1")
	require.Contains(t, snap.InvitedSquaresIDs, "g1")

	s.RemoveInvitation("i1")
	snap = s.Snapshot()
	require.NotContains(t, snap.InvitedBetIDs, "b1")
	require.Contains(t, snap.InvitedSquaresIDs, "g1")
}

func TestFriendIndexFollowsMutations(t *testing.T) {
	s := New("viewer")
	s.PutFriendship(entities.Friendship{ID: "f1", User1ID: "bob", User2ID: "viewer"})

	snap := s.Snapshot()
	require.Contains(t, snap.FriendIDs, "bob")

	s.RemoveFriendship("f1")
	require.NotContains(t, s.Snapshot().FriendIDs, "bob")
}

func TestPurchasedIndexFollowsPicks(t *testing.T) {
	s := New("viewer")
	s.PutPick(entities.SquarePick{ID: "k1", GameID: "g1", UserID: "viewer", Index: 7})
	s.PutPick(entities.SquarePick{ID: "k2", GameID: "g1", UserID: "other", Index: 8})

	require.Contains(t, s.Snapshot().PurchasedSquaresIDs, "g1")

	// só o pick de terceiro sobra: o índice do viewer cai
	s.RemovePick("k1")
	require.NotContains(t, s.Snapshot().PurchasedSquaresIDs, "g1")
}

func TestPendingLifecycle(t *testing.T) {
	s := New("viewer")
	s.PutBet(entities.Bet{ID: "b1", Status: entities.BetActive})

	cp := s.Begin("op-1", Ref{Kind: RefBet, ID: "b1"}, Ref{Kind: RefParticipant, ID: "p1"})

	// Begin só captura; a marca vem em MarkPending
	require.False(t, s.HasPending(RefBet, "b1"))

	s.MarkPending(cp)
	require.True(t, s.HasPending(RefBet, "b1"))
	require.True(t, s.HasPending(RefParticipant, "p1"))

	// escrita autoritativa por id limpa a marca daquela entidade
	s.PutBet(entities.Bet{ID: "b1", Status: entities.BetActive, SideACount: 1})
	require.False(t, s.HasPending(RefBet, "b1"))
	require.True(t, s.HasPending(RefParticipant, "p1"))

	s.PutParticipant(entities.Participant{ID: "p1", BetID: "b1", UserID: "viewer"})
	require.False(t, s.HasPending(RefParticipant, "p1"))
}

func TestRollbackRestoresExactPriorState(t *testing.T) {
	s := New("viewer")
	prior := entities.Bet{
		ID: "b1", Status: entities.BetActive,
		SideACount: 2, TotalPotCents: 4000, ParticipantIDs: []string{"u1", "u2"},
	}
	s.PutBet(prior)

	cp := s.Begin("op-1",
		Ref{Kind: RefBet, ID: "b1"},
		Ref{Kind: RefParticipant, ID: "p-new"}, // não existia antes
	)

	// patch otimista
	patched := prior
	patched.SideACount = 3
	patched.TotalPotCents = 6000
	patched.AddParticipant("viewer")
	s.PutBet(patched)
	s.PutParticipant(entities.Participant{ID: "p-new", BetID: "b1", UserID: "viewer"})
	s.MarkPending(cp)

	s.Rollback(cp)

	got, ok := s.GetBet("b1")
	require.True(t, ok)
	require.Equal(t, prior, got)

	_, exists := s.Snapshot().Participants["p-new"]
	require.False(t, exists, "entidade criada otimisticamente volta a não existir")

	require.False(t, s.HasPending(RefBet, "b1"))
	require.False(t, s.HasPending(RefParticipant, "p-new"))
}

func TestRollbackPreservesUnrelatedWrites(t *testing.T) {
	s := New("viewer")
	s.PutBet(entities.Bet{ID: "b1", Status: entities.BetActive})

	cp := s.Begin("op-1", Ref{Kind: RefBet, ID: "b1"})
	s.PutBet(entities.Bet{ID: "b1", Status: entities.BetActive, SideACount: 9})
	s.MarkPending(cp)

	// evento não relacionado chega enquanto a operação está em voo
	other := entities.Bet{ID: "b2", Status: entities.BetResolved}
	s.PutBet(other)

	s.Rollback(cp)

	got, ok := s.GetBet("b2")
	require.True(t, ok)
	require.Equal(t, other, got)
}

func TestRollbackRecomputesIndexes(t *testing.T) {
	s := New("viewer")

	cp := s.Begin("op-1", Ref{Kind: RefPick, ID: "k1"}, Ref{Kind: RefSquares, ID: "g1"})
	s.PutSquares(entities.SquaresGame{ID: "g1", Status: entities.SquaresActive, SquaresSold: 1})
	s.PutPick(entities.SquarePick{ID: "k1", GameID: "g1", UserID: "viewer", Index: 42})
	s.MarkPending(cp)

	require.Contains(t, s.Snapshot().PurchasedSquaresIDs, "g1")

	s.Rollback(cp)

	snap := s.Snapshot()
	require.NotContains(t, snap.PurchasedSquaresIDs, "g1")
	require.Empty(t, snap.Picks)
	require.Empty(t, snap.Squares)
}
