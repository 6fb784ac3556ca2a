package views

import (
	"sort"
	"time"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Projeções derivadas do Store. Funções puras de (snapshot, viewer): para um
// mesmo snapshot a saída é totalmente determinística: ordenação por data de
// criação decrescente, empate resolvido por id crescente.

// Projection agrega todas as listas enviadas ao cliente em um push.
type Projection struct {
	MyBets            []entities.Bet         `json:"myBets"`
	JoinableBets      []entities.Bet         `json:"joinableBets"`
	FriendBets        []entities.Bet         `json:"friendBets"`
	PendingInvites    []entities.Invitation  `json:"pendingInvites"`
	MySquares         []entities.SquaresGame `json:"mySquares"`
	JoinableSquares   []entities.SquaresGame `json:"joinableSquares"`
}

// Compute recalcula todas as projeções de uma vez.
func Compute(snap store.Snapshot) Projection {
	return Projection{
		MyBets:          MyBets(snap),
		JoinableBets:    JoinableBets(snap),
		FriendBets:      FriendJoinableBets(snap),
		PendingInvites:  PendingInvitations(snap),
		MySquares:       MySquares(snap),
		JoinableSquares: JoinableSquares(snap),
	}
}

// MyBets lista apostas em que o viewer é criador ou participante.
func MyBets(snap store.Snapshot) []entities.Bet {
	var out []entities.Bet
	for _, b := range snap.Bets {
		if b.CreatorID == snap.ViewerID || b.HasParticipant(snap.ViewerID) {
			out = append(out, b)
		}
	}
	sortBets(out)
	return out
}

// JoinableBets lista apostas ACTIVE em que o viewer ainda pode entrar:
// não é criador, não participa, e a aposta é pública ou o viewer tem convite
// PENDING para ela.
func JoinableBets(snap store.Snapshot) []entities.Bet {
	var out []entities.Bet
	for _, b := range snap.Bets {
		if joinableBet(snap, &b) {
			out = append(out, b)
		}
	}
	sortBets(out)
	return out
}

// FriendJoinableBets é o recorte de JoinableBets cujo criador é amigo do viewer.
func FriendJoinableBets(snap store.Snapshot) []entities.Bet {
	var out []entities.Bet
	for _, b := range snap.Bets {
		if !joinableBet(snap, &b) {
			continue
		}
		if _, ok := snap.FriendIDs[b.CreatorID]; ok {
			out = append(out, b)
		}
	}
	sortBets(out)
	return out
}

func joinableBet(snap store.Snapshot, b *entities.Bet) bool {
	if b.Status != entities.BetActive {
		return false
	}
	if b.CreatorID == snap.ViewerID || b.HasParticipant(snap.ViewerID) {
		return false
	}
	if b.IsPrivate {
		_, invited := snap.InvitedBetIDs[b.ID]
		return invited
	}
	return true
}

// PendingInvitations lista convites acionáveis. Um convite cuja entidade alvo
// ainda não foi materializada localmente, ou que já saiu do estado acionável
// (ex: aposta RESOLVED), é simplesmente invisível, não é erro.
func PendingInvitations(snap store.Snapshot) []entities.Invitation {
	now := time.Now()
	var out []entities.Invitation
	for _, inv := range snap.Invitations {
		if inv.ToUserID != snap.ViewerID || inv.Status != entities.InvitePending {
			continue
		}
		if !inv.ExpiresAt.IsZero() && inv.ExpiresAt.Before(now) {
			continue
		}
		switch inv.Kind {
		case entities.InviteBet:
			b, ok := snap.Bets[inv.TargetID]
			if !ok || b.Status != entities.BetActive {
				continue
			}
		case entities.InviteSquares:
			g, ok := snap.Squares[inv.TargetID]
			if !ok || g.Status != entities.SquaresActive {
				continue
			}
		default:
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MySquares lista bolões criados pelo viewer ou em que comprou quadrados.
func MySquares(snap store.Snapshot) []entities.SquaresGame {
	var out []entities.SquaresGame
	for _, g := range snap.Squares {
		_, purchased := snap.PurchasedSquaresIDs[g.ID]
		if g.CreatorID == snap.ViewerID || purchased {
			out = append(out, g)
		}
	}
	sortSquares(out)
	return out
}

// JoinableSquares lista bolões ACTIVE com quadrados disponíveis para o viewer.
func JoinableSquares(snap store.Snapshot) []entities.SquaresGame {
	var out []entities.SquaresGame
	for _, g := range snap.Squares {
		if g.Status != entities.SquaresActive || g.CreatorID == snap.ViewerID {
			continue
		}
		if g.SquaresSold >= 100 {
			continue
		}
		if g.IsPrivate {
			if _, invited := snap.InvitedSquaresIDs[g.ID]; !invited {
				continue
			}
		}
		out = append(out, g)
	}
	sortSquares(out)
	return out
}

func sortBets(list []entities.Bet) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func sortSquares(list []entities.SquaresGame) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
