package reconcile

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/events"
)

// Lookup resolve as consultas secundárias exigidas pelo enriquecimento de
// convites (entidade referenciada e perfil do remetente).
type Lookup interface {
	GetBet(ctx context.Context, id string) (entities.Bet, error)
	GetSquares(ctx context.Context, id string) (entities.SquaresGame, error)
	GetUserProfile(ctx context.Context, id string) (entities.UserProfile, error)
}

// Reconciler aplica eventos do change feed sobre o Store da sessão.
//
// Regras:
//   - merge por id com "última escrita observada vence": o registro completo
//     do evento sobrescreve o anterior, nunca há incremento baseado em delta,
//     então o replay do mesmo evento é um no-op;
//   - exceção: transições de status de Bet/SquaresGame são monotônicas. Um
//     evento que moveria a entidade para trás (ex: RESOLVED -> ACTIVE) é
//     rejeitado e logado como anomalia;
//   - entidades cujo status sai do conjunto visível para o viewer são
//     removidas do espelho local (não do registro durável);
//   - Deleted remove incondicionalmente.
type Reconciler struct {
	Log    *zap.Logger
	Store  *store.Store
	Lookup Lookup

	OnApplied func(kind events.EntityKind) // métricas (counter++)
	OnRemoved func(kind events.EntityKind) // métricas
	OnDropped func(kind events.EntityKind) // métricas: evento descartado
	OnAnomaly func(kind events.EntityKind) // métricas: regressão de status
	OnChange  func()                       // estado mudou; a sessão recomputa projeções
}

// Apply processa um único evento normalizado do feed.
func (r *Reconciler) Apply(ctx context.Context, ev events.ChangeEvent) {
	switch ev.Entity {
	case events.KindBet:
		r.applyBet(ev)
	case events.KindSquaresGame:
		r.applySquares(ev)
	case events.KindParticipant:
		r.applyParticipant(ev)
	case events.KindSquarePick:
		r.applyPick(ev)
	case events.KindInvitation:
		r.applyInvitation(ctx, ev)
	case events.KindFriendship:
		r.applyFriendship(ev)
	default:
		r.Log.Warn("unknown entity kind", zap.String("entity", string(ev.Entity)))
		r.dropped(ev.Entity)
	}
}

func (r *Reconciler) applyBet(ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemoveBet(payloadID(ev.Payload))
		r.removed(events.KindBet)
		return
	}

	var b entities.Bet
	if err := json.Unmarshal(ev.Payload, &b); err != nil {
		r.Log.Warn("bet payload rejected", zap.Error(err))
		r.dropped(events.KindBet)
		return
	}
	normalizeBet(&b)
	if b.Status.Rank() < 0 {
		r.Log.Warn("bet with unknown status dropped",
			zap.String("betId", b.ID), zap.String("status", string(b.Status)))
		r.dropped(events.KindBet)
		return
	}

	// Guarda monotônica: o sistema externo é append-forward; uma regressão
	// indica replay antigo ou bug e não pode sobrescrever estado mais novo.
	if cur, ok := r.Store.GetBet(b.ID); ok && b.Status.Rank() < cur.Status.Rank() {
		r.Log.Warn("backward bet status transition rejected",
			zap.String("betId", b.ID),
			zap.String("current", string(cur.Status)),
			zap.String("incoming", string(b.Status)))
		r.anomaly(events.KindBet)
		return
	}

	if r.betVisible(&b) {
		r.Store.PutBet(b)
		r.applied(events.KindBet)
	} else {
		r.Store.RemoveBet(b.ID)
		r.removed(events.KindBet)
	}
}

func (r *Reconciler) applySquares(ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemoveSquares(payloadID(ev.Payload))
		r.removed(events.KindSquaresGame)
		return
	}

	var g entities.SquaresGame
	if err := json.Unmarshal(ev.Payload, &g); err != nil {
		r.Log.Warn("squares payload rejected", zap.Error(err))
		r.dropped(events.KindSquaresGame)
		return
	}
	normalizeSquares(&g)
	if g.Status.Rank() < 0 {
		r.Log.Warn("squares game with unknown status dropped",
			zap.String("gameId", g.ID), zap.String("status", string(g.Status)))
		r.dropped(events.KindSquaresGame)
		return
	}

	if cur, ok := r.Store.GetSquares(g.ID); ok && g.Status.Rank() < cur.Status.Rank() {
		r.Log.Warn("backward squares status transition rejected",
			zap.String("gameId", g.ID),
			zap.String("current", string(cur.Status)),
			zap.String("incoming", string(g.Status)))
		r.anomaly(events.KindSquaresGame)
		return
	}

	if r.squaresVisible(&g) {
		r.Store.PutSquares(g)
		r.applied(events.KindSquaresGame)
	} else {
		r.Store.RemoveSquares(g.ID)
		r.removed(events.KindSquaresGame)
	}
}

func (r *Reconciler) applyParticipant(ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemoveParticipant(payloadID(ev.Payload))
		r.removed(events.KindParticipant)
		return
	}
	var p entities.Participant
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		r.Log.Warn("participant payload rejected", zap.Error(err))
		r.dropped(events.KindParticipant)
		return
	}
	if p.Status == "" {
		p.Status = entities.ParticipantPending
	}
	if p.Status == entities.ParticipantDeclined {
		// posição recusada deixa de ser relevante para qualquer projeção
		r.Store.RemoveParticipant(p.ID)
		r.removed(events.KindParticipant)
		return
	}
	r.Store.PutParticipant(p)
	r.applied(events.KindParticipant)
}

func (r *Reconciler) applyPick(ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemovePick(payloadID(ev.Payload))
		r.removed(events.KindSquarePick)
		return
	}
	var p entities.SquarePick
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		r.Log.Warn("square pick payload rejected", zap.Error(err))
		r.dropped(events.KindSquarePick)
		return
	}
	r.Store.PutPick(p)
	r.applied(events.KindSquarePick)
}

func (r *Reconciler) applyInvitation(ctx context.Context, ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemoveInvitation(payloadID(ev.Payload))
		r.removed(events.KindInvitation)
		return
	}
	var inv entities.Invitation
	if err := json.Unmarshal(ev.Payload, &inv); err != nil {
		r.Log.Warn("invitation payload rejected", zap.Error(err))
		r.dropped(events.KindInvitation)
		return
	}

	// Convites que não são para o viewer, ou já terminais, saem do espelho.
	if inv.ToUserID != r.Store.ViewerID() || inv.Status != entities.InvitePending {
		r.Store.RemoveInvitation(inv.ID)
		r.removed(events.KindInvitation)
		return
	}

	// Enriquecimento: o convite só é materializável com o alvo e o perfil do
	// remetente resolvidos. Falha em qualquer lookup descarta o evento (sem
	// retry); o convite reaparece no próximo sync ou reload completo.
	switch inv.Kind {
	case entities.InviteBet:
		b, err := r.Lookup.GetBet(ctx, inv.TargetID)
		if err != nil {
			r.Log.Warn("invitation target lookup failed, event dropped",
				zap.String("inviteId", inv.ID), zap.Error(err))
			r.dropped(events.KindInvitation)
			return
		}
		inv.TargetTitle = b.Title
	case entities.InviteSquares:
		g, err := r.Lookup.GetSquares(ctx, inv.TargetID)
		if err != nil {
			r.Log.Warn("invitation target lookup failed, event dropped",
				zap.String("inviteId", inv.ID), zap.Error(err))
			r.dropped(events.KindInvitation)
			return
		}
		inv.TargetTitle = g.Title
	default:
		r.Log.Warn("invitation with unknown kind dropped", zap.String("inviteId", inv.ID))
		r.dropped(events.KindInvitation)
		return
	}

	prof, err := r.Lookup.GetUserProfile(ctx, inv.FromUserID)
	if err != nil {
		r.Log.Warn("invitation sender lookup failed, event dropped",
			zap.String("inviteId", inv.ID), zap.Error(err))
		r.dropped(events.KindInvitation)
		return
	}
	inv.FromUserName = prof.DisplayName

	r.Store.PutInvitation(inv)
	r.applied(events.KindInvitation)
}

func (r *Reconciler) applyFriendship(ev events.ChangeEvent) {
	if ev.Op == events.OpDeleted {
		r.Store.RemoveFriendship(payloadID(ev.Payload))
		r.removed(events.KindFriendship)
		return
	}
	var f entities.Friendship
	if err := json.Unmarshal(ev.Payload, &f); err != nil {
		r.Log.Warn("friendship payload rejected", zap.Error(err))
		r.dropped(events.KindFriendship)
		return
	}
	if !f.Involves(r.Store.ViewerID()) {
		r.Store.RemoveFriendship(f.ID)
		r.removed(events.KindFriendship)
		return
	}
	r.Store.PutFriendship(f)
	r.applied(events.KindFriendship)
}

// betVisible decide se a aposta pertence ao conjunto visível do viewer.
// Privacidade é tratada nas projeções, não aqui: um convite pode chegar
// depois da aposta privada, e a inconsistência transitória é tolerada.
func (r *Reconciler) betVisible(b *entities.Bet) bool {
	if b.Status.Terminal() {
		return false
	}
	viewer := r.Store.ViewerID()
	if b.CreatorID == viewer || b.HasParticipant(viewer) {
		return true
	}
	return b.Status == entities.BetActive
}

func (r *Reconciler) squaresVisible(g *entities.SquaresGame) bool {
	if g.Status.Terminal() {
		return false
	}
	viewer := r.Store.ViewerID()
	if g.CreatorID == viewer {
		return true
	}
	snap := r.Store.Snapshot()
	if _, ok := snap.PurchasedSquaresIDs[g.ID]; ok {
		return true
	}
	return g.Status == entities.SquaresActive
}

// normalizeBet aplica defaults de campos opcionais do payload bruto.
func normalizeBet(b *entities.Bet) {
	if b.Status == "" {
		b.Status = entities.BetSetup
	}
	if b.TotalPotCents < 0 {
		b.TotalPotCents = 0
	}
}

func normalizeSquares(g *entities.SquaresGame) {
	if g.Status == "" {
		g.Status = entities.SquaresSetup
	}
	if g.SquaresSold < 0 {
		g.SquaresSold = 0
	}
	if g.SquaresSold > 100 {
		g.SquaresSold = 100
	}
}

func payloadID(raw json.RawMessage) string {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.ID
}

func (r *Reconciler) applied(kind events.EntityKind) {
	if r.OnApplied != nil {
		r.OnApplied(kind)
	}
	if r.OnChange != nil {
		r.OnChange()
	}
}

func (r *Reconciler) removed(kind events.EntityKind) {
	if r.OnRemoved != nil {
		r.OnRemoved(kind)
	}
	if r.OnChange != nil {
		r.OnChange()
	}
}

func (r *Reconciler) dropped(kind events.EntityKind) {
	if r.OnDropped != nil {
		r.OnDropped(kind)
	}
}

func (r *Reconciler) anomaly(kind events.EntityKind) {
	if r.OnAnomaly != nil {
		r.OnAnomaly(kind)
	}
}
