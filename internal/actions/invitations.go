package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// AcceptInvitation aceita um convite de aposta: revalida que a aposta segue
// ACTIVE e que o saldo cobre o valor, então entra via JoinBet. O convite só é
// removido do estado local após a resposta terminal do servidor: aceitar é a
// própria ação autoritativa, então não há remoção otimista prévia.
func (p *Pipeline) AcceptInvitation(ctx context.Context, inviteID, side string, amountCents int64) (JoinResult, error) {
	inv, ok := p.Store.GetInvitation(inviteID)
	if !ok || inv.Status != entities.InvitePending {
		return JoinResult{}, ErrBetNoLongerAvailable
	}
	if inv.Kind != entities.InviteBet {
		return JoinResult{}, fmt.Errorf("invitation %s is not a bet invitation", inviteID)
	}

	res, err := p.JoinBet(ctx, inv.TargetID, side, amountCents)
	if err != nil {
		return JoinResult{}, err
	}

	if uerr := p.Platform.UpdateInvitationStatus(ctx, inviteID, entities.InviteAccepted); uerr != nil {
		// a entrada já foi efetivada; o status do convite converge pelo feed
		p.Log.Warn("invitation status update failed after join",
			zap.String("inviteId", inviteID), zap.Error(uerr))
		return res, nil
	}
	p.Store.RemoveInvitation(inviteID)
	return res, nil
}

// DeclineInvitation recusa um convite: transição pura de status no servidor,
// seguida da remoção local somente após a confirmação.
func (p *Pipeline) DeclineInvitation(ctx context.Context, inviteID string) error {
	inv, ok := p.Store.GetInvitation(inviteID)
	if !ok {
		return nil // já removido; recusar de novo é no-op
	}
	if inv.Status != entities.InvitePending {
		p.Store.RemoveInvitation(inviteID)
		return nil
	}
	if err := p.Platform.UpdateInvitationStatus(ctx, inviteID, entities.InviteDeclined); err != nil {
		return fmt.Errorf("decline invitation: %w", err)
	}
	p.Store.RemoveInvitation(inviteID)
	return nil
}
