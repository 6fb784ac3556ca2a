package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// JoinResult é o desfecho terminal de uma operação de entrada em aposta.
type JoinResult struct {
	ParticipantID string
	AlreadyJoined bool
	TransactionID string
}

// JoinBet entra na aposta pelo lado e valor informados.
//
// Passos:
//  1. patch otimista local (contador do lado, lista de participantes, pote);
//  2. checagem de idempotência no servidor: posição existente para
//     (betId, viewer) é sucesso sem duplicata;
//  3. checagem de saldo no razão externo; insuficiente reverte o passo 1;
//  4. cria Participant, registra transação BET_PLACED e atualiza os
//     contadores denormalizados da aposta;
//  5. qualquer falha após o passo 1 restaura exatamente o snapshot anterior
//     (nunca uma correção parcial) e devolve um erro terminal.
//
// A notificação ao criador é best-effort e nunca desfaz a entrada.
func (p *Pipeline) JoinBet(ctx context.Context, betID, side string, amountCents int64) (JoinResult, error) {
	viewer := p.Store.ViewerID()

	bet, ok := p.Store.GetBet(betID)
	if !ok || bet.Status != entities.BetActive {
		return JoinResult{}, ErrBetNoLongerAvailable
	}
	if bet.CreatorID == viewer || bet.HasParticipant(viewer) {
		return JoinResult{AlreadyJoined: true}, nil
	}
	if amountCents <= 0 {
		return JoinResult{}, fmt.Errorf("stake must be positive, got %d", amountCents)
	}
	if side != bet.SideAName && side != bet.SideBName {
		return JoinResult{}, fmt.Errorf("unknown side %q", side)
	}

	opID := uuid.NewString()
	participantID := uuid.NewString()

	// 1) patch otimista: a UI reflete a entrada imediatamente
	cp := p.Store.Begin(opID,
		store.Ref{Kind: store.RefBet, ID: betID},
		store.Ref{Kind: store.RefParticipant, ID: participantID},
	)
	optimistic := bet
	optimistic.AddParticipant(viewer)
	optimistic.TotalPotCents += amountCents
	if side == optimistic.SideAName {
		optimistic.SideACount++
	} else {
		optimistic.SideBCount++
	}
	p.Store.PutBet(optimistic)
	p.Store.PutParticipant(entities.Participant{
		ID:          participantID,
		BetID:       betID,
		UserID:      viewer,
		Side:        side,
		AmountCents: amountCents,
		Status:      entities.ParticipantAccepted,
		CreatedAt:   time.Now(),
	})
	p.Store.MarkPending(cp)

	// 2) idempotência: no máximo uma posição ativa por (betId, userId)
	existing, err := p.Platform.GetParticipant(ctx, betID, viewer)
	if err != nil {
		p.Store.Rollback(cp)
		return JoinResult{}, fmt.Errorf("participant lookup: %w", err)
	}
	if existing != nil {
		// o registro do servidor já contabiliza o viewer; o patch local
		// duplicaria contadores, então volta e trata como sucesso
		p.Store.Rollback(cp)
		p.Store.PutParticipant(*existing)
		return JoinResult{ParticipantID: existing.ID, AlreadyJoined: true}, nil
	}

	// 3) saldo
	balance, err := p.Ledger.GetBalance(ctx, viewer)
	if err != nil {
		p.Store.Rollback(cp)
		return JoinResult{}, fmt.Errorf("balance check: %w", err)
	}
	if balance < amountCents {
		p.Store.Rollback(cp)
		return JoinResult{}, ErrInsufficientBalance
	}

	// revalida em leitura fresca: o Store pode ter recebido eventos durante
	// as esperas acima
	if fresh, ok := p.Store.GetBet(betID); !ok || fresh.Status != entities.BetActive {
		p.Store.Rollback(cp)
		return JoinResult{}, ErrBetNoLongerAvailable
	}

	// 4) efetiva no servidor
	participant := entities.Participant{
		ID:          participantID,
		BetID:       betID,
		UserID:      viewer,
		Side:        side,
		AmountCents: amountCents,
		Status:      entities.ParticipantAccepted,
		CreatedAt:   time.Now(),
	}
	if err := p.Platform.CreateParticipant(ctx, participant); err != nil {
		p.Store.Rollback(cp)
		return JoinResult{}, fmt.Errorf("create participant: %w", err)
	}

	txID, err := p.Ledger.RecordBetPlacement(ctx, viewer, amountCents, betID, participantID, bet.Title, side)
	if err != nil {
		// a criação do Participant já foi efetivada externamente: rollback
		// puro não basta, é preciso a deleção compensatória antes de falhar
		if derr := p.Platform.DeleteParticipant(ctx, participantID); derr != nil {
			p.Log.Error("compensating participant delete failed",
				zap.String("participantId", participantID), zap.Error(derr))
		}
		p.Store.Rollback(cp)
		return JoinResult{}, ErrTransactionRecordingFailed
	}

	if err := p.Platform.ApplyBetJoin(ctx, betID, viewer, side, amountCents); err != nil {
		p.Store.Rollback(cp)
		return JoinResult{}, fmt.Errorf("bet counters update: %w", err)
	}

	// notificação ao criador: falha é logada, nunca desfaz a entrada
	if p.Notifier != nil {
		p.Notifier.Notify(ctx, bet.CreatorID, "BET_JOINED", map[string]string{
			"betId":  betID,
			"userId": viewer,
			"side":   side,
		})
	}

	return JoinResult{ParticipantID: participantID, TransactionID: txID}, nil
}
