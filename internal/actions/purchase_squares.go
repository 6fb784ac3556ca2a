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

// PurchaseResult é o desfecho terminal de uma compra de quadrados.
type PurchaseResult struct {
	PickIDs       []string
	TransactionID string
}

// PurchaseSquares compra os quadrados de índices informados em um bolão.
// Mesma forma de saga do JoinBet: patch otimista, saldo, efetivação com
// escrita condicional no servidor (squaresSold jamais passa de 100, mesmo com
// compras concorrentes), registro no razão com compensação em falha.
func (p *Pipeline) PurchaseSquares(ctx context.Context, gameID string, indices []int) (PurchaseResult, error) {
	viewer := p.Store.ViewerID()

	game, ok := p.Store.GetSquares(gameID)
	if !ok || game.Status != entities.SquaresActive {
		return PurchaseResult{}, ErrSquaresUnavailable
	}
	if len(indices) == 0 {
		return PurchaseResult{}, fmt.Errorf("no squares selected")
	}
	for _, idx := range indices {
		if idx < 0 || idx > 99 {
			return PurchaseResult{}, fmt.Errorf("square index %d out of range", idx)
		}
	}
	if game.SquaresSold+len(indices) > 100 {
		return PurchaseResult{}, ErrSquaresUnavailable
	}

	amountCents := game.PricePerSquareCents * int64(len(indices))
	opID := uuid.NewString()

	picks := make([]entities.SquarePick, 0, len(indices))
	refs := []store.Ref{{Kind: store.RefSquares, ID: gameID}}
	for _, idx := range indices {
		pick := entities.SquarePick{
			ID:          uuid.NewString(),
			GameID:      gameID,
			UserID:      viewer,
			Index:       idx,
			AmountCents: game.PricePerSquareCents,
			CreatedAt:   time.Now(),
		}
		picks = append(picks, pick)
		refs = append(refs, store.Ref{Kind: store.RefPick, ID: pick.ID})
	}

	// patch otimista
	cp := p.Store.Begin(opID, refs...)
	optimistic := game
	optimistic.SquaresSold += len(indices)
	optimistic.TotalPotCents += amountCents
	p.Store.PutSquares(optimistic)
	for _, pick := range picks {
		p.Store.PutPick(pick)
	}
	p.Store.MarkPending(cp)

	balance, err := p.Ledger.GetBalance(ctx, viewer)
	if err != nil {
		p.Store.Rollback(cp)
		return PurchaseResult{}, fmt.Errorf("balance check: %w", err)
	}
	if balance < amountCents {
		p.Store.Rollback(cp)
		return PurchaseResult{}, ErrInsufficientBalance
	}

	// revalida em leitura fresca antes da escrita mutante
	if fresh, ok := p.Store.GetSquares(gameID); !ok || fresh.Status != entities.SquaresActive {
		p.Store.Rollback(cp)
		return PurchaseResult{}, ErrSquaresUnavailable
	}

	if err := p.Platform.PurchaseSquares(ctx, gameID, viewer, picks); err != nil {
		// perdedor de corrida por quadrados concorrentes cai aqui
		p.Store.Rollback(cp)
		return PurchaseResult{}, ErrSquaresUnavailable
	}

	txID, err := p.Ledger.RecordSquaresPurchase(ctx, viewer, amountCents, gameID)
	if err != nil {
		// compra já efetivada: compensa antes de falhar
		for _, pick := range picks {
			if derr := p.Platform.DeletePick(ctx, pick.ID); derr != nil {
				p.Log.Error("compensating pick delete failed",
					zap.String("pickId", pick.ID), zap.Error(derr))
			}
		}
		p.Store.Rollback(cp)
		return PurchaseResult{}, ErrTransactionRecordingFailed
	}

	if p.Notifier != nil {
		p.Notifier.Notify(ctx, game.CreatorID, "SQUARES_PURCHASED", map[string]any{
			"gameId": gameID,
			"userId": viewer,
			"count":  len(indices),
		})
	}

	ids := make([]string, len(picks))
	for i, pick := range picks {
		ids[i] = pick.ID
	}
	return PurchaseResult{PickIDs: ids, TransactionID: txID}, nil
}
