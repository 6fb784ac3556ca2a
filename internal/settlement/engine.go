package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

var (
	// ErrNotResolvable: aposta inexistente ou fora do estado ACTIVE.
	ErrNotResolvable = errors.New("bet not resolvable")
	// ErrResolutionRace: a escrita condicional perdeu a corrida; outra
	// resolução já transicionou o status. Nenhum efeito colateral.
	ErrResolutionRace = errors.New("resolution already in progress")
	// ErrNotCreator: apenas o criador resolve a própria aposta.
	ErrNotCreator = errors.New("only the creator can resolve")
)

// Repo é o acesso durável usado pela liquidação.
type Repo interface {
	GetBet(ctx context.Context, id string) (entities.Bet, error)
	ListParticipants(ctx context.Context, betID string) ([]entities.Participant, error)
	// BeginBetResolution grava winningSide e disputeWindowEndsAt com escrita
	// condicional sobre status == ACTIVE. Retorna ErrStatusConflict do repo
	// quando a condição falha (corrida perdida).
	BeginBetResolution(ctx context.Context, betID, winningSide string, disputeEndsAt time.Time) error
	SetParticipantPayout(ctx context.Context, participantID string, payoutCents int64) error

	GetSquares(ctx context.Context, id string) (entities.SquaresGame, error)
	ListPicks(ctx context.Context, gameID string) ([]entities.SquarePick, error)
	// ResolveSquaresGame transiciona LIVE -> RESOLVED condicionalmente.
	ResolveSquaresGame(ctx context.Context, gameID string) error
}

// ErrStatusConflict deve ser retornado pelo Repo quando a escrita condicional
// encontra um status diferente do esperado.
var ErrStatusConflict = errors.New("status conflict")

// Ledger registra os lançamentos imutáveis produzidos pela liquidação.
type Ledger interface {
	RecordSettlement(ctx context.Context, tx entities.Transaction) (string, error)
}

// Notifier despacha notificações best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID, typ string, payload any)
}

// Engine resolve apostas e bolões.
//
// A resolução acontece no máximo uma vez por aposta: a transição
// ACTIVE -> PENDING_RESOLUTION é uma escrita condicional, e o perdedor de uma
// corrida (ex: duplo toque do criador) observa o conflito e aborta sem
// nenhuma escrita. Fundos não se movem aqui: vencedores recebem transações
// PENDING que o finalizador efetiva depois da janela de disputa.
type Engine struct {
	Log      *zap.Logger
	Repo     Repo
	Ledger   Ledger
	Notifier Notifier

	FeeBps        int
	DisputeWindow time.Duration
	Now           func() time.Time // injetável em teste; default time.Now
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ResolveBet executa a liquidação de uma aposta pelo lado vencedor W.
func (e *Engine) ResolveBet(ctx context.Context, betID, callerID, winningSide string) error {
	bet, err := e.Repo.GetBet(ctx, betID)
	if err != nil {
		return fmt.Errorf("load bet: %w", err)
	}
	if bet.CreatorID != callerID {
		return ErrNotCreator
	}
	if bet.Status != entities.BetActive {
		return ErrNotResolvable
	}
	if winningSide != bet.SideAName && winningSide != bet.SideBName {
		return fmt.Errorf("unknown winning side %q", winningSide)
	}

	disputeEndsAt := e.now().Add(e.DisputeWindow)

	// guarda de concorrência: só um resolvedor passa daqui
	if err := e.Repo.BeginBetResolution(ctx, betID, winningSide, disputeEndsAt); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return ErrResolutionRace
		}
		return fmt.Errorf("begin resolution: %w", err)
	}

	parts, err := e.Repo.ListParticipants(ctx, betID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}

	lines := ComputePayouts(bet.TotalPotCents, parts, winningSide, e.FeeBps)

	var firstErr error
	for _, line := range lines {
		if err := e.Repo.SetParticipantPayout(ctx, line.Participant.ID, line.GrossCents); err != nil {
			e.Log.Error("participant payout write failed",
				zap.String("participantId", line.Participant.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		tx := entities.Transaction{
			UserID:               line.Participant.UserID,
			Type:                 line.Outcome,
			AmountCents:          line.GrossCents,
			PlatformFeeCents:     line.FeeCents,
			ActualAmountCents:    line.NetCents,
			RelatedBetID:         betID,
			RelatedParticipantID: line.Participant.ID,
		}
		switch line.Outcome {
		case entities.TxBetLost:
			// registro de perda com valor zero, para auditoria e disputa
			tx.Status = entities.TxCompleted
		default:
			// fundos só se movem quando o finalizador completar
			tx.Status = entities.TxPending
		}
		if _, err := e.Ledger.RecordSettlement(ctx, tx); err != nil {
			e.Log.Error("settlement transaction record failed",
				zap.String("participantId", line.Participant.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if e.Notifier != nil {
			e.Notifier.Notify(ctx, line.Participant.UserID, "BET_RESOLVED", map[string]any{
				"betId":       betID,
				"outcome":     string(line.Outcome),
				"payoutCents": line.NetCents,
			})
		}
	}

	if firstErr != nil {
		return fmt.Errorf("resolution completed with errors: %w", firstErr)
	}
	return nil
}

// ResolveSquares liquida um bolão a partir do placar final. O quadrado
// vencedor é o que casa com os últimos dígitos do placar; vencedor leva o
// pote menos a taxa. Quadrado vencedor não vendido cai na política de
// reembolso integral, igual ao caso sem vencedores da aposta.
func (e *Engine) ResolveSquares(ctx context.Context, gameID, callerID string, homeScore, awayScore int) error {
	game, err := e.Repo.GetSquares(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load squares game: %w", err)
	}
	if game.CreatorID != callerID {
		return ErrNotCreator
	}
	if game.Status != entities.SquaresLive {
		return ErrNotResolvable
	}

	winIdx := WinningSquareIndex(&game, homeScore, awayScore)
	if winIdx < 0 {
		return fmt.Errorf("grid numbers not assigned for game %s", gameID)
	}

	if err := e.Repo.ResolveSquaresGame(ctx, gameID); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return ErrResolutionRace
		}
		return fmt.Errorf("resolve squares game: %w", err)
	}

	picks, err := e.Repo.ListPicks(ctx, gameID)
	if err != nil {
		return fmt.Errorf("list picks: %w", err)
	}

	var winner *entities.SquarePick
	for i := range picks {
		if picks[i].Index == winIdx {
			winner = &picks[i]
			break
		}
	}

	var firstErr error
	record := func(tx entities.Transaction) {
		if _, err := e.Ledger.RecordSettlement(ctx, tx); err != nil {
			e.Log.Error("squares settlement record failed",
				zap.String("gameId", gameID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if winner == nil {
		// quadrado vencedor não vendido: reembolso integral das compras
		for _, p := range picks {
			record(entities.Transaction{
				UserID:            p.UserID,
				Type:              entities.TxBetRefunded,
				Status:            entities.TxPending,
				AmountCents:       p.AmountCents,
				ActualAmountCents: p.AmountCents,
				RelatedBetID:      gameID,
			})
		}
		return firstErr
	}

	fee := platformFee(game.TotalPotCents, e.FeeBps)
	record(entities.Transaction{
		UserID:            winner.UserID,
		Type:              entities.TxSquaresWon,
		Status:            entities.TxPending,
		AmountCents:       game.TotalPotCents,
		PlatformFeeCents:  fee,
		ActualAmountCents: game.TotalPotCents - fee,
		RelatedBetID:      gameID,
	})
	if e.Notifier != nil {
		e.Notifier.Notify(ctx, winner.UserID, "SQUARES_WON", map[string]any{
			"gameId":      gameID,
			"square":      winIdx,
			"payoutCents": game.TotalPotCents - fee,
		})
	}
	return firstErr
}
