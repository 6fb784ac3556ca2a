package actions

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spyderbr6/betty-sub004/internal/sync/store"
	"github.com/spyderbr6/betty-sub004/pkg/contracts/entities"
)

// Resultados de regra de negócio, nomeados e apresentáveis ao usuário.
// Qualquer um deles chega com o estado local já restaurado (ou, no caso de
// ErrAlreadyJoined, tratado como sucesso idempotente).
var (
	ErrAlreadyJoined              = errors.New("already joined")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrBetNoLongerAvailable       = errors.New("bet no longer available")
	ErrSquaresUnavailable         = errors.New("squares no longer available")
	ErrTransactionRecordingFailed = errors.New("transaction recording failed")
)

// Platform é a API de mutação do armazenamento durável (wager-service).
type Platform interface {
	// GetParticipant retorna a posição existente de (betID, userID), ou
	// (nil, nil) quando não há. Usada na checagem de idempotência.
	GetParticipant(ctx context.Context, betID, userID string) (*entities.Participant, error)
	CreateParticipant(ctx context.Context, p entities.Participant) error
	// DeleteParticipant é a ação compensatória quando um passo dependente
	// falha após a criação já ter sido efetivada.
	DeleteParticipant(ctx context.Context, id string) error
	// ApplyBetJoin atualiza os contadores denormalizados da aposta
	// (contagem do lado, lista de participantes, pote).
	ApplyBetJoin(ctx context.Context, betID, userID, side string, amountCents int64) error

	UpdateInvitationStatus(ctx context.Context, id string, status entities.InvitationStatus) error

	// PurchaseSquares reserva os quadrados no servidor com escrita condicional
	// (squaresSold nunca passa de 100); perdedor de corrida recebe erro.
	PurchaseSquares(ctx context.Context, gameID, userID string, picks []entities.SquarePick) error
	DeletePick(ctx context.Context, id string) error
}

// Ledger é o colaborador externo de saldo e razão.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	// RecordBetPlacement registra a transação BET_PLACED; retorna o id da
	// transação criada.
	RecordBetPlacement(ctx context.Context, userID string, amountCents int64, betID, participantID, title, side string) (string, error)
	RecordSquaresPurchase(ctx context.Context, userID string, amountCents int64, gameID string) (string, error)
}

// Notifier despacha notificações em modo fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID, typ string, payload any)
}

// Pipeline executa mutações iniciadas pelo usuário com visibilidade otimista
// local e rollback garantido em qualquer rejeição do servidor.
//
// Cada operação é uma saga curta: valida -> aplica patch otimista ->
// chamadas remotas -> confirma ou compensa. Depois de qualquer chamada
// aguardada o pipeline sempre revalida contra uma leitura fresca do Store,
// nunca contra um snapshot anterior à espera.
type Pipeline struct {
	Log      *zap.Logger
	Store    *store.Store
	Platform Platform
	Ledger   Ledger
	Notifier Notifier
}
