package dto

import "github.com/spyderbr6/betty-sub004/pkg/contracts/entities"

type BalanceResponse struct {
	UserID       string `json:"userId"`
	BalanceCents int64  `json:"balance_cents"`
}

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}

// DebitRequest registra um débito imediato (BET_PLACED, SQUARES_PURCHASE).
type DebitRequest struct {
	UserID               string `json:"userId"`
	Type                 string `json:"type"`
	AmountCents          int64  `json:"amount_cents"`
	RelatedBetID         string `json:"related_bet_id,omitempty"`
	RelatedParticipantID string `json:"related_participant_id,omitempty"`
}

// SettlementRequest registra uma transação de liquidação (sem mover saldo).
type SettlementRequest struct {
	Transaction entities.Transaction `json:"transaction"`
}

type TransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

type FinalizeBetResponse struct {
	TransactionIDs []string `json:"transactionIds"`
}
