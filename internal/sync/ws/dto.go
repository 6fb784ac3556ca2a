package ws

import (
	"encoding/json"

	"github.com/spyderbr6/betty-sub004/internal/sync/views"
)

// ClientMsg é a mensagem de entrada do cliente WebSocket.
type ClientMsg struct {
	Type string `json:"type"` // join_bet | accept_invitation | decline_invitation | purchase_squares | ping

	BetID       string `json:"betId,omitempty"`
	InviteID    string `json:"inviteId,omitempty"`
	GameID      string `json:"gameId,omitempty"`
	Side        string `json:"side,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Indices     []int  `json:"indices,omitempty"`
}

// ServerMsg é a mensagem de saída para o cliente.
type ServerMsg struct {
	Type string `json:"type"` // projection | result | notification | pong

	Projection *views.Projection `json:"projection,omitempty"`

	Action        string `json:"action,omitempty"`
	OK            bool   `json:"ok,omitempty"`
	Error         string `json:"error,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	AlreadyJoined bool   `json:"alreadyJoined,omitempty"`

	Notification json.RawMessage `json:"notification,omitempty"`
}
