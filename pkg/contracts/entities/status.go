package entities

// Enums de status das entidades do domínio.
// Os ranks definem a ordem monotônica usada pelo reconciler:
// um evento que moveria a entidade "para trás" é rejeitado.

type BetStatus string

const (
	BetSetup             BetStatus = "SETUP"
	BetActive            BetStatus = "ACTIVE"
	BetPendingResolution BetStatus = "PENDING_RESOLUTION"
	BetResolved          BetStatus = "RESOLVED"
	BetCancelled         BetStatus = "CANCELLED"
)

// Rank retorna a posição do status na progressão SETUP->ACTIVE->PENDING_RESOLUTION->RESOLVED.
// CANCELLED é terminal a partir de qualquer estado não-terminal, então recebe rank máximo.
// Status desconhecido retorna -1.
func (s BetStatus) Rank() int {
	switch s {
	case BetSetup:
		return 0
	case BetActive:
		return 1
	case BetPendingResolution:
		return 2
	case BetResolved, BetCancelled:
		return 3
	}
	return -1
}

// Terminal indica se o status encerra o ciclo de vida da aposta.
func (s BetStatus) Terminal() bool {
	return s == BetResolved || s == BetCancelled
}

type SquaresStatus string

const (
	SquaresSetup     SquaresStatus = "SETUP"
	SquaresActive    SquaresStatus = "ACTIVE"
	SquaresLocked    SquaresStatus = "LOCKED"
	SquaresLive      SquaresStatus = "LIVE"
	SquaresResolved  SquaresStatus = "RESOLVED"
	SquaresCancelled SquaresStatus = "CANCELLED"
)

func (s SquaresStatus) Rank() int {
	switch s {
	case SquaresSetup:
		return 0
	case SquaresActive:
		return 1
	case SquaresLocked:
		return 2
	case SquaresLive:
		return 3
	case SquaresResolved, SquaresCancelled:
		return 4
	}
	return -1
}

func (s SquaresStatus) Terminal() bool {
	return s == SquaresResolved || s == SquaresCancelled
}

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "PENDING"
	ParticipantAccepted ParticipantStatus = "ACCEPTED"
	ParticipantDeclined ParticipantStatus = "DECLINED"
)

type InvitationStatus string

const (
	InvitePending  InvitationStatus = "PENDING"
	InviteAccepted InvitationStatus = "ACCEPTED"
	InviteDeclined InvitationStatus = "DECLINED"
	InviteExpired  InvitationStatus = "EXPIRED"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

type TransactionType string

const (
	TxBetPlaced       TransactionType = "BET_PLACED"
	TxBetWon          TransactionType = "BET_WON"
	TxBetLost         TransactionType = "BET_LOST"
	TxBetRefunded     TransactionType = "BET_REFUNDED"
	TxSquaresPurchase TransactionType = "SQUARES_PURCHASE"
	TxSquaresWon      TransactionType = "SQUARES_WON"
)
