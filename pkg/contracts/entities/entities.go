package entities

import (
	"sort"
	"time"
)

// Bet é uma aposta de proposição entre usuários.
// Valores monetários sempre em centavos.
type Bet struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creatorId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      BetStatus `json:"status"`

	SideAName  string `json:"sideAName"`
	SideBName  string `json:"sideBName"`
	SideACount int    `json:"sideACount"`
	SideBCount int    `json:"sideBCount"`

	TotalPotCents  int64    `json:"totalPotCents"`
	ParticipantIDs []string `json:"participantIds,omitempty"` // userIds, mantidos ordenados

	Deadline            time.Time `json:"deadline,omitempty"`
	WinningSide         string    `json:"winningSide,omitempty"` // definido só em PENDING_RESOLUTION/RESOLVED
	DisputeWindowEndsAt time.Time `json:"disputeWindowEndsAt,omitempty"`
	IsPrivate           bool      `json:"isPrivate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasParticipant verifica se o usuário já consta na lista denormalizada.
func (b *Bet) HasParticipant(userID string) bool {
	for _, id := range b.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddParticipant insere o usuário mantendo a lista ordenada e sem duplicatas.
func (b *Bet) AddParticipant(userID string) {
	if b.HasParticipant(userID) {
		return
	}
	b.ParticipantIDs = append(b.ParticipantIDs, userID)
	sort.Strings(b.ParticipantIDs)
}

// RemoveParticipant remove o usuário da lista denormalizada.
func (b *Bet) RemoveParticipant(userID string) {
	out := b.ParticipantIDs[:0]
	for _, id := range b.ParticipantIDs {
		if id != userID {
			out = append(out, id)
		}
	}
	b.ParticipantIDs = out
}

// Participant é a posição de um usuário em uma aposta.
// No máximo um registro ativo por (betId, userId).
type Participant struct {
	ID          string            `json:"id"`
	BetID       string            `json:"betId"`
	UserID      string            `json:"userId"`
	Side        string            `json:"side"`
	AmountCents int64             `json:"amountCents"`
	Status      ParticipantStatus `json:"status"`
	PayoutCents int64             `json:"payoutCents"` // bruto, calculado na liquidação
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// SquaresGame é um bolão de grade 10x10 sobre o placar final de um evento.
type SquaresGame struct {
	ID        string        `json:"id"`
	CreatorID string        `json:"creatorId"`
	EventID   string        `json:"eventId"`
	Title     string        `json:"title,omitempty"`
	Status    SquaresStatus `json:"status"`

	PricePerSquareCents int64 `json:"pricePerSquareCents"`
	TotalPotCents       int64 `json:"totalPotCents"`
	SquaresSold         int   `json:"squaresSold"` // 0..100

	NumbersAssigned bool  `json:"numbersAssigned"`
	HomeDigits      []int `json:"homeDigits,omitempty"` // permutação de 0..9 nas colunas
	AwayDigits      []int `json:"awayDigits,omitempty"` // permutação de 0..9 nas linhas

	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SquarePick é a compra de um quadrado específico por um usuário.
// Index é a posição na grade (0..99, linha*10+coluna).
type SquarePick struct {
	ID          string    `json:"id"`
	GameID      string    `json:"gameId"`
	UserID      string    `json:"userId"`
	Index       int       `json:"index"`
	AmountCents int64     `json:"amountCents"`
	CreatedAt   time.Time `json:"createdAt"`
}

type InvitationKind string

const (
	InviteBet     InvitationKind = "BET"
	InviteSquares InvitationKind = "SQUARES"
)

// Invitation é um convite direcionado para uma aposta ou bolão.
// FromUserName e TargetTitle são preenchidos pelo reconciler via lookups.
type Invitation struct {
	ID         string           `json:"id"`
	Kind       InvitationKind   `json:"kind"`
	TargetID   string           `json:"targetId"`
	FromUserID string           `json:"fromUserId"`
	ToUserID   string           `json:"toUserId"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expiresAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`

	FromUserName string `json:"fromUserName,omitempty"`
	TargetTitle  string `json:"targetTitle,omitempty"`
}

// Transaction é um lançamento imutável do razão.
// Registros PENDING só podem transicionar para COMPLETED ou FAILED.
type Transaction struct {
	ID     string            `json:"id"`
	UserID string            `json:"userId"`
	Type   TransactionType   `json:"type"`
	Status TransactionStatus `json:"status"`

	AmountCents       int64 `json:"amountCents"`       // bruto
	PlatformFeeCents  int64 `json:"platformFeeCents"`  // taxa calculada na liquidação
	ActualAmountCents int64 `json:"actualAmountCents"` // líquido

	// Snapshots de saldo, apenas informativos (o razão é a fonte de verdade).
	BalanceBeforeCents int64 `json:"balanceBeforeCents"`
	BalanceAfterCents  int64 `json:"balanceAfterCents"`

	RelatedBetID         string    `json:"relatedBetId,omitempty"`
	RelatedParticipantID string    `json:"relatedParticipantId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Friendship é uma relação não direcionada, materializada como par ordenado.
type Friendship struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1Id"`
	User2ID   string    `json:"user2Id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Involves faz o teste de pertencimento simétrico.
func (f *Friendship) Involves(userID string) bool {
	return f.User1ID == userID || f.User2ID == userID
}

// Other retorna o outro lado da amizade, ou vazio se o usuário não participa.
func (f *Friendship) Other(userID string) string {
	switch userID {
	case f.User1ID:
		return f.User2ID
	case f.User2ID:
		return f.User1ID
	}
	return ""
}

// UserProfile é o subconjunto de perfil necessário para enriquecer convites.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
