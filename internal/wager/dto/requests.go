package dto

type CreateBetRequest struct {
	CreatorID   string `json:"creatorId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	SideAName   string `json:"sideAName"`
	SideBName   string `json:"sideBName"`
	Deadline    string `json:"deadline,omitempty"` // RFC3339
	IsPrivate   bool   `json:"isPrivate"`
}

type JoinBetRequest struct {
	UserID      string `json:"userId"`
	Side        string `json:"side"`
	AmountCents int64  `json:"amount_cents"`
}

type ResolveBetRequest struct {
	CallerID    string `json:"callerId"`
	WinningSide string `json:"winningSide"`
}

type CreateSquaresRequest struct {
	CreatorID           string `json:"creatorId"`
	EventID             string `json:"eventId"`
	Title               string `json:"title,omitempty"`
	PricePerSquareCents int64  `json:"price_per_square_cents"`
	IsPrivate           bool   `json:"isPrivate"`
}

type PurchaseSquaresRequest struct {
	UserID string `json:"userId"`
	// Picks vem com id gerado no cliente, preservando idempotência do replay.
	Picks []PickRequest `json:"picks"`
}

type PickRequest struct {
	ID    string `json:"id,omitempty"`
	Index int    `json:"index"`
}

type ResolveSquaresRequest struct {
	CallerID  string `json:"callerId"`
	HomeScore int    `json:"homeScore"`
	AwayScore int    `json:"awayScore"`
}

type CreateInvitationRequest struct {
	Kind       string `json:"kind"` // BET | SQUARES
	TargetID   string `json:"targetId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	ExpiresAt  string `json:"expiresAt,omitempty"` // RFC3339
}

type InvitationStatusRequest struct {
	Status string `json:"status"` // ACCEPTED | DECLINED
}

type CreateFriendshipRequest struct {
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
}
