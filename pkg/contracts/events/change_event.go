package events

import "encoding/json"

// Operação do change feed.
type Op string

const (
	OpCreated Op = "CREATED"
	OpUpdated Op = "UPDATED"
	OpDeleted Op = "DELETED"
)

// Tipo de entidade transportada no feed.
type EntityKind string

const (
	KindBet         EntityKind = "BET"
	KindSquaresGame EntityKind = "SQUARES_GAME"
	KindParticipant EntityKind = "PARTICIPANT"
	KindSquarePick  EntityKind = "SQUARE_PICK"
	KindInvitation  EntityKind = "INVITATION"
	KindFriendship  EntityKind = "FRIENDSHIP"
)

// ChangeEvent é o envelope publicado nos tópicos *_changes.
// CREATED/UPDATED carregam o registro completo; DELETED carrega ao menos o id.
// Entrega é at-least-once e sem garantia de ordem, inclusive dentro do mesmo id.
type ChangeEvent struct {
	Entity   EntityKind      `json:"entity"`
	Op       Op              `json:"op"`
	Payload  json.RawMessage `json:"payload"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}
