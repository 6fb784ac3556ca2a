package events

import "encoding/json"

// Notification é publicada no tópico notifications em modo fire-and-forget.
// Falha de publicação nunca bloqueia o fluxo que a originou.
type Notification struct {
	UserID   string          `json:"userId"`
	Type     string          `json:"type"` // ex: BET_JOINED, INVITE_RECEIVED, BET_RESOLVED
	Payload  json.RawMessage `json:"payload,omitempty"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}
