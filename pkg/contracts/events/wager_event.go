package events

import "time"

// Tipos de evento publicados no tópico "wager_events"
const (
	WagerCreated   = "WAGER_CREATED"
	WagerAccepted  = "WAGER_ACCEPTED"
	WagerCompleted = "WAGER_COMPLETED"
	WagerCancelled = "WAGER_CANCELLED"
)

// WagerEvent é emitido após cada transição confirmada de uma wager
// Valores monetários vão como string decimal com duas casas ("25.00")
type WagerEvent struct {
	Type        string    `json:"type"`
	WagerID     string    `json:"wager_id"`
	CreatorID   string    `json:"creator_id"`
	OpponentID  string    `json:"opponent_id,omitempty"`
	WinnerID    string    `json:"winner_id,omitempty"`
	Status      string    `json:"status"`
	Stake       string    `json:"stake"`
	PlatformFee string    `json:"platform_fee"`
	TotalPrize  string    `json:"total_prize"`
	Ts          time.Time `json:"ts"`
}
