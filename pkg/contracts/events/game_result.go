package events

import (
	"encoding/json"
	"time"
)

// GameResult é consumido do tópico "game_results" e conclui a wager
type GameResult struct {
	WagerID  string          `json:"wager_id"`
	WinnerID string          `json:"winner_id"`
	GameData json.RawMessage `json:"game_data,omitempty"`
	Ts       time.Time       `json:"ts"`
}
