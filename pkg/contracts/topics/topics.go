package topics

const (
	// Wagers
	WagerEvents = "wager_events"

	// Resultados de partidas vindos do servidor de jogo
	GameResults = "game_results"

	// DLQs
	GameResultsDLQ = "game_results_dlq"
)
