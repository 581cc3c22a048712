package domain

import (
	"encoding/json"
	"time"

	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// DefaultRating é o rating inicial de toda conta
const DefaultRating = 1000

// Account é a carteira de um usuário; Balance é a única fonte de "saldo disponível"
type Account struct {
	ID            string       `db:"id" json:"id"`
	Balance       money.Amount `db:"balance" json:"balance"`
	Rating        int          `db:"skill_rating" json:"skill_rating"`
	GamesPlayed   int          `db:"games_played" json:"games_played"`
	GamesWon      int          `db:"games_won" json:"games_won"`
	TotalEarnings money.Amount `db:"total_earnings" json:"total_earnings"`
	Active        bool         `db:"active" json:"active"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

type WagerStatus string

const (
	WagerOpen      WagerStatus = "open"
	WagerActive    WagerStatus = "active"
	WagerCompleted WagerStatus = "completed"
	WagerCancelled WagerStatus = "cancelled"
)

// Terminal indica estados sem saída (completed, cancelled)
func (s WagerStatus) Terminal() bool { return s == WagerCompleted || s == WagerCancelled }

// Wager é uma disputa entre dois jogadores com o mesmo valor apostado
type Wager struct {
	ID             string          `db:"id" json:"id"`
	CreatorID      string          `db:"creator_id" json:"creator_id"`
	OpponentID     string          `db:"opponent_id" json:"opponent_id,omitempty"`
	Stake          money.Amount    `db:"stake" json:"stake"`
	PlatformFee    money.Amount    `db:"platform_fee" json:"platform_fee"`
	TotalPrize     money.Amount    `db:"total_prize" json:"total_prize"`
	Status         WagerStatus     `db:"status" json:"status"`
	StakeCommitted bool            `db:"stake_committed" json:"stake_committed"`
	WinnerID       string          `db:"winner_id" json:"winner_id,omitempty"`
	Result         json.RawMessage `db:"-" json:"result,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	AcceptedAt     *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// IsParticipant indica se a conta é criador ou oponente
func (w Wager) IsParticipant(accountID string) bool {
	return accountID != "" && (accountID == w.CreatorID || accountID == w.OpponentID)
}

// Loser devolve o outro participante de uma wager ativa
func (w Wager) Loser(winnerID string) string {
	if winnerID == w.CreatorID {
		return w.OpponentID
	}
	return w.CreatorID
}

type TxKind string

const (
	KindDeposit     TxKind = "deposit"
	KindWithdrawal  TxKind = "withdrawal"
	KindStakeDebit  TxKind = "stake_debit"
	KindStakeRefund TxKind = "stake_refund"
	KindPrizeCredit TxKind = "prize_credit"
	// KindPlatformFee é reservado: a taxa é registrada em PlatformRevenueEntry,
	// não como movimento de conta
	KindPlatformFee TxKind = "platform_fee"
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// Transaction é uma entrada imutável do ledger; Amount tem sinal (débito negativo)
type Transaction struct {
	ID            string       `db:"id" json:"id"`
	AccountID     string       `db:"account_id" json:"account_id"`
	Kind          TxKind       `db:"kind" json:"kind"`
	Amount        money.Amount `db:"amount" json:"amount"`
	WagerID       string       `db:"wager_id" json:"wager_id,omitempty"`
	Status        TxStatus     `db:"status" json:"status"`
	PaymentMethod string       `db:"payment_method" json:"payment_method,omitempty"`
	Description   string       `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

type EscrowStatus string

const (
	EscrowHolding  EscrowStatus = "holding"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

// EscrowRecord guarda os valores retidos de uma wager ativa (no máximo um por wager)
type EscrowRecord struct {
	ID            string       `db:"id" json:"id"`
	WagerID       string       `db:"wager_id" json:"wager_id"`
	Player1ID     string       `db:"player1_id" json:"player1_id"`
	Player2ID     string       `db:"player2_id" json:"player2_id"`
	Player1Amount money.Amount `db:"player1_amount" json:"player1_amount"`
	Player2Amount money.Amount `db:"player2_amount" json:"player2_amount"`
	PlatformFee   money.Amount `db:"platform_fee" json:"platform_fee"`
	TotalHeld     money.Amount `db:"total_held" json:"total_held"`
	Status        EscrowStatus `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time   `db:"resolved_at" json:"resolved_at,omitempty"`
}

// RevenueEntry registra a taxa coletada numa wager concluída; criado uma vez, imutável
type RevenueEntry struct {
	ID          string       `db:"id" json:"id"`
	WagerID     string       `db:"wager_id" json:"wager_id"`
	Amount      money.Amount `db:"amount" json:"amount"`
	FeeRate     string       `db:"fee_rate" json:"fee_rate"`
	CollectedAt time.Time    `db:"collected_at" json:"collected_at"`
}
