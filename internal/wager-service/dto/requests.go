package dto

import "encoding/json"

// Valores monetários trafegam como texto ("25.00") e são convertidos no handler

type CreateAccountRequest struct {
	InitialBalance string `json:"initial_balance" validate:"omitempty,numeric"`
}

type DepositRequest struct {
	Amount        string `json:"amount" validate:"required,numeric"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=32"` // default "pix"
	ExternalRef   string `json:"external_ref" validate:"omitempty,max=128"`
	Description   string `json:"description" validate:"omitempty,max=255"`
}

type WithdrawRequest struct {
	Amount        string `json:"amount" validate:"required,numeric"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=32"`
}

type CreateWagerRequest struct {
	CreatorID string `json:"creator_id" validate:"required"`
	Stake     string `json:"stake" validate:"required,numeric"`
}

type AcceptWagerRequest struct {
	OpponentID string `json:"opponent_id" validate:"required"`
}

type CompleteWagerRequest struct {
	WinnerID string          `json:"winner_id" validate:"required"`
	Result   json.RawMessage `json:"result,omitempty"` // dados da partida, opacos
}
