package domain

import (
	"errors"
	"fmt"
)

// Tipos de erro do núcleo; o adaptador HTTP traduz cada um em status
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNotFound             = errors.New("not found")
	ErrWagerNotOpen         = errors.New("wager not open")
	ErrWagerNotActive       = errors.New("wager not active")
	ErrWagerAlreadyTerminal = errors.New("wager already terminal")
	ErrSelfMatchNotAllowed  = errors.New("self match not allowed")
	ErrInvalidWinner        = errors.New("invalid winner")
	ErrEscrowAlreadyFinal   = errors.New("escrow already final")
	ErrEscrowExists         = errors.New("escrow already exists for wager")
	ErrAccountInactive      = errors.New("account inactive")
	ErrDuplicateRequest     = errors.New("duplicate request in flight")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// Unavailable marca uma falha de infraestrutura, preservando a causa
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// NotFound anota qual entidade não existe
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// IsDomain indica se err é uma rejeição de regra de negócio (e não falha de sistema)
func IsDomain(err error) bool {
	for _, e := range []error{
		ErrInvalidAmount, ErrInsufficientFunds, ErrNotFound, ErrWagerNotOpen,
		ErrWagerNotActive, ErrWagerAlreadyTerminal, ErrSelfMatchNotAllowed,
		ErrInvalidWinner, ErrEscrowAlreadyFinal, ErrEscrowExists,
		ErrAccountInactive, ErrDuplicateRequest,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
