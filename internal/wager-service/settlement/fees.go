package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// DefaultFeeRate é a taxa da plataforma sobre o pote (5%)
var DefaultFeeRate = decimal.RequireFromString("0.05")

// Fees é o resultado do cálculo de taxa de uma wager
type Fees struct {
	Pot        money.Amount
	Fee        money.Amount
	TotalPrize money.Amount
}

// ComputeFees calcula a partir de uma única stake, supondo que o oponente cobre o mesmo valor:
// fee = round(stake*2*rate, 2) e prêmio = stake*2 - fee
func ComputeFees(stake money.Amount, rate decimal.Decimal) (Fees, error) {
	if !stake.IsPositive() {
		return Fees{}, fmt.Errorf("stake %s: %w", stake, domain.ErrInvalidAmount)
	}
	pot := stake.MulInt(2)
	if !pot.InRange() {
		return Fees{}, fmt.Errorf("pot %s exceeds %s: %w", pot, money.Max, domain.ErrInvalidAmount)
	}
	fee := pot.MulRound(rate)
	return Fees{Pot: pot, Fee: fee, TotalPrize: pot.Sub(fee)}, nil
}

// ValidateRate aceita taxas em [0, 1)
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("platform fee rate %s outside [0, 1)", rate)
	}
	return nil
}
