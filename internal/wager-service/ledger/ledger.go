package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// Entry descreve um movimento a registrar
type Entry struct {
	Kind          domain.TxKind
	WagerID       string
	PaymentMethod string
	Description   string
}

// Ledger aplica débitos e créditos: a alteração de saldo e a entrada no log
// acontecem na mesma unidade de trabalho, então ou ambas valem ou nenhuma
type Ledger struct {
	now   func() time.Time
	newID func() string
}

func New() *Ledger {
	return &Ledger{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithClock troca o relógio (testes)
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Debit retira amount da conta; falha com ErrInsufficientFunds sem alterar nada
// A conta precisa estar travada em tx
func (l *Ledger) Debit(ctx context.Context, tx repo.Tx, accountID string, amount money.Amount, e Entry) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("debit %s: %w", amount, domain.ErrInvalidAmount)
	}
	acc, err := tx.Account(ctx, accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if acc.Balance.LessThan(amount) {
		return domain.Transaction{}, fmt.Errorf("account %s balance %s < %s: %w", accountID, acc.Balance, amount, domain.ErrInsufficientFunds)
	}
	return l.apply(ctx, tx, acc, amount.Neg(), e)
}

// Credit adiciona amount à conta
func (l *Ledger) Credit(ctx context.Context, tx repo.Tx, accountID string, amount money.Amount, e Entry) (domain.Transaction, error) {
	if !amount.IsPositive() {
		return domain.Transaction{}, fmt.Errorf("credit %s: %w", amount, domain.ErrInvalidAmount)
	}
	acc, err := tx.Account(ctx, accountID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return l.apply(ctx, tx, acc, amount, e)
}

func (l *Ledger) apply(ctx context.Context, tx repo.Tx, acc domain.Account, signed money.Amount, e Entry) (domain.Transaction, error) {
	next := acc.Balance.Add(signed)
	if !signed.InRange() || !next.InRange() {
		return domain.Transaction{}, fmt.Errorf("account %s balance %s plus %s exceeds %s: %w", acc.ID, acc.Balance, signed, money.Max, domain.ErrInvalidAmount)
	}
	now := l.now()
	acc.Balance = next
	acc.UpdatedAt = now
	if err := tx.UpdateAccount(ctx, acc); err != nil {
		return domain.Transaction{}, err
	}

	t := domain.Transaction{
		ID:            l.newID(),
		AccountID:     acc.ID,
		Kind:          e.Kind,
		Amount:        signed,
		WagerID:       e.WagerID,
		Status:        domain.TxCompleted,
		PaymentMethod: e.PaymentMethod,
		Description:   e.Description,
		CreatedAt:     now,
	}
	if err := tx.AppendTransaction(ctx, t); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// Balance lê o saldo confirmado
func (l *Ledger) Balance(ctx context.Context, r repo.Reader, accountID string) (money.Amount, error) {
	acc, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return money.Zero, err
	}
	return acc.Balance, nil
}
