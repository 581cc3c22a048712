package wager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

const (
	DefaultPaymentMethod = "pix"
	InitialBalanceMethod = "initial"
)

// CreateAccount abre uma conta; saldo inicial positivo entra como depósito no ledger
func (s *Service) CreateAccount(ctx context.Context, initialBalance money.Amount) (domain.Account, error) {
	var acc domain.Account
	err := s.run(ctx, "create_account", func(ctx context.Context) error {
		if initialBalance.IsNegative() {
			return fmt.Errorf("initial balance %s: %w", initialBalance, domain.ErrInvalidAmount)
		}
		now := s.now()
		acc = domain.Account{
			ID:        s.newID(),
			Rating:    s.opts.InitialRating,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.store.Update(ctx, func(tx repo.Tx) error {
			if err := tx.CreateAccount(ctx, acc); err != nil {
				return err
			}
			if initialBalance.IsPositive() {
				if _, err := s.ledger.Credit(ctx, tx, acc.ID, initialBalance, ledger.Entry{
					Kind:          domain.KindDeposit,
					PaymentMethod: InitialBalanceMethod,
					Description:   "initial balance",
				}); err != nil {
					return err
				}
			}
			var err error
			acc, err = tx.Account(ctx, acc.ID)
			return err
		})
	}, zap.String("initialBalance", initialBalance.String()))
	if err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

// DepositInput descreve um depósito; ExternalRef (opcional) identifica a
// cobrança no meio de pagamento e torna o depósito idempotente
type DepositInput struct {
	AccountID   string
	Amount      money.Amount
	Method      string
	ExternalRef string
	Description string
}

// Deposit credita a conta e devolve a transação registrada
// Repetir a mesma ExternalRef devolve a transação original sem creditar de novo
func (s *Service) Deposit(ctx context.Context, in DepositInput) (domain.Transaction, error) {
	var out domain.Transaction
	err := s.run(ctx, "deposit", func(ctx context.Context) error {
		if !in.Amount.IsPositive() {
			return fmt.Errorf("deposit %s: %w", in.Amount, domain.ErrInvalidAmount)
		}
		if in.Method == "" {
			in.Method = DefaultPaymentMethod
		}

		guarded := in.ExternalRef != "" && s.guard != nil
		if guarded {
			prevID, err := s.guard.Begin(ctx, in.ExternalRef)
			if err != nil {
				return err
			}
			if prevID != "" {
				prev, err := s.store.GetTransaction(ctx, prevID)
				if err != nil {
					return err
				}
				if prev.AccountID != in.AccountID {
					return fmt.Errorf("external ref %s belongs to another account: %w", in.ExternalRef, domain.ErrDuplicateRequest)
				}
				out = prev
				return nil
			}
		}

		desc := in.Description
		if desc == "" && in.ExternalRef != "" {
			desc = "ref " + in.ExternalRef
		}
		err := s.store.Update(ctx, func(tx repo.Tx) error {
			if _, err := s.activeAccount(ctx, tx, in.AccountID); err != nil {
				return err
			}
			var err error
			out, err = s.ledger.Credit(ctx, tx, in.AccountID, in.Amount, ledger.Entry{
				Kind:          domain.KindDeposit,
				PaymentMethod: in.Method,
				Description:   desc,
			})
			return err
		})

		if guarded {
			// ctx pode já ter vencido (timeout da operação); o guard precisa ser liberado mesmo assim
			gctx, cancel := detached(ctx)
			defer cancel()
			if err != nil {
				if aerr := s.guard.Abort(gctx, in.ExternalRef); aerr != nil {
					s.log.Warn("abort deposit guard", zap.String("ref", in.ExternalRef), zap.Error(aerr))
				}
				return err
			}
			if cerr := s.guard.Complete(gctx, in.ExternalRef, out.ID); cerr != nil {
				s.log.Warn("complete deposit guard", zap.String("ref", in.ExternalRef), zap.Error(cerr))
			}
		}
		return err
	}, zap.String("accountId", in.AccountID), zap.String("amount", in.Amount.String()), zap.String("method", in.Method))
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// Withdraw debita a conta para um saque
func (s *Service) Withdraw(ctx context.Context, accountID string, amount money.Amount, method string) (domain.Transaction, error) {
	var out domain.Transaction
	err := s.run(ctx, "withdraw", func(ctx context.Context) error {
		if !amount.IsPositive() {
			return fmt.Errorf("withdraw %s: %w", amount, domain.ErrInvalidAmount)
		}
		if method == "" {
			method = DefaultPaymentMethod
		}
		return s.store.Update(ctx, func(tx repo.Tx) error {
			if _, err := s.activeAccount(ctx, tx, accountID); err != nil {
				return err
			}
			var err error
			out, err = s.ledger.Debit(ctx, tx, accountID, amount, ledger.Entry{
				Kind:          domain.KindWithdrawal,
				PaymentMethod: method,
				Description:   "withdrawal",
			})
			return err
		})
	}, zap.String("accountId", accountID), zap.String("amount", amount.String()))
	if err != nil {
		return domain.Transaction{}, err
	}
	return out, nil
}

// DeactivateAccount bloqueia novas movimentações; wagers em andamento ainda liquidam ou cancelam
func (s *Service) DeactivateAccount(ctx context.Context, accountID string) (domain.Account, error) {
	var acc domain.Account
	err := s.run(ctx, "deactivate_account", func(ctx context.Context) error {
		return s.store.Update(ctx, func(tx repo.Tx) error {
			if err := tx.LockAccounts(ctx, accountID); err != nil {
				return err
			}
			var err error
			if acc, err = tx.Account(ctx, accountID); err != nil {
				return err
			}
			if !acc.Active {
				return nil
			}
			acc.Active = false
			acc.UpdatedAt = s.now()
			return tx.UpdateAccount(ctx, acc)
		})
	}, zap.String("accountId", accountID))
	if err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

// activeAccount trava a conta e exige que esteja ativa
func (s *Service) activeAccount(ctx context.Context, tx repo.Tx, accountID string) (domain.Account, error) {
	if accountID == "" {
		return domain.Account{}, domain.NotFound("account", accountID)
	}
	if err := tx.LockAccounts(ctx, accountID); err != nil {
		return domain.Account{}, err
	}
	return requireActive(ctx, tx, accountID)
}

func requireActive(ctx context.Context, tx repo.Tx, accountID string) (domain.Account, error) {
	acc, err := tx.Account(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !acc.Active {
		return domain.Account{}, fmt.Errorf("account %s: %w", accountID, domain.ErrAccountInactive)
	}
	return acc, nil
}
