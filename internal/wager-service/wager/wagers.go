package wager

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/shared/metrics"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/settlement"
	"github.com/radieske/pool-wager-escrow/pkg/contracts/events"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// CreateWager abre uma wager com taxa e prêmio calculados a partir da stake do criador
// Com CommitOnCreate a stake já é debitada aqui
func (s *Service) CreateWager(ctx context.Context, creatorID string, stake money.Amount) (domain.Wager, error) {
	var w domain.Wager
	err := s.run(ctx, "create_wager", func(ctx context.Context) error {
		fees, err := s.engine.Fees(stake)
		if err != nil {
			return err
		}
		err = s.store.Update(ctx, func(tx repo.Tx) error {
			creator, err := s.activeAccount(ctx, tx, creatorID)
			if err != nil {
				return err
			}
			if creator.Balance.LessThan(stake) {
				return fmt.Errorf("creator %s balance %s < stake %s: %w", creatorID, creator.Balance, stake, domain.ErrInsufficientFunds)
			}

			w = domain.Wager{
				ID:          s.newID(),
				CreatorID:   creatorID,
				Stake:       stake,
				PlatformFee: fees.Fee,
				TotalPrize:  fees.TotalPrize,
				Status:      domain.WagerOpen,
				CreatedAt:   s.now(),
			}
			// a wager precisa existir antes da transação que a referencia
			if err := tx.PutWager(ctx, w); err != nil {
				return err
			}
			if s.opts.StakeCommit != CommitOnCreate {
				return nil
			}
			if err := s.commitStake(ctx, tx, &w); err != nil {
				return err
			}
			return tx.PutWager(ctx, w)
		})
		if err != nil {
			return err
		}
		s.publish(ctx, events.WagerCreated, w)
		return nil
	}, zap.String("creatorId", creatorID), zap.String("stake", stake.String()))
	if err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// commitStake debita a stake do criador; a conta já deve estar travada
func (s *Service) commitStake(ctx context.Context, tx repo.Tx, w *domain.Wager) error {
	if w.StakeCommitted {
		return nil
	}
	if _, err := s.ledger.Debit(ctx, tx, w.CreatorID, w.Stake, ledger.Entry{
		Kind:        domain.KindStakeDebit,
		WagerID:     w.ID,
		Description: "stake for wager " + w.ID,
	}); err != nil {
		return err
	}
	w.StakeCommitted = true
	return nil
}

// AcceptWager casa o oponente, debita as stakes pendentes e cria o escrow
func (s *Service) AcceptWager(ctx context.Context, wagerID, opponentID string) (domain.Wager, error) {
	var w domain.Wager
	err := s.run(ctx, "accept_wager", func(ctx context.Context) error {
		err := s.store.Update(ctx, func(tx repo.Tx) error {
			var err error
			if w, err = tx.LockWager(ctx, wagerID); err != nil {
				return err
			}
			if w.Status != domain.WagerOpen {
				return fmt.Errorf("wager %s is %s: %w", w.ID, w.Status, domain.ErrWagerNotOpen)
			}
			if opponentID == w.CreatorID {
				return fmt.Errorf("account %s: %w", opponentID, domain.ErrSelfMatchNotAllowed)
			}
			if opponentID == "" {
				return domain.NotFound("account", opponentID)
			}
			if err := tx.LockAccounts(ctx, w.CreatorID, opponentID); err != nil {
				return err
			}
			if _, err := requireActive(ctx, tx, opponentID); err != nil {
				return err
			}

			if err := s.commitStake(ctx, tx, &w); err != nil {
				return err
			}
			if _, err := s.ledger.Debit(ctx, tx, opponentID, w.Stake, ledger.Entry{
				Kind:        domain.KindStakeDebit,
				WagerID:     w.ID,
				Description: "stake for wager " + w.ID,
			}); err != nil {
				return err
			}

			now := s.now()
			w.OpponentID = opponentID
			w.Status = domain.WagerActive
			w.AcceptedAt = &now
			if err := tx.PutWager(ctx, w); err != nil {
				return err
			}
			_, err = s.escrow.Hold(ctx, tx, w)
			return err
		})
		if err != nil {
			return err
		}
		s.publish(ctx, events.WagerAccepted, w)
		return nil
	}, zap.String("wagerId", wagerID), zap.String("opponentId", opponentID))
	if err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// CompleteWager liquida uma wager ativa em favor de winnerID
// result é guardado como veio, só para auditoria
func (s *Service) CompleteWager(ctx context.Context, wagerID, winnerID string, result json.RawMessage) (domain.Wager, error) {
	var res settlement.Result
	err := s.run(ctx, "complete_wager", func(ctx context.Context) error {
		if len(result) > 0 && !json.Valid(result) {
			// payload opaco: guarda como string JSON
			result, _ = json.Marshal(string(result))
		}
		err := s.store.Update(ctx, func(tx repo.Tx) error {
			w, err := tx.LockWager(ctx, wagerID)
			if err != nil {
				return err
			}
			if w.Status != domain.WagerActive {
				return fmt.Errorf("wager %s is %s: %w", w.ID, w.Status, domain.ErrWagerNotActive)
			}
			if !w.IsParticipant(winnerID) {
				return fmt.Errorf("winner %q for wager %s: %w", winnerID, w.ID, domain.ErrInvalidWinner)
			}
			if err := tx.LockAccounts(ctx, w.CreatorID, w.OpponentID); err != nil {
				return err
			}
			res, err = s.engine.Settle(ctx, tx, w, winnerID, result)
			return err
		})
		if err != nil {
			return err
		}
		fee, _ := res.Revenue.Amount.Decimal().Float64()
		metrics.RecordRevenue(fee)
		s.publish(ctx, events.WagerCompleted, res.Wager)
		return nil
	}, zap.String("wagerId", wagerID), zap.String("winnerId", winnerID))
	if err != nil {
		return domain.Wager{}, err
	}
	return res.Wager, nil
}

// CancelWager encerra uma wager aberta ou ativa devolvendo o que foi debitado
func (s *Service) CancelWager(ctx context.Context, wagerID string) (domain.Wager, error) {
	var w domain.Wager
	err := s.run(ctx, "cancel_wager", func(ctx context.Context) error {
		err := s.store.Update(ctx, func(tx repo.Tx) error {
			var err error
			if w, err = tx.LockWager(ctx, wagerID); err != nil {
				return err
			}
			if w.Status.Terminal() {
				return fmt.Errorf("wager %s is %s: %w", w.ID, w.Status, domain.ErrWagerAlreadyTerminal)
			}
			if err := tx.LockAccounts(ctx, w.CreatorID, w.OpponentID); err != nil {
				return err
			}

			switch w.Status {
			case domain.WagerOpen:
				if w.StakeCommitted {
					if _, err := s.ledger.Credit(ctx, tx, w.CreatorID, w.Stake, ledger.Entry{
						Kind:        domain.KindStakeRefund,
						WagerID:     w.ID,
						Description: "refund for wager " + w.ID,
					}); err != nil {
						return err
					}
				}
			case domain.WagerActive:
				if _, _, err := s.escrow.Refund(ctx, tx, w.ID); err != nil {
					return err
				}
			}

			now := s.now()
			w.Status = domain.WagerCancelled
			w.CancelledAt = &now
			return tx.PutWager(ctx, w)
		})
		if err != nil {
			return err
		}
		s.publish(ctx, events.WagerCancelled, w)
		return nil
	}, zap.String("wagerId", wagerID))
	if err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}
