package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/domain/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/metrics"
	treasurysvc "github.com/R3E-Network/presale_layer/internal/app/services/treasury"
)

var _ treasurysvc.Settler = (*Service)(nil)

// Withdraw pays amount from the campaign balance to the owner. The debit,
// the latch, and the pending withdrawal commit under the mutex; the
// external transfer runs outside it. A second withdraw during the transfer
// is rejected by the latch, and every other mutation interleaves against
// the already-debited balance. Transfer failure restores the balance and
// emits nothing.
func (s *Service) Withdraw(ctx context.Context, campaignID, caller string, amount int64, at time.Time) (treasury.Withdrawal, error) {
	s.mu.Lock()

	c, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		s.mu.Unlock()
		return treasury.Withdrawal{}, err
	}
	if err := ownerGuard(c, caller); err != nil {
		s.mu.Unlock()
		return treasury.Withdrawal{}, err
	}
	if c.WithdrawLocked {
		s.mu.Unlock()
		return treasury.Withdrawal{}, campaign.WithdrawalInProgressError{}
	}
	if amount <= 0 {
		s.mu.Unlock()
		return treasury.Withdrawal{}, fmt.Errorf("%w: amount must be positive", campaign.ErrInvalidInput)
	}
	if amount > c.Balance {
		s.mu.Unlock()
		return treasury.Withdrawal{}, campaign.NotEnoughFundsError{Amount: amount, Balance: c.Balance}
	}

	debited := c
	debited.Balance -= amount
	debited.WithdrawLocked = true
	debited, err = s.campaigns.UpdateCampaign(ctx, debited)
	if err != nil {
		s.mu.Unlock()
		return treasury.Withdrawal{}, err
	}

	wd, err := s.withdrawals.CreateWithdrawal(ctx, treasury.Withdrawal{
		CampaignID:  c.ID,
		Amount:      amount,
		To:          c.Owner,
		Status:      treasury.StatusPending,
		RequestedAt: at.UTC(),
	})
	if err != nil {
		// The pending record never committed; put the debit back.
		debited.Balance += amount
		debited.WithdrawLocked = false
		if _, undoErr := s.campaigns.UpdateCampaign(ctx, debited); undoErr != nil {
			s.log.WithError(undoErr).
				WithField("campaign_id", c.ID).
				Error("restore balance after failed withdrawal create")
		}
		s.mu.Unlock()
		return treasury.Withdrawal{}, err
	}
	s.mu.Unlock()

	txID, transferErr := s.transferor.Transfer(ctx, c.ID, wd.To, amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	if transferErr != nil {
		if _, err := s.settleLocked(ctx, wd.ID, false, transferErr.Error()); err != nil {
			s.log.WithError(err).
				WithField("withdrawal_id", wd.ID).
				Error("roll back failed withdrawal")
			return treasury.Withdrawal{}, err
		}
		return treasury.Withdrawal{}, fmt.Errorf("withdrawal transfer: %w", transferErr)
	}

	settled, err := s.settleLocked(ctx, wd.ID, true, txID)
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	s.log.WithField("campaign_id", c.ID).
		WithField("withdrawal_id", settled.ID).
		WithField("amount", amount).
		Info("withdrawal completed")
	return settled, nil
}

// ResolveWithdrawal finalizes a pending withdrawal out of band. The
// settlement poller uses it to recover withdrawals a crash left behind.
// Resolving a settled withdrawal is a no-op.
func (s *Service) ResolveWithdrawal(ctx context.Context, id string, success bool, message string) (treasury.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settleLocked(ctx, id, success, message)
}

// settleLocked completes or fails a pending withdrawal. Success clears the
// latch and emits the withdrawal event; failure also restores the balance.
// Callers hold s.mu.
func (s *Service) settleLocked(ctx context.Context, id string, success bool, ref string) (treasury.Withdrawal, error) {
	wd, err := s.withdrawals.GetWithdrawal(ctx, id)
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	if wd.Status != treasury.StatusPending {
		return wd, nil
	}

	c, err := s.campaigns.GetCampaign(ctx, wd.CampaignID)
	if err != nil {
		return treasury.Withdrawal{}, err
	}

	c.WithdrawLocked = false
	if !success {
		c.Balance += wd.Amount
	}
	if _, err := s.campaigns.UpdateCampaign(ctx, c); err != nil {
		return treasury.Withdrawal{}, err
	}

	wd.SettledAt = time.Now().UTC()
	if success {
		wd.Status = treasury.StatusCompleted
		wd.TxID = ref
	} else {
		wd.Status = treasury.StatusFailed
		wd.Message = ref
	}
	wd, err = s.withdrawals.UpdateWithdrawal(ctx, wd)
	if err != nil {
		return treasury.Withdrawal{}, err
	}
	metrics.RecordWithdrawalSettled(string(wd.Status), wd.SettledAt.Sub(wd.RequestedAt))

	if success {
		s.emit(ctx, c.ID, campaign.EventWithdrawal, campaign.WithdrawalEvent{
			Amount:    wd.Amount,
			Timestamp: wd.RequestedAt,
		})
	}
	return wd, nil
}

// ListWithdrawals returns a campaign's withdrawals, oldest first.
func (s *Service) ListWithdrawals(ctx context.Context, campaignID string) ([]treasury.Withdrawal, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.withdrawals.ListWithdrawals(ctx, campaignID)
}
