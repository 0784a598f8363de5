package wallet

import (
	"context"
	"fmt"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"

	"github.com/google/uuid"
)

func (s *service) Credit(ctx context.Context, op Operation) (*models.WalletEntry, error) {
	return s.apply(ctx, op, movement{balanceDelta: op.AmountCents})
}

func (s *service) Debit(ctx context.Context, op Operation) (*models.WalletEntry, error) {
	return s.apply(ctx, op, movement{balanceDelta: -op.AmountCents, guarded: true})
}

// Hold moves funds from the balance into the held amount.
func (s *service) Hold(ctx context.Context, op Operation) (*models.WalletEntry, error) {
	op.Type = models.EntryWithdrawalHold
	return s.apply(ctx, op, movement{balanceDelta: -op.AmountCents, heldDelta: op.AmountCents, guarded: true})
}

// Release returns held funds to the balance.
func (s *service) Release(ctx context.Context, op Operation) (*models.WalletEntry, error) {
	op.Type = models.EntryWithdrawalRelease
	return s.apply(ctx, op, movement{balanceDelta: op.AmountCents, heldDelta: -op.AmountCents})
}

// CompleteHold drops funds that were held for a payout. The balance was
// already reduced by the hold, so no ledger entry is written.
func (s *service) CompleteHold(ctx context.Context, merchantID uint, amountCents int64) error {
	if amountCents <= 0 {
		return apperrors.ErrInvalidAmount
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, merchantID)
		if err != nil {
			return err
		}
		if w.HeldCents < amountCents {
			return fmt.Errorf("wallet %d holds %d cents, cannot settle %d", w.ID, w.HeldCents, amountCents)
		}
		w.HeldCents -= amountCents
		return s.repo.Update(ctx, w)
	})
}

// Adjust applies a signed manual correction. Adjustments ignore the wallet
// lock but never take the balance below zero.
func (s *service) Adjust(ctx context.Context, merchantID uint, amountCents int64, reason string, adminID uint) (*models.WalletEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("reason is required")
	}
	if amountCents == 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	op := Operation{
		MerchantID: merchantID,
		Type:       models.EntryAdjustment,
		Reference:  "adj-" + uuid.NewString(),
		Memo:       reason,
		Metadata:   models.JSON{"admin_id": adminID},
	}
	if amountCents > 0 {
		op.AmountCents = amountCents
		return s.apply(ctx, op, movement{balanceDelta: amountCents})
	}
	op.AmountCents = -amountCents
	return s.apply(ctx, op, movement{balanceDelta: amountCents})
}

func (s *service) apply(ctx context.Context, op Operation, mv movement) (*models.WalletEntry, error) {
	if op.AmountCents <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if !op.Type.Valid() {
		return nil, fmt.Errorf("unknown entry type %q", op.Type)
	}
	if op.Reference == "" {
		return nil, fmt.Errorf("%s entry needs a reference", op.Type)
	}

	var entry *models.WalletEntry
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetForUpdate(ctx, op.MerchantID)
		if err != nil {
			return err
		}
		if mv.guarded && w.Status == models.WalletStatusLocked {
			return apperrors.ErrWalletLocked
		}
		// The row lock serialises writers, so this check cannot race with
		// another entry for the same wallet. The unique index backs it up.
		exists, err := s.repo.EntryExists(ctx, op.Type, op.Reference)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateEntry
		}

		balance := w.BalanceCents + mv.balanceDelta
		held := w.HeldCents + mv.heldDelta
		if balance < 0 {
			return apperrors.ErrInsufficientBalance
		}
		if held < 0 {
			return fmt.Errorf("wallet %d hold would go negative", w.ID)
		}
		w.BalanceCents = balance
		w.HeldCents = held
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}

		entry = &models.WalletEntry{
			WalletID:          w.ID,
			MerchantID:        w.MerchantID,
			Type:              op.Type,
			Reference:         op.Reference,
			AmountCents:       mv.balanceDelta,
			BalanceAfterCents: balance,
			Memo:              op.Memo,
			Metadata:          op.Metadata,
		}
		return s.repo.CreateEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.WalletEntryWritten(string(op.Type))
	return entry, nil
}
