package ledger

import (
	"context"

	"github.com/sirupsen/logrus"

	"omnivault/internal/models"
	"omnivault/internal/storage"
)

const maxSettlementError = 256

// SettleReport counts the outcome of one pass over pending settlements.
type SettleReport struct {
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// Settle sends one pending settlement. The record is claimed before the
// send, so a settlement is never sent twice; a failed send returns it to
// pending. A settlement found in any other state is left alone.
func (l *Ledger) Settle(ctx context.Context, key string) error {
	settler, ok := l.transferer.(Settler)
	if !ok {
		return nil
	}
	var claimed *models.Settlement
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		claimed = nil
		st, err := tx.GetSettlement(key)
		if err != nil {
			return err
		}
		if st.Status != models.SettlementPending {
			return nil
		}
		st.Status = models.SettlementSending
		st.Attempts++
		st.UpdatedAt = l.Now()
		if err := tx.SaveSettlement(st); err != nil {
			return err
		}
		claimed = st
		return nil
	})
	if err != nil || claimed == nil {
		return err
	}

	sig, sendErr := settler.Settle(ctx, claimed)
	err = l.store.Atomic(context.WithoutCancel(ctx), func(tx storage.Tx) error {
		st, err := tx.GetSettlement(key)
		if err != nil {
			return err
		}
		st.UpdatedAt = l.Now()
		if sendErr != nil {
			st.Status = models.SettlementPending
			st.LastError = truncate(sendErr.Error(), maxSettlementError)
		} else {
			st.Status = models.SettlementSettled
			st.Signature = sig
			st.LastError = ""
		}
		return tx.SaveSettlement(st)
	})
	entry := l.log.WithFields(logrus.Fields{
		"settlement": key,
		"to":         claimed.ToAccount,
		"amount":     claimed.Amount,
		"attempt":    claimed.Attempts,
	})
	if err != nil {
		entry.WithError(err).Error("Failed to record settlement outcome, left in sending state")
		return err
	}
	if sendErr != nil {
		entry.WithError(sendErr).Warn("Settlement failed, will retry")
		return sendErr
	}
	return nil
}

// SettlePending retries every pending settlement in creation order.
func (l *Ledger) SettlePending(ctx context.Context) (SettleReport, error) {
	var report SettleReport
	if _, ok := l.transferer.(Settler); !ok {
		return report, nil
	}
	var pending []models.Settlement
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		pending, err = tx.ListSettlements(models.SettlementPending)
		return err
	})
	if err != nil {
		return report, err
	}
	for _, st := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := l.Settle(ctx, st.Address); err != nil {
			report.Failed++
			continue
		}
		report.Settled++
	}
	return report, nil
}

// Settlement returns one settlement record.
func (l *Ledger) Settlement(ctx context.Context, key string) (*models.Settlement, error) {
	var out *models.Settlement
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		st, err := tx.GetSettlement(key)
		out = st
		return err
	})
	return out, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
