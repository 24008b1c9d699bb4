package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"
	"go-bnpl/realtime"
	"go-bnpl/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OverdueSweeper accrues late penalties on unpaid BNPL portions and keeps
// the stored payment status in step with the calendar.
type OverdueSweeper struct {
	Orders      repository.OrderStore
	PenaltyRate decimal.Decimal
	Notifier    Notifier
	Publisher   Publisher
	Log         *zap.Logger
	Now         func() time.Time
}

func NewOverdueSweeper(orders repository.OrderStore, rate decimal.Decimal, notifier Notifier, publisher Publisher, log *zap.Logger) *OverdueSweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &OverdueSweeper{Orders: orders, PenaltyRate: rate, Notifier: notifier, Publisher: publisher, Log: log, Now: utcNow}
}

type SweepResult struct {
	Orders         int `json:"orders"`
	PenaltyUpdates int `json:"penalty_updates"`
	NewlyOverdue   int `json:"newly_overdue"`
	StatusChanges  int `json:"status_changes"`
}

// Sweep runs one pass over every order that still owes a BNPL portion.
func (s *OverdueSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	orders, err := s.Orders.List(ctx, repository.OrderFilter{OpenBNPL: true})
	if err != nil {
		return res, fmt.Errorf("list open bnpl orders: %w", err)
	}

	now := s.Now()
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		order := &orders[i]
		res.Orders++
		if err := s.sweepOrder(ctx, order, now, &res); err != nil {
			s.Log.Error("overdue sweep failed for order", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		}
	}
	return res, nil
}

func (s *OverdueSweeper) sweepOrder(ctx context.Context, order *models.Order, now time.Time, res *SweepResult) error {
	for i := range order.Installments {
		inst := &order.Installments[i]
		before := inst.Penalty
		if !inst.AccruePenalty(s.PenaltyRate, now) {
			continue
		}
		if err := s.applyPenalty(ctx, order, bnpl.InstallmentPortion(inst.Number), before, inst.Penalty, inst.DueDate, res); err != nil {
			return err
		}
	}
	if fd := order.FixedDuration; fd != nil {
		before := fd.Penalty
		if fd.AccruePenalty(s.PenaltyRate, now) {
			if err := s.applyPenalty(ctx, order, bnpl.FixedDurationPortion(), before, fd.Penalty, fd.DueDate, res); err != nil {
				return err
			}
		}
	}

	if order.RefreshPaymentStatus(now) {
		if err := s.Orders.SetPaymentStatus(ctx, order.ID, order.PaymentStatus, now); err != nil {
			return err
		}
		res.StatusChanges++
		s.Publisher.Publish(order.UserID, realtime.Event{Type: "order.payment", OrderID: order.ID.Hex(), Payload: detail(order, now)})
	}
	return nil
}

func (s *OverdueSweeper) applyPenalty(ctx context.Context, order *models.Order, portion bnpl.Portion, before, after decimal.Decimal, due time.Time, res *SweepResult) error {
	err := s.Orders.SetPortionPenalty(ctx, order.ID, portion, after)
	if errors.Is(err, bnpl.ErrAlreadyPaid) || errors.Is(err, repository.ErrConflict) {
		// Paid while we were looking; its penalty is frozen.
		return nil
	}
	if err != nil {
		return err
	}
	res.PenaltyUpdates++

	if before.IsZero() {
		res.NewlyOverdue++
		s.Notifier.NotifyUser(order.UserID, Notification{
			Subject: "Payment Overdue",
			Body: fmt.Sprintf("The %s of order %s was due on %s. A late penalty of PKR %s has been added.",
				portion, order.Reference, due.Format("2006-01-02"), after.StringFixed(2)),
			Data: map[string]string{"order_id": order.ID.Hex(), "portion": portion.String()},
		})
	}
	return nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *OverdueSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := s.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			s.Log.Error("overdue sweep failed", zap.Error(err))
		} else if err == nil {
			s.Log.Info("overdue sweep finished",
				zap.Int("orders", res.Orders),
				zap.Int("penalty_updates", res.PenaltyUpdates),
				zap.Int("newly_overdue", res.NewlyOverdue),
				zap.Int("status_changes", res.StatusChanges),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
