package worker

import (
	"context"
	"fmt"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/log"
)

// BalanceVerifier re-derives every running balance from scratch and
// repairs rows that drifted, returning how many were fixed.
type BalanceVerifier interface {
	VerifyBalances(ctx context.Context) (int, error)
}

// Checker consumes ledger events and verifies the running-balance
// invariant after each mutation. The store already recomputes balances
// transactionally; the checker is an independent second derivation that
// catches drift from external writes or bugs.
type Checker struct {
	store BalanceVerifier
	log   *log.Logger
}

func NewChecker(store BalanceVerifier) *Checker {
	return &Checker{
		store: store,
		log:   log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker),
	}
}

// HandleEvent runs a verification pass in response to one ledger event.
// The event only tells us something changed; verification always covers
// the whole ledger.
func (c *Checker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	fixed, err := c.store.VerifyBalances(ctx)
	if err != nil {
		return fmt.Errorf("verify after %s event for id %d: %w", event.Action, event.ID, err)
	}
	if fixed > 0 {
		c.log.WarnContext(ctx, "Ledger verification repaired balances",
			log.FieldOperation, log.OpVerify,
			log.FieldAction, event.Action,
			log.FieldTransactionID, event.ID,
			"rows_fixed", fixed)
	}
	return nil
}

// RunPeriodic verifies on a fixed interval until ctx is cancelled.
// Catches drift even when the event stream is quiet.
func (c *Checker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fixed, err := c.store.VerifyBalances(ctx)
			if err != nil {
				c.log.ErrorContext(ctx, "Periodic ledger verification failed",
					log.FieldOperation, log.OpVerify, log.FieldError, err)
				continue
			}
			if fixed > 0 {
				c.log.WarnContext(ctx, "Periodic verification repaired balances",
					log.FieldOperation, log.OpVerify, "rows_fixed", fixed)
			}
		}
	}
}
