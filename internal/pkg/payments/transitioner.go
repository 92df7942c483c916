package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/boletera/boletera/app/models"
	"github.com/boletera/boletera/internal/pkg/locks"
)

// Result classifies what an Apply call actually did.
type Result string

const (
	// ResultTransitioned means the payment changed state and the order
	// side effect fired.
	ResultTransitioned Result = "transitioned"
	// ResultDuplicate means the payment was already in the requested
	// terminal state; metadata was merged and the guarded order side
	// effect re-asserted, nothing double-applied.
	ResultDuplicate Result = "duplicate"
	// ResultConflict means the payment sits in a different terminal state.
	ResultConflict Result = "conflict"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 5 * time.Second
)

// Transitioner applies outcomes to payments exactly once. The per-payment
// exclusive lock is the only serialization point in the core: two webhook
// deliveries, or a webhook racing a manual poll, cannot both observe
// "not yet confirmed" and both fire the paid side effect.
type Transitioner struct {
	repo     Repository
	locker   locks.Locker
	lockTTL  time.Duration
	lockWait time.Duration
}

// NewTransitioner creates a transitioner over repo and locker.
func NewTransitioner(repo Repository, locker locks.Locker) *Transitioner {
	return &Transitioner{
		repo:     repo,
		locker:   locker,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
}

// Apply drives the payment toward the outcome's target state, merging meta
// into the info blob. It must be called with a payment id, never a stale
// struct: the state is re-read under the lock.
//
// Lock timeouts surface as locks.ErrLockTimeout so the caller can answer
// retryably; the processor redelivers with backoff and the event is
// deferred, not lost.
func (t *Transitioner) Apply(ctx context.Context, paymentID uint, outcome Outcome, meta map[string]interface{}) (Result, error) {
	target := outcome.TargetState()
	if target == "" {
		return "", fmt.Errorf("unknown outcome %q", outcome)
	}

	lock, err := t.locker.Acquire(ctx, fmt.Sprintf("payment:%d", paymentID), t.lockTTL, t.lockWait)
	if err != nil {
		return "", err
	}
	defer lock.Release(ctx)

	p, err := t.repo.GetPayment(paymentID)
	if err != nil {
		return "", err
	}

	// Same terminal state: merge metadata discovered later (receipt
	// number, card fields) and re-assert the order side effect. The side
	// effect updates are guarded so a redelivery cannot double-apply, but
	// re-asserting heals the case where the state write landed and the
	// order update failed.
	if p.State == target {
		if err := p.MergeInfo(meta); err != nil {
			return "", err
		}
		if err := t.repo.SavePaymentInfo(p); err != nil {
			return "", err
		}
		if err := t.fireSideEffect(p, outcome); err != nil {
			return "", fmt.Errorf("payment %d already %s but side effect failed: %w", p.ID, target, err)
		}
		log.Infof("[Transitioner] Payment %d already %s, merged metadata only", p.ID, target)
		return ResultDuplicate, nil
	}

	if p.IsTerminal() && !t.transitionAllowed(p.State, outcome) {
		log.Errorf("[Transitioner] Payment %d: refusing %s -> %s, conflicting terminal state", p.ID, p.State, target)
		return ResultConflict, fmt.Errorf("payment %d is %s, cannot apply %s: %w", p.ID, p.State, outcome, ErrConflictingState)
	}

	if err := p.MergeInfo(meta); err != nil {
		return "", err
	}
	if err := p.MergeInfo(transitionStamp(outcome)); err != nil {
		return "", err
	}

	previous := p.State
	p.State = target
	if err := t.repo.UpdatePaymentState(p); err != nil {
		return "", err
	}

	if err := t.fireSideEffect(p, outcome); err != nil {
		// The state change is persisted; a failed side effect must be
		// loud, not rolled into a retry that would re-run the transition.
		return "", fmt.Errorf("payment %d transitioned %s -> %s but side effect failed: %w", p.ID, previous, target, err)
	}

	log.Infof("[Transitioner] Payment %d transitioned %s -> %s", p.ID, previous, target)
	return ResultTransitioned, nil
}

// MergeInfo merges meta into the payment's info blob without touching the
// state. It takes the same per-payment lock as Apply and re-reads the row
// under it, so a poll snapshot can never overwrite fields a concurrent
// webhook just merged.
func (t *Transitioner) MergeInfo(ctx context.Context, paymentID uint, meta map[string]interface{}) error {
	lock, err := t.locker.Acquire(ctx, fmt.Sprintf("payment:%d", paymentID), t.lockTTL, t.lockWait)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	p, err := t.repo.GetPayment(paymentID)
	if err != nil {
		return err
	}
	if err := p.MergeInfo(meta); err != nil {
		return err
	}
	return t.repo.SavePaymentInfo(p)
}

// transitionAllowed encodes the one legal terminal edge: refunding a
// settled charge.
func (t *Transitioner) transitionAllowed(current string, outcome Outcome) bool {
	return current == models.PaymentStateConfirmed && outcome == OutcomeRefund
}

func (t *Transitioner) fireSideEffect(p *models.Payment, outcome Outcome) error {
	switch outcome {
	case OutcomeConfirm:
		return t.repo.MarkOrderPaid(p.OrderID)
	case OutcomeRefund:
		return t.repo.MarkOrderRefunded(p.OrderID)
	default:
		// Failed or canceled payments leave the order open for another
		// payment attempt.
		return nil
	}
}

func transitionStamp(outcome Outcome) map[string]interface{} {
	now := time.Now().Format(time.RFC3339)
	switch outcome {
	case OutcomeConfirm:
		return map[string]interface{}{"status": "succeeded", "confirmed_at": now}
	case OutcomeFail:
		return map[string]interface{}{"status": "failed", "failed_at": now}
	case OutcomeCancel:
		return map[string]interface{}{"status": "canceled", "canceled_at": now}
	case OutcomeRefund:
		return map[string]interface{}{"status": "refunded", "refunded_at": now}
	default:
		return nil
	}
}
