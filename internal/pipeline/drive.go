package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/store"
)

// RetryPolicy bounds the driver's handling of recoverable Advance failures.
// Transient executor errors consume the attempt budget; lock contention is
// always retried with backoff and only gives up once the budget is exhausted
// many times over.
type RetryPolicy struct {
	MaxAttempts int           // transient executor retries per stage, minimum 1
	Backoff     time.Duration // initial backoff, doubled per retry
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

// Drive calls Advance until the session completes, pauses, or fails with an
// error the policy cannot absorb. The returned session is the last committed
// state.
func Drive(ctx context.Context, c *Controller, sess campaign.Session, policy RetryPolicy) (campaign.Session, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff <= 0 {
		policy.Backoff = 500 * time.Millisecond
	}

	attempts := 0
	backoff := policy.Backoff

	for sess.Status == campaign.StatusActive && !sess.CurrentStage.Terminal() {
		next, err := c.Advance(ctx, sess)
		if err == nil {
			sess = next
			attempts = 0
			backoff = policy.Backoff
			continue
		}

		switch {
		case errors.Is(err, store.ErrConcurrentAccess):
			// Contention is never surfaced as data loss; wait and retry.
			if !sleepCtx(ctx, backoff) {
				return sess, ctx.Err()
			}
			backoff = minDuration(backoff*2, 10*time.Second)
			continue
		case IsTransient(err):
			attempts++
			if attempts >= policy.MaxAttempts {
				return sess, err
			}
			c.Logger.Warn("transient executor failure, retrying",
				"campaign_id", sess.CampaignID,
				"stage", sess.CurrentStage,
				"attempt", attempts,
				"err", err,
			)
			if !sleepCtx(ctx, backoff) {
				return sess, ctx.Err()
			}
			backoff = minDuration(backoff*2, 10*time.Second)
			continue
		default:
			return sess, err
		}
	}
	return sess, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// AutoApprove is the non-interactive decision source: every pending artifact
// is approved within the configured timeout.
type AutoApprove struct {
	Timeout time.Duration
}

func (a AutoApprove) RequestDecision(ctx context.Context, sess campaign.Session, pending campaign.Artifact) (Decision, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	return Decision{Kind: DecisionApprove, Stage: pending.Stage}, nil
}
