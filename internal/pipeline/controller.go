package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/store"
)

// StageInput is one prerequisite delivered to an executor. A skipped
// prerequisite arrives with Absent set instead of being dropped from the map;
// deciding what to do about the absence is the executor's job.
type StageInput struct {
	Stage    campaign.Stage
	Absent   bool
	Artifact *campaign.Artifact
}

// ExecuteRequest carries everything a stage executor may consume.
type ExecuteRequest struct {
	CampaignID string
	Stage      campaign.Stage
	Brief      campaign.Brief
	Inputs     map[campaign.Stage]StageInput
	Feedback   string // operator note from the last regeneration request, if any
	Version    int    // version number the produced artifact will get
}

// Executor generates a stage's payload. Implementations classify their
// failures by returning *ExecutorError (transient vs. permanent).
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error)
}

type ExecutorFunc func(ctx context.Context, req ExecuteRequest) (json.RawMessage, error)

func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	return f(ctx, req)
}

// DecisionSource supplies gate decisions: a terminal prompt in interactive
// mode, an approval policy otherwise.
type DecisionSource interface {
	RequestDecision(ctx context.Context, sess campaign.Session, pending campaign.Artifact) (Decision, error)
}

// Controller drives the stage sequence for one campaign at a time. It holds
// no per-session state; every operation takes a session value and returns the
// committed successor.
type Controller struct {
	Logger    *slog.Logger
	Store     store.Store
	Executors map[campaign.Stage]Executor
	Decisions DecisionSource
	Limits    Limits
}

func NewController(logger *slog.Logger, st store.Store, executors map[campaign.Stage]Executor, decisions DecisionSource, limits Limits) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Logger:    logger,
		Store:     st,
		Executors: executors,
		Decisions: decisions,
		Limits:    limits,
	}
}

// Create persists a fresh session for the brief and returns it.
func (c *Controller) Create(ctx context.Context, campaignID string, brief campaign.Brief) (campaign.Session, error) {
	sess := campaign.NewSession(campaignID, brief)
	if err := c.Store.Commit(ctx, sess); err != nil {
		return campaign.Session{}, err
	}
	_ = c.Store.AppendEvent(sess.CampaignID, store.Event{
		Type:    "campaign_created",
		Message: truncate(brief.Text, 120),
	})
	return sess, nil
}

// Advance performs exactly one unit of pipeline work: generate the current
// stage's artifact if none is pending, gate it, apply the decision, and
// commit the result atomically. On any error the stored session is unchanged
// and the input value is returned as-is.
func (c *Controller) Advance(ctx context.Context, sess campaign.Session) (campaign.Session, error) {
	if sess.Status != campaign.StatusActive {
		return sess, fmt.Errorf("session %s is %s, not active", sess.CampaignID, sess.Status)
	}
	if sess.CurrentStage.Terminal() {
		return sess, fmt.Errorf("session %s is already done", sess.CampaignID)
	}

	work := sess.Clone()
	stage := work.CurrentStage
	generated := false

	if work.Pending() == nil {
		exec, ok := c.Executors[stage]
		if !ok {
			return sess, &ExecutorError{Stage: stage, Err: fmt.Errorf("no executor registered for %s", stage)}
		}
		req := ExecuteRequest{
			CampaignID: work.CampaignID,
			Stage:      stage,
			Brief:      work.Brief,
			Inputs:     c.stageInputs(work, stage),
			Feedback:   work.Feedback[stage],
			Version:    len(work.Artifacts[stage]) + 1,
		}
		raw, err := exec.Execute(ctx, req)
		if err != nil {
			return sess, asExecutorError(stage, err)
		}
		payload, err := campaign.DecodePayload(stage, raw)
		if err != nil {
			return sess, &ExecutorError{Stage: stage, Err: fmt.Errorf("malformed output: %w", err)}
		}
		if err := payload.Validate(); err != nil {
			return sess, &ExecutorError{Stage: stage, Err: fmt.Errorf("invalid output: %w", err)}
		}
		work.AppendArtifact(stage, raw, time.Now())
		generated = true
		c.Logger.Info("stage artifact generated",
			"campaign_id", work.CampaignID,
			"stage", stage,
			"version", len(work.Artifacts[stage]),
		)
	}

	pending := work.Pending()
	decision, err := c.Decisions.RequestDecision(ctx, work, *pending)
	if err != nil {
		return sess, fmt.Errorf("gate decision for %s: %w", stage, err)
	}

	next, err := Apply(work, decision, c.Limits)
	if err != nil {
		return sess, err
	}

	if err := c.Store.Commit(ctx, next); err != nil {
		return sess, err
	}

	if generated {
		_ = c.Store.AppendEvent(next.CampaignID, store.Event{
			Type: "stage_generated",
			Data: map[string]any{"stage": string(stage), "version": pending.Version},
		})
	}
	_ = c.Store.AppendEvent(next.CampaignID, store.Event{
		Type: "decision_applied",
		Data: map[string]any{"stage": string(stage), "decision": string(decision.Kind)},
	})
	if decision.Kind == DecisionSkip {
		_ = c.Store.AppendEvent(next.CampaignID, store.Event{
			Type: "stage_skipped",
			Data: map[string]any{"stage": string(stage)},
		})
	}
	switch next.Status {
	case campaign.StatusCompleted:
		_ = c.Store.AppendEvent(next.CampaignID, store.Event{Type: "campaign_completed"})
	case campaign.StatusPaused:
		_ = c.Store.AppendEvent(next.CampaignID, store.Event{Type: "campaign_paused"})
	}

	return next, nil
}

// Resume reactivates a paused session so Advance is legal again.
func (c *Controller) Resume(ctx context.Context, sess campaign.Session) (campaign.Session, error) {
	if sess.Status != campaign.StatusPaused {
		return sess, fmt.Errorf("session %s is %s, not paused", sess.CampaignID, sess.Status)
	}
	work := sess.Clone()
	work.Status = campaign.StatusActive
	if err := c.Store.Commit(ctx, work); err != nil {
		return sess, err
	}
	_ = c.Store.AppendEvent(work.CampaignID, store.Event{Type: "campaign_resumed"})
	return work, nil
}

// stageInputs assembles the latest approved artifacts of the stage's
// prerequisites. Skipped prerequisites become explicit absent markers.
func (c *Controller) stageInputs(sess campaign.Session, stage campaign.Stage) map[campaign.Stage]StageInput {
	out := map[campaign.Stage]StageInput{}
	for _, prereq := range campaign.Prerequisites[stage] {
		in := StageInput{Stage: prereq}
		switch {
		case sess.IsApproved(prereq):
			in.Artifact = sess.Latest(prereq)
		default:
			// Skipped (linear order guarantees prerequisites are resolved
			// one way or the other before this stage runs).
			in.Absent = true
		}
		out[prereq] = in
	}
	return out
}

func asExecutorError(stage campaign.Stage, err error) error {
	var ee *ExecutorError
	if errors.As(err, &ee) {
		if ee.Stage == "" {
			ee.Stage = stage
		}
		return ee
	}
	// Unclassified failures (context timeouts included) are treated as
	// transient so the driver may retry within its budget.
	return &ExecutorError{Stage: stage, Transient: true, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
