package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

type DecisionKind string

const (
	DecisionApprove    DecisionKind = "approve"
	DecisionEdit       DecisionKind = "edit"
	DecisionRegenerate DecisionKind = "regenerate"
	DecisionSkip       DecisionKind = "skip"
	DecisionQuit       DecisionKind = "quit"
)

// Decision is a gate outcome for the stage it names. Payload is set for EDIT,
// Feedback optionally for REGENERATE.
type Decision struct {
	Kind     DecisionKind    `json:"kind"`
	Stage    campaign.Stage  `json:"stage"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Feedback string          `json:"feedback,omitempty"`
}

// Limits carries the externally configured pipeline bounds.
type Limits struct {
	MaxRegenerations int
}

// Apply computes the session resulting from a gate decision. It is a pure
// function over the session value: on any error the input is returned
// unchanged, and the returned session is always a fresh copy.
func Apply(sess campaign.Session, d Decision, limits Limits) (campaign.Session, error) {
	if sess.Status != campaign.StatusActive {
		return sess, fmt.Errorf("session %s is %s, not active", sess.CampaignID, sess.Status)
	}
	if sess.CurrentStage.Terminal() {
		return sess, fmt.Errorf("session %s is already done", sess.CampaignID)
	}
	if d.Stage != "" && d.Stage != sess.CurrentStage {
		return sess, fmt.Errorf("decision targets %s but current stage is %s", d.Stage, sess.CurrentStage)
	}

	work := sess.Clone()
	stage := work.CurrentStage

	switch d.Kind {
	case DecisionApprove:
		if work.Latest(stage) == nil {
			return sess, fmt.Errorf("cannot approve %s: no artifact", stage)
		}
		work.Approved = append(work.Approved, stage)
		resolveForward(&work)

	case DecisionEdit:
		payload, err := campaign.DecodePayloadStrict(stage, d.Payload)
		if err != nil {
			return sess, validationErr(stage, err)
		}
		if err := payload.Validate(); err != nil {
			return sess, validationErr(stage, err)
		}
		raw, err := campaign.EncodePayload(payload)
		if err != nil {
			return sess, validationErr(stage, err)
		}
		work.AppendArtifact(stage, raw, time.Now())

	case DecisionRegenerate:
		if limits.MaxRegenerations > 0 && work.Regenerations[stage] >= limits.MaxRegenerations {
			return sess, fmt.Errorf("%w: stage %s already regenerated %d times", ErrRegenerationLimit, stage, work.Regenerations[stage])
		}
		if latest := work.Latest(stage); latest != nil {
			work.Artifacts[stage][len(work.Artifacts[stage])-1].Superseded = true
		}
		if work.Regenerations == nil {
			work.Regenerations = map[campaign.Stage]int{}
		}
		work.Regenerations[stage]++
		if d.Feedback != "" {
			if work.Feedback == nil {
				work.Feedback = map[campaign.Stage]string{}
			}
			work.Feedback[stage] = d.Feedback
		}

	case DecisionSkip:
		work.Skipped = append(work.Skipped, stage)
		resolveForward(&work)

	case DecisionQuit:
		work.Status = campaign.StatusPaused

	default:
		return sess, fmt.Errorf("unknown decision kind %q", d.Kind)
	}

	work.SortStageSets()
	return work, nil
}

// resolveForward advances current_stage to the next unresolved stage and
// completes the session when none remain.
func resolveForward(work *campaign.Session) {
	next := work.CurrentStage.Next()
	for !next.Terminal() && work.Resolved(next) {
		next = next.Next()
	}
	work.CurrentStage = next
	if next.Terminal() {
		work.Status = campaign.StatusCompleted
	}
}
