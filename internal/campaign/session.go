package campaign

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Artifact is one versioned output of a stage. Stored artifacts are never
// mutated in place; the session only appends new versions. The Superseded
// flag is set (on the in-memory copy, prior to commit) when a regeneration
// was requested for that version.
type Artifact struct {
	Stage      Stage           `json:"stage"`
	Version    int             `json:"version"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	Superseded bool            `json:"superseded,omitempty"`
}

// Brief is the immutable campaign input.
type Brief struct {
	Text      string `json:"text"`
	BrandKit  string `json:"brand_kit,omitempty"`  // path or name of the brand kit used
	BrandName string `json:"brand_name,omitempty"` // resolved at intake
}

// Session is the durable record of a single campaign's pipeline progress.
// It is a value: controller operations take a Session and return a new one;
// nothing mutates shared state behind the caller's back.
type Session struct {
	CampaignID string `json:"campaign_id"`
	Brief      Brief  `json:"brief"`

	CurrentStage Stage                `json:"current_stage"`
	Artifacts    map[Stage][]Artifact `json:"artifacts,omitempty"`
	Approved     []Stage              `json:"approved,omitempty"`
	Skipped      []Stage              `json:"skipped,omitempty"`

	// Regenerations counts applied REGENERATE decisions per stage, bounded
	// by configuration.
	Regenerations map[Stage]int `json:"regenerations,omitempty"`

	// Feedback is the free-text note captured with the most recent
	// regeneration request for a stage, folded into the next prompt.
	Feedback map[Stage]string `json:"feedback,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh campaign session at the intake stage.
func NewSession(campaignID string, brief Brief) Session {
	now := time.Now().UTC()
	return Session{
		CampaignID:   campaignID,
		Brief:        brief,
		CurrentStage: StageIntake,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy. Gate application and the controller work on
// clones so a failed transition never leaves the caller's value half-updated.
func (s Session) Clone() Session {
	out := s
	if s.Artifacts != nil {
		out.Artifacts = make(map[Stage][]Artifact, len(s.Artifacts))
		for st, versions := range s.Artifacts {
			cp := make([]Artifact, len(versions))
			copy(cp, versions)
			for i := range cp {
				if cp[i].Payload != nil {
					cp[i].Payload = append(json.RawMessage(nil), cp[i].Payload...)
				}
			}
			out.Artifacts[st] = cp
		}
	}
	out.Approved = append([]Stage(nil), s.Approved...)
	out.Skipped = append([]Stage(nil), s.Skipped...)
	if s.Regenerations != nil {
		out.Regenerations = make(map[Stage]int, len(s.Regenerations))
		for st, n := range s.Regenerations {
			out.Regenerations[st] = n
		}
	}
	if s.Feedback != nil {
		out.Feedback = make(map[Stage]string, len(s.Feedback))
		for st, f := range s.Feedback {
			out.Feedback[st] = f
		}
	}
	return out
}

// Resolved reports whether the stage has been approved or explicitly skipped.
func (s Session) Resolved(stage Stage) bool {
	return containsStage(s.Approved, stage) || containsStage(s.Skipped, stage)
}

func (s Session) IsApproved(stage Stage) bool { return containsStage(s.Approved, stage) }
func (s Session) IsSkipped(stage Stage) bool  { return containsStage(s.Skipped, stage) }

// Latest returns the newest artifact version for the stage, or nil.
func (s Session) Latest(stage Stage) *Artifact {
	versions := s.Artifacts[stage]
	if len(versions) == 0 {
		return nil
	}
	a := versions[len(versions)-1]
	return &a
}

// Pending returns the artifact awaiting a gate decision for the current
// stage: the latest version, when the stage is unresolved and the version has
// not been superseded by a regeneration request.
func (s Session) Pending() *Artifact {
	if s.Resolved(s.CurrentStage) {
		return nil
	}
	latest := s.Latest(s.CurrentStage)
	if latest == nil || latest.Superseded {
		return nil
	}
	return latest
}

// AppendArtifact adds the next version for a stage and returns it.
func (s *Session) AppendArtifact(stage Stage, payload json.RawMessage, now time.Time) Artifact {
	if s.Artifacts == nil {
		s.Artifacts = map[Stage][]Artifact{}
	}
	a := Artifact{
		Stage:     stage,
		Version:   len(s.Artifacts[stage]) + 1,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: now.UTC(),
	}
	s.Artifacts[stage] = append(s.Artifacts[stage], a)
	return a
}

// lowestUnresolved returns the first stage in pipeline order not yet
// approved or skipped, or StageDone.
func (s Session) lowestUnresolved() Stage {
	for _, st := range StageOrder {
		if st == StageDone {
			break
		}
		if !s.Resolved(st) {
			return st
		}
	}
	return StageDone
}

// Validate checks the structural invariants of the session. Persistence
// adapters run it on load and report failures as corrupt state.
func (s Session) Validate() error {
	if strings.TrimSpace(s.CampaignID) == "" {
		return errors.New("campaign_id is empty")
	}
	if strings.TrimSpace(s.Brief.Text) == "" {
		return errors.New("brief is empty")
	}
	if !s.CurrentStage.Valid() {
		return fmt.Errorf("invalid current_stage %q", s.CurrentStage)
	}
	switch s.Status {
	case StatusActive, StatusPaused, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("invalid status %q", s.Status)
	}

	// current_stage is the lowest unresolved stage in pipeline order.
	if want := s.lowestUnresolved(); s.CurrentStage != want {
		return fmt.Errorf("current_stage %s but lowest unresolved stage is %s", s.CurrentStage, want)
	}

	for stage, versions := range s.Artifacts {
		if !stage.Valid() || stage == StageDone {
			return fmt.Errorf("artifacts recorded for invalid stage %q", stage)
		}
		// No stage after an unresolved stage may have artifacts.
		if stage.Index() > s.CurrentStage.Index() {
			return fmt.Errorf("artifacts present for %s beyond current stage %s", stage, s.CurrentStage)
		}
		for i, a := range versions {
			if a.Stage != stage {
				return fmt.Errorf("artifact under %s tagged %s", stage, a.Stage)
			}
			if a.Version != i+1 {
				return fmt.Errorf("%s versions not contiguous: entry %d has version %d", stage, i, a.Version)
			}
		}
	}

	for _, st := range s.Approved {
		if containsStage(s.Skipped, st) {
			return fmt.Errorf("stage %s both approved and skipped", st)
		}
	}

	if s.Status == StatusCompleted && s.CurrentStage != StageDone {
		return fmt.Errorf("status completed but current_stage is %s", s.CurrentStage)
	}
	if s.CurrentStage == StageDone && s.Status == StatusActive {
		return errors.New("current_stage done but status still active")
	}
	return nil
}

// SortStageSets normalizes the approved/skipped slices into pipeline order,
// keeping persisted records byte-stable across commits.
func (s *Session) SortStageSets() {
	sort.Slice(s.Approved, func(i, j int) bool { return s.Approved[i].Index() < s.Approved[j].Index() })
	sort.Slice(s.Skipped, func(i, j int) bool { return s.Skipped[i].Index() < s.Skipped[j].Index() })
}

func containsStage(list []Stage, stage Stage) bool {
	for _, st := range list {
		if st == stage {
			return true
		}
	}
	return false
}
