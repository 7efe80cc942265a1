package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Stage payloads form a tagged union keyed by Stage. Each variant has a fixed
// schema and is validated at the artifact/gate boundary. Payloads are stored
// as raw JSON inside the session record so that older controller versions can
// still read records written by newer ones.

type Payload interface {
	Validate() error
}

type IntakePayload struct {
	Summary    string   `json:"summary"`
	Objectives []string `json:"objectives"`
	BrandName  string   `json:"brand_name,omitempty"`
}

func (p IntakePayload) Validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return errors.New("intake: summary is required")
	}
	return nil
}

type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

type Competitor struct {
	Name        string   `json:"name"`
	Positioning string   `json:"positioning"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
}

type ResearchPayload struct {
	Insights    []string     `json:"insights"`
	Competitors []Competitor `json:"competitors,omitempty"`
	Sources     []Source     `json:"sources,omitempty"`
	Assumptions []string     `json:"assumptions,omitempty"`
}

func (p ResearchPayload) Validate() error {
	if len(p.Insights) == 0 {
		return errors.New("research: at least one insight is required")
	}
	for i, c := range p.Competitors {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("research: competitor %d has no name", i)
		}
	}
	return nil
}

type Persona struct {
	Name         string   `json:"name"`
	Demographics string   `json:"demographics"`
	PainPoints   []string `json:"pain_points,omitempty"`
	Motivations  []string `json:"motivations,omitempty"`
}

type StrategyPayload struct {
	Positioning      string   `json:"positioning"`
	TargetAudience   Persona  `json:"target_audience"`
	MessagingPillars []string `json:"messaging_pillars"`
	ProofPoints      []string `json:"proof_points,omitempty"`
	Risks            []string `json:"risks,omitempty"`
}

func (p StrategyPayload) Validate() error {
	if strings.TrimSpace(p.Positioning) == "" {
		return errors.New("strategy: positioning is required")
	}
	if len(p.MessagingPillars) == 0 {
		return errors.New("strategy: at least one messaging pillar is required")
	}
	return nil
}

type CreativePayload struct {
	Headlines    []string `json:"headlines"`
	BodyVariants []string `json:"body_variants"`
	CTAs         []string `json:"ctas"`
	Tagline      string   `json:"tagline,omitempty"`
}

func (p CreativePayload) Validate() error {
	if len(p.Headlines) == 0 {
		return errors.New("creative: at least one headline is required")
	}
	if len(p.CTAs) == 0 {
		return errors.New("creative: at least one CTA is required")
	}
	return nil
}

type Channel struct {
	Name      string   `json:"name"`
	Objective string   `json:"objective"`
	Tactics   []string `json:"tactics,omitempty"`
	BudgetPct float64  `json:"budget_pct"`
}

type CalendarEntry struct {
	Week        int    `json:"week"`
	Channel     string `json:"channel"`
	ContentType string `json:"content_type"`
	Description string `json:"description"`
}

type KPI struct {
	Metric      string `json:"metric"`
	Target      string `json:"target"`
	Measurement string `json:"measurement,omitempty"`
}

type ActivationPayload struct {
	Channels    []Channel          `json:"channels"`
	Calendar    []CalendarEntry    `json:"calendar,omitempty"`
	KPIs        []KPI              `json:"kpis"`
	BudgetSplit map[string]float64 `json:"budget_split,omitempty"`
}

func (p ActivationPayload) Validate() error {
	if len(p.Channels) == 0 {
		return errors.New("activation: at least one channel is required")
	}
	for _, c := range p.Channels {
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("activation: channel without a name")
		}
		if c.BudgetPct < 0 || c.BudgetPct > 1 {
			return fmt.Errorf("activation: channel %q budget_pct %v out of [0,1]", c.Name, c.BudgetPct)
		}
	}
	if len(p.KPIs) == 0 {
		return errors.New("activation: at least one KPI is required")
	}
	return nil
}

type PackagingPayload struct {
	Files   map[string]string `json:"files"`
	Summary string            `json:"summary,omitempty"`
}

func (p PackagingPayload) Validate() error {
	if len(p.Files) == 0 {
		return errors.New("packaging: no files produced")
	}
	return nil
}

// DecodePayload parses raw JSON into the typed variant for the stage. Unknown
// fields are tolerated so records written by newer versions remain readable.
func DecodePayload(stage Stage, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch stage {
	case StageIntake:
		p = &IntakePayload{}
	case StageResearch:
		p = &ResearchPayload{}
	case StageStrategy:
		p = &StrategyPayload{}
	case StageCreative:
		p = &CreativePayload{}
	case StageActivation:
		p = &ActivationPayload{}
	case StagePackaging:
		p = &PackagingPayload{}
	default:
		return nil, fmt.Errorf("stage %q has no payload schema", stage)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", stage, err)
	}
	return deref(p), nil
}

// DecodePayloadStrict is DecodePayload with unknown fields rejected. Used for
// operator-supplied edits, where a typo should fail loudly.
func DecodePayloadStrict(stage Stage, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch stage {
	case StageIntake:
		p = &IntakePayload{}
	case StageResearch:
		p = &ResearchPayload{}
	case StageStrategy:
		p = &StrategyPayload{}
	case StageCreative:
		p = &CreativePayload{}
	case StageActivation:
		p = &ActivationPayload{}
	case StagePackaging:
		p = &PackagingPayload{}
	default:
		return nil, fmt.Errorf("stage %q has no payload schema", stage)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", stage, err)
	}
	return deref(p), nil
}

func EncodePayload(p Payload) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *IntakePayload:
		return *v
	case *ResearchPayload:
		return *v
	case *StrategyPayload:
		return *v
	case *CreativePayload:
		return *v
	case *ActivationPayload:
		return *v
	case *PackagingPayload:
		return *v
	default:
		return p
	}
}
