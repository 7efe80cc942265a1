// Package stages provides the executor for each pipeline stage: a local
// intake pass, four LLM-backed generation stages, and a packaging stage that
// renders the export bundle.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourorg/campaign-agency/internal/brand"
	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/llm"
	"github.com/yourorg/campaign-agency/internal/pipeline"
)

// Completer is the slice of the LLM client the generation stages need.
type Completer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) (string, error)
}

// Registry builds the full executor set. exportDir is where packaging writes
// per-campaign bundles.
func Registry(c Completer, kit brand.Kit, exportDir string) map[campaign.Stage]pipeline.Executor {
	return map[campaign.Stage]pipeline.Executor{
		campaign.StageIntake:     intakeExecutor(kit),
		campaign.StageResearch:   generator{c, campaign.StageResearch, kit},
		campaign.StageStrategy:   generator{c, campaign.StageStrategy, kit},
		campaign.StageCreative:   generator{c, campaign.StageCreative, kit},
		campaign.StageActivation: generator{c, campaign.StageActivation, kit},
		campaign.StagePackaging:  packagingExecutor(exportDir),
	}
}

// generator runs one LLM-backed stage: compose the prompt from the brief,
// brand kit, prerequisite artifacts, and any regeneration feedback, then
// parse the completion into the stage's payload schema.
type generator struct {
	client Completer
	stage  campaign.Stage
	kit    brand.Kit
}

func (g generator) Execute(ctx context.Context, req pipeline.ExecuteRequest) (json.RawMessage, error) {
	system, ok := systemPrompts[g.stage]
	if !ok {
		return nil, &pipeline.ExecutorError{Stage: g.stage, Err: fmt.Errorf("no prompt for stage %s", g.stage)}
	}

	user, err := userPrompt(g.stage, g.kit, req)
	if err != nil {
		return nil, &pipeline.ExecutorError{Stage: g.stage, Err: err}
	}

	text, err := g.client.CompleteJSON(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, &pipeline.ExecutorError{Stage: g.stage, Transient: llm.Transient(err), Err: err}
	}

	payload, err := campaign.DecodePayload(g.stage, json.RawMessage(text))
	if err != nil {
		return nil, &pipeline.ExecutorError{Stage: g.stage, Err: err}
	}
	if err := payload.Validate(); err != nil {
		return nil, &pipeline.ExecutorError{Stage: g.stage, Err: err}
	}
	return campaign.EncodePayload(payload)
}

// input decodes a prerequisite artifact from the request, returning the zero
// payload when the stage was skipped.
func input[P campaign.Payload](req pipeline.ExecuteRequest, stage campaign.Stage) (P, bool, error) {
	var zero P
	in, ok := req.Inputs[stage]
	if !ok || in.Absent || in.Artifact == nil {
		return zero, false, nil
	}
	p, err := campaign.DecodePayload(stage, in.Artifact.Payload)
	if err != nil {
		return zero, false, err
	}
	typed, ok := p.(P)
	if !ok {
		return zero, false, fmt.Errorf("stage %s payload has unexpected type %T", stage, p)
	}
	return typed, true, nil
}

func bulleted(items []string, limit int) string {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// promptSection appends a titled block when body is non-empty.
func promptSection(sb *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(sb, "%s:\n%s\n\n", title, body)
}
