// Package ui implements the interactive terminal gate: artifact previews
// and the approve/edit/regenerate/skip/quit menu.
package ui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/pipeline"
)

// GatePrompt reads gate decisions from a terminal. It satisfies
// pipeline.DecisionSource.
type GatePrompt struct {
	out io.Writer
	in  *bufio.Reader

	// ReadFile is swappable in tests. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

func NewGatePrompt(in io.Reader, out io.Writer) *GatePrompt {
	return &GatePrompt{
		out:      out,
		in:       bufio.NewReader(in),
		ReadFile: os.ReadFile,
	}
}

func (g *GatePrompt) RequestDecision(ctx context.Context, sess campaign.Session, pending campaign.Artifact) (pipeline.Decision, error) {
	fmt.Fprintf(g.out, "\n=== Stage: %s (v%d) ===\n\n", strings.ToUpper(string(pending.Stage)), pending.Version)
	fmt.Fprintln(g.out, Preview(pending.Stage, pending.Payload))
	fmt.Fprintln(g.out)
	fmt.Fprintln(g.out, "  [A]pprove     Accept and continue")
	fmt.Fprintln(g.out, "  [E]dit        Replace payload from a JSON file")
	fmt.Fprintln(g.out, "  [R]egenerate  Generate new version")
	fmt.Fprintln(g.out, "  [S]kip        Skip this stage")
	fmt.Fprintln(g.out, "  [Q]uit        Save and exit")
	fmt.Fprintln(g.out, "  [F]ull        Show full artifact")

	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Decision{}, err
		}
		choice, err := g.ask("Action [a]: ")
		if err != nil {
			return pipeline.Decision{}, err
		}
		switch strings.ToLower(choice) {
		case "", "a":
			return pipeline.Decision{Kind: pipeline.DecisionApprove, Stage: pending.Stage}, nil

		case "e":
			path, err := g.ask("Path to JSON file with the edited payload: ")
			if err != nil {
				return pipeline.Decision{}, err
			}
			raw, err := g.ReadFile(path)
			if err != nil {
				fmt.Fprintf(g.out, "read %s: %v\n", path, err)
				continue
			}
			return pipeline.Decision{Kind: pipeline.DecisionEdit, Stage: pending.Stage, Payload: raw}, nil

		case "r":
			feedback, err := g.ask("Feedback for regeneration (optional): ")
			if err != nil {
				return pipeline.Decision{}, err
			}
			return pipeline.Decision{Kind: pipeline.DecisionRegenerate, Stage: pending.Stage, Feedback: feedback}, nil

		case "s":
			ok, err := g.confirm("Skip this stage? [y/N]: ")
			if err != nil {
				return pipeline.Decision{}, err
			}
			if ok {
				return pipeline.Decision{Kind: pipeline.DecisionSkip, Stage: pending.Stage}, nil
			}

		case "q":
			ok, err := g.confirm("Save and quit? [y/N]: ")
			if err != nil {
				return pipeline.Decision{}, err
			}
			if ok {
				return pipeline.Decision{Kind: pipeline.DecisionQuit, Stage: pending.Stage}, nil
			}

		case "f":
			var buf bytes.Buffer
			if err := json.Indent(&buf, pending.Payload, "", "  "); err == nil {
				fmt.Fprintln(g.out, buf.String())
			} else {
				fmt.Fprintln(g.out, string(pending.Payload))
			}

		default:
			fmt.Fprintf(g.out, "unknown choice %q\n", choice)
		}
	}
}

func (g *GatePrompt) ask(prompt string) (string, error) {
	fmt.Fprint(g.out, prompt)
	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (g *GatePrompt) confirm(prompt string) (bool, error) {
	answer, err := g.ask(prompt)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

// Preview renders a short artifact summary for the gate display. Unknown or
// undecodable payloads fall back to raw JSON.
func Preview(stage campaign.Stage, raw json.RawMessage) string {
	payload, err := campaign.DecodePayload(stage, raw)
	if err != nil {
		return string(raw)
	}

	var sb strings.Builder
	switch p := payload.(type) {
	case campaign.IntakePayload:
		sb.WriteString("Summary: " + p.Summary + "\n")
		if len(p.Objectives) > 0 {
			sb.WriteString("Objectives:\n")
			for _, o := range p.Objectives {
				sb.WriteString("  - " + o + "\n")
			}
		}

	case campaign.ResearchPayload:
		sb.WriteString("Key insights:\n")
		for i, insight := range p.Insights {
			if i == 5 {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(p.Insights)-5)
				break
			}
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, insight)
		}
		if len(p.Sources) > 0 {
			fmt.Fprintf(&sb, "Sources: %d found\n", len(p.Sources))
		}

	case campaign.StrategyPayload:
		sb.WriteString("Positioning: " + p.Positioning + "\n")
		if len(p.MessagingPillars) > 0 {
			sb.WriteString("Messaging pillars:\n")
			for _, pillar := range p.MessagingPillars {
				sb.WriteString("  - " + pillar + "\n")
			}
		}

	case campaign.CreativePayload:
		if len(p.Headlines) > 0 {
			sb.WriteString("Headlines:\n")
			for _, h := range firstN(p.Headlines, 3) {
				sb.WriteString("  - " + h + "\n")
			}
		}
		if len(p.CTAs) > 0 {
			sb.WriteString("CTAs:\n")
			for _, c := range firstN(p.CTAs, 3) {
				sb.WriteString("  - " + c + "\n")
			}
		}
		if p.Tagline != "" {
			sb.WriteString("Tagline: " + p.Tagline + "\n")
		}

	case campaign.ActivationPayload:
		fmt.Fprintf(&sb, "Channels: %d\n", len(p.Channels))
		for _, ch := range p.Channels[:min(3, len(p.Channels))] {
			fmt.Fprintf(&sb, "  - %s: %s\n", ch.Name, ch.Objective)
		}
		if len(p.KPIs) > 0 {
			fmt.Fprintf(&sb, "KPIs: %d defined\n", len(p.KPIs))
		}

	case campaign.PackagingPayload:
		sb.WriteString("Exported files:\n")
		for name, path := range p.Files {
			fmt.Fprintf(&sb, "  - %s: %s\n", name, path)
		}

	default:
		return string(raw)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Progress renders the stage sequence with the current position marked.
func Progress(sess campaign.Session) string {
	parts := make([]string, 0, len(campaign.StageOrder))
	for _, stage := range campaign.StageOrder {
		switch {
		case stage == sess.CurrentStage:
			parts = append(parts, "> "+string(stage)+" <")
		case sess.Resolved(stage):
			parts = append(parts, "["+string(stage)+"]")
		default:
			parts = append(parts, string(stage))
		}
	}
	return strings.Join(parts, " -> ")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
