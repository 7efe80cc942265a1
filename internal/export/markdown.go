// Package export renders approved campaign artifacts as deliverable files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

// File names inside an export bundle, one per deliverable stage.
const (
	ResearchFile   = "research_report.md"
	StrategyFile   = "strategy_brief.md"
	CreativeFile   = "copy_deck.md"
	ActivationFile = "activation_plan.md"
	SummaryFile    = "campaign_summary.md"
)

var stageFiles = map[campaign.Stage]string{
	campaign.StageResearch:   ResearchFile,
	campaign.StageStrategy:   StrategyFile,
	campaign.StageCreative:   CreativeFile,
	campaign.StageActivation: ActivationFile,
}

// Input carries everything a bundle render needs. Artifacts holds the latest
// approved artifact per stage; stages missing from the map are omitted.
type Input struct {
	CampaignID string
	Brief      campaign.Brief
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Artifacts  map[campaign.Stage]*campaign.Artifact
	Skipped    []campaign.Stage
}

// Markdown renders every approved deliverable stage plus a summary index.
// Skipped stages are omitted; the summary notes them.
func Markdown(sess campaign.Session) (map[string]string, error) {
	in := Input{
		CampaignID: sess.CampaignID,
		Brief:      sess.Brief,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
		Artifacts:  map[campaign.Stage]*campaign.Artifact{},
		Skipped:    sess.Skipped,
	}
	for stage := range stageFiles {
		if !sess.IsApproved(stage) {
			continue
		}
		if art := sess.Latest(stage); art != nil {
			in.Artifacts[stage] = art
		}
	}
	return Render(in)
}

// Render produces the markdown bundle from pre-selected artifacts.
func Render(in Input) (map[string]string, error) {
	files := map[string]string{}
	for _, stage := range []campaign.Stage{
		campaign.StageResearch,
		campaign.StageStrategy,
		campaign.StageCreative,
		campaign.StageActivation,
	} {
		art := in.Artifacts[stage]
		if art == nil {
			continue
		}
		payload, err := campaign.DecodePayload(stage, art.Payload)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", stage, err)
		}
		content, err := renderStage(in, stage, payload, art.CreatedAt)
		if err != nil {
			return nil, err
		}
		files[stageFiles[stage]] = content
	}
	files[SummaryFile] = renderSummary(in, files)
	return files, nil
}

// WriteFiles writes a rendered bundle under dir, creating it if needed.
func WriteFiles(dir string, files map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func renderStage(in Input, stage campaign.Stage, payload campaign.Payload, generated time.Time) (string, error) {
	switch p := payload.(type) {
	case campaign.ResearchPayload:
		return renderResearch(in, p, generated), nil
	case campaign.StrategyPayload:
		return renderStrategy(in, p, generated), nil
	case campaign.CreativePayload:
		return renderCreative(in, p, generated), nil
	case campaign.ActivationPayload:
		return renderActivation(in, p, generated), nil
	default:
		return "", fmt.Errorf("no renderer for stage %s", stage)
	}
}

type doc struct {
	sb strings.Builder
}

func newDoc(title string, in Input, generated time.Time) *doc {
	d := &doc{}
	d.line("# " + title)
	d.line("")
	d.linef("> Campaign: %s", in.CampaignID)
	d.linef("> Generated: %s", generated.UTC().Format("2006-01-02 15:04"))
	d.line("")
	return d
}

func (d *doc) line(s string)                    { d.sb.WriteString(s + "\n") }
func (d *doc) linef(format string, args ...any) { fmt.Fprintf(&d.sb, format+"\n", args...) }

func (d *doc) section(title string) {
	d.line("## " + title)
	d.line("")
}

func (d *doc) bullets(items []string) {
	for _, it := range items {
		d.line("- " + it)
	}
	d.line("")
}

func (d *doc) numbered(items []string, bold bool) {
	for i, it := range items {
		if bold {
			d.linef("%d. **%s**", i+1, it)
		} else {
			d.linef("%d. %s", i+1, it)
		}
	}
	d.line("")
}

func (d *doc) String() string { return d.sb.String() }

func renderResearch(in Input, p campaign.ResearchPayload, generated time.Time) string {
	d := newDoc("Research Report", in, generated)

	if len(p.Insights) > 0 {
		d.section("Key Insights")
		d.numbered(p.Insights, false)
	}
	if len(p.Competitors) > 0 {
		d.section("Competitor Analysis")
		for _, c := range p.Competitors {
			d.line("### " + c.Name)
			d.line("")
			d.linef("**Positioning:** %s", c.Positioning)
			d.line("")
			if len(c.Strengths) > 0 {
				d.line("**Strengths:**")
				for _, s := range c.Strengths {
					d.line("- " + s)
				}
			}
			if len(c.Weaknesses) > 0 {
				d.line("")
				d.line("**Weaknesses:**")
				for _, w := range c.Weaknesses {
					d.line("- " + w)
				}
			}
			d.line("")
		}
	}
	if len(p.Sources) > 0 {
		d.section("Sources")
		for _, s := range p.Sources {
			if s.URL != "" {
				d.linef("- [%s](%s)", s.Title, s.URL)
			} else {
				d.line("- " + s.Title)
			}
			if s.Snippet != "" {
				d.linef("  > %s", truncate(s.Snippet, 100))
			}
		}
		d.line("")
	}
	if len(p.Assumptions) > 0 {
		d.section("Assumptions")
		d.bullets(p.Assumptions)
	}
	return d.String()
}

func renderStrategy(in Input, p campaign.StrategyPayload, generated time.Time) string {
	d := newDoc("Strategy Brief", in, generated)

	if p.Positioning != "" {
		d.section("Positioning Statement")
		d.line("> " + p.Positioning)
		d.line("")
	}

	d.section("Target Audience")
	d.linef("**Name:** %s", p.TargetAudience.Name)
	d.linef("**Demographics:** %s", p.TargetAudience.Demographics)
	d.line("")
	if len(p.TargetAudience.PainPoints) > 0 {
		d.line("**Pain Points:**")
		d.bullets(p.TargetAudience.PainPoints)
	}
	if len(p.TargetAudience.Motivations) > 0 {
		d.line("**Motivations:**")
		d.bullets(p.TargetAudience.Motivations)
	}

	if len(p.MessagingPillars) > 0 {
		d.section("Messaging Pillars")
		d.numbered(p.MessagingPillars, true)
	}
	if len(p.ProofPoints) > 0 {
		d.section("Proof Points")
		d.bullets(p.ProofPoints)
	}
	if len(p.Risks) > 0 {
		d.section("Risks & Mitigation")
		d.bullets(p.Risks)
	}
	return d.String()
}

func renderCreative(in Input, p campaign.CreativePayload, generated time.Time) string {
	d := newDoc("Copy Deck", in, generated)

	if p.Tagline != "" {
		d.section("Tagline")
		d.line("> " + p.Tagline)
		d.line("")
	}
	if len(p.Headlines) > 0 {
		d.section("Headlines")
		d.numbered(p.Headlines, true)
	}
	if len(p.BodyVariants) > 0 {
		d.section("Body Copy")
		for i, body := range p.BodyVariants {
			d.linef("### Variant %d", i+1)
			d.line("")
			d.line(body)
			d.line("")
		}
	}
	if len(p.CTAs) > 0 {
		d.section("Calls to Action")
		for _, cta := range p.CTAs {
			d.linef("- `%s`", cta)
		}
		d.line("")
	}
	return d.String()
}

func renderActivation(in Input, p campaign.ActivationPayload, generated time.Time) string {
	d := newDoc("Activation Plan", in, generated)

	if len(p.Channels) > 0 {
		d.section("Channel Strategy")
		for _, ch := range p.Channels {
			d.line("### " + ch.Name)
			d.line("")
			d.linef("**Objective:** %s", ch.Objective)
			if ch.BudgetPct > 0 {
				d.linef("**Budget:** %.0f%%", ch.BudgetPct*100)
			}
			d.line("")
			if len(ch.Tactics) > 0 {
				d.line("**Tactics:**")
				for _, t := range ch.Tactics {
					d.line("- " + t)
				}
			}
			d.line("")
		}
	}
	if len(p.Calendar) > 0 {
		d.section("Content Calendar")
		d.line("| Week | Channel | Type | Description |")
		d.line("|------|---------|------|-------------|")
		for _, e := range p.Calendar {
			d.linef("| %d | %s | %s | %s |", e.Week, e.Channel, e.ContentType, e.Description)
		}
		d.line("")
	}
	if len(p.KPIs) > 0 {
		d.section("KPIs & Targets")
		d.line("| Metric | Target | Measurement |")
		d.line("|--------|--------|-------------|")
		for _, k := range p.KPIs {
			d.linef("| %s | %s | %s |", k.Metric, k.Target, k.Measurement)
		}
		d.line("")
	}
	if len(p.BudgetSplit) > 0 {
		d.section("Budget Allocation")
		names := make([]string, 0, len(p.BudgetSplit))
		for name := range p.BudgetSplit {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d.linef("- **%s:** %.0f%%", name, p.BudgetSplit[name]*100)
		}
		d.line("")
	}
	return d.String()
}

func renderSummary(in Input, files map[string]string) string {
	d := &doc{}
	d.line("# Campaign Summary")
	d.line("")
	d.linef("**Campaign ID:** %s", in.CampaignID)
	d.linef("**Brief:** %s", in.Brief.Text)
	d.line("")
	d.linef("**Created:** %s", in.CreatedAt.UTC().Format("2006-01-02 15:04"))
	d.linef("**Updated:** %s", in.UpdatedAt.UTC().Format("2006-01-02 15:04"))
	d.line("")
	if in.Brief.BrandName != "" {
		d.linef("**Brand:** %s", in.Brief.BrandName)
		d.line("")
	}

	d.section("Deliverables")
	for _, stage := range []campaign.Stage{
		campaign.StageResearch,
		campaign.StageStrategy,
		campaign.StageCreative,
		campaign.StageActivation,
	} {
		name := stageFiles[stage]
		if _, ok := files[name]; ok {
			d.linef("- [%s](%s)", titleCase(string(stage)), name)
		}
	}
	d.line("")

	if len(in.Skipped) > 0 {
		d.section("Skipped Stages")
		for _, stage := range in.Skipped {
			d.line("- " + string(stage))
		}
		d.line("")
	}
	return d.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
