package stages

import (
	"fmt"
	"strings"

	"github.com/yourorg/campaign-agency/internal/brand"
	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/pipeline"
)

var systemPrompts = map[campaign.Stage]string{
	campaign.StageResearch: `You are a market research expert. Analyze the campaign brief and provide:
- Key market insights relevant to the campaign
- Competitor positioning and analysis
- Assumptions that need validation

Be specific and evidence-based. Focus on actionable intelligence.
Respond with a JSON object: {"insights": [string], "competitors": [{"name", "positioning", "strengths": [string], "weaknesses": [string]}], "sources": [{"url", "title", "snippet"}], "assumptions": [string]}.`,

	campaign.StageStrategy: `You are a marketing strategist with expertise in positioning and messaging.

Your role:
- Develop clear positioning that differentiates from competitors
- Define detailed target audience personas
- Create messaging pillars that support the positioning
- Apply frameworks: STP, 4Ps, AIDA

Be specific and actionable.
Respond with a JSON object: {"positioning": string, "target_audience": {"name", "demographics", "pain_points": [string], "motivations": [string]}, "messaging_pillars": [string], "proof_points": [string], "risks": [string]}.`,

	campaign.StageCreative: `You are an expert copywriter creating compelling marketing copy.

Your role:
- Generate attention-grabbing headlines (under 10 words)
- Write body copy that builds interest and desire
- Create clear calls-to-action that drive conversions
- Apply AIDA framework (Attention, Interest, Desire, Action)

Use active voice and benefit-focused language.
Respond with a JSON object: {"headlines": [string], "body_variants": [string], "ctas": [string], "tagline": string}.`,

	campaign.StageActivation: `You are a marketing activation expert who plans campaigns across channels.

Your role:
- Select optimal channels based on target audience
- Define objectives and tactics for each channel
- Create content calendars with specific timing
- Set measurable KPIs with achievable targets

Be specific with metrics and budget allocations.
Respond with a JSON object: {"channels": [{"name", "objective", "tactics": [string], "budget_pct": number in [0,1]}], "calendar": [{"week": int, "channel", "content_type", "description"}], "kpis": [{"metric", "target", "measurement"}], "budget_split": {channel: number}}.`,
}

func userPrompt(stage campaign.Stage, kit brand.Kit, req pipeline.ExecuteRequest) (string, error) {
	var sb strings.Builder

	promptSection(&sb, "BRIEF", req.Brief.Text)
	if kit.Name != "" {
		promptSection(&sb, "BRAND", kit.PromptBlock())
	}

	switch stage {
	case campaign.StageResearch:
		sb.WriteString("Research this campaign brief. Provide key insights, competitor analysis, and assumptions that need validation.\n")

	case campaign.StageStrategy:
		research, ok, err := input[campaign.ResearchPayload](req, campaign.StageResearch)
		if err != nil {
			return "", err
		}
		if ok {
			promptSection(&sb, "KEY INSIGHTS", bulleted(research.Insights, 10))
			var comps []string
			for _, c := range research.Competitors {
				comps = append(comps, fmt.Sprintf("%s: %s", c.Name, c.Positioning))
			}
			promptSection(&sb, "COMPETITORS", bulleted(comps, 5))
		} else {
			sb.WriteString("No research is available; work from the brief alone.\n\n")
		}
		sb.WriteString("Create strategy with:\n1. Clear positioning statement\n2. Target audience persona (name, demographics, pain points, motivations)\n3. 3-5 messaging pillars\n4. Proof points for each pillar\n5. Potential risks and objections\n")

	case campaign.StageCreative:
		strategy, ok, err := input[campaign.StrategyPayload](req, campaign.StageStrategy)
		if err != nil {
			return "", err
		}
		if ok {
			promptSection(&sb, "POSITIONING", strategy.Positioning)
			promptSection(&sb, "TARGET AUDIENCE", fmt.Sprintf("%s - %s\nPain points: %s",
				strategy.TargetAudience.Name,
				strategy.TargetAudience.Demographics,
				strings.Join(firstN(strategy.TargetAudience.PainPoints, 3), ", ")))
			promptSection(&sb, "MESSAGING PILLARS", bulleted(strategy.MessagingPillars, 0))
		} else {
			sb.WriteString("No strategy is available; write copy from the brief alone.\n\n")
		}
		sb.WriteString("Generate:\n1. 5+ headline variants (under 10 words each)\n2. 3+ body copy variants (2-3 sentences each)\n3. 3+ CTA variants\n4. One memorable tagline\n")

	case campaign.StageActivation:
		strategy, ok, err := input[campaign.StrategyPayload](req, campaign.StageStrategy)
		if err != nil {
			return "", err
		}
		if ok {
			promptSection(&sb, "POSITIONING", strategy.Positioning)
			promptSection(&sb, "TARGET AUDIENCE", fmt.Sprintf("%s - %s",
				strategy.TargetAudience.Name, strategy.TargetAudience.Demographics))
		}
		creative, ok, err := input[campaign.CreativePayload](req, campaign.StageCreative)
		if err != nil {
			return "", err
		}
		if ok {
			promptSection(&sb, "HEADLINES", bulleted(creative.Headlines, 5))
			promptSection(&sb, "TAGLINE", creative.Tagline)
		}
		sb.WriteString("Develop:\n1. 2-4 marketing channels with objectives and tactics\n2. Budget allocation (percentages summing to 1.0)\n3. 8-week content calendar\n4. KPIs with measurable targets\n")

	default:
		return "", fmt.Errorf("stage %s has no prompt", stage)
	}

	if req.Feedback != "" {
		fmt.Fprintf(&sb, "\nOPERATOR FEEDBACK ON THE PREVIOUS VERSION:\n%s\nAddress this feedback in the new version.\n", req.Feedback)
	}
	return sb.String(), nil
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
