package stages

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yourorg/campaign-agency/internal/brand"
	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/pipeline"
)

// intakeExecutor normalizes the operator's brief without calling the LLM.
// The summary is the first prose line; bullet lines become objectives.
func intakeExecutor(kit brand.Kit) pipeline.Executor {
	return pipeline.ExecutorFunc(func(ctx context.Context, req pipeline.ExecuteRequest) (json.RawMessage, error) {
		text := strings.TrimSpace(req.Brief.Text)
		if text == "" {
			return nil, &pipeline.ExecutorError{
				Stage: campaign.StageIntake,
				Err:   errors.New("brief is empty"),
			}
		}

		var summary string
		var objectives []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if rest, ok := strings.CutPrefix(line, "- "); ok {
				objectives = append(objectives, strings.TrimSpace(rest))
				continue
			}
			if rest, ok := strings.CutPrefix(line, "* "); ok {
				objectives = append(objectives, strings.TrimSpace(rest))
				continue
			}
			if summary == "" {
				summary = line
			} else {
				summary += " " + line
			}
		}
		if summary == "" {
			summary = text
		}

		brandName := req.Brief.BrandName
		if brandName == "" {
			brandName = kit.Name
		}

		return campaign.EncodePayload(campaign.IntakePayload{
			Summary:    summary,
			Objectives: objectives,
			BrandName:  brandName,
		})
	})
}
