package stages

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/export"
	"github.com/yourorg/campaign-agency/internal/pipeline"
)

// packagingExecutor renders the markdown bundle from the approved artifacts
// and writes it under <exportDir>/<campaignID>/. The payload records what was
// produced so the session stays the single source of truth.
func packagingExecutor(exportDir string) pipeline.Executor {
	return pipeline.ExecutorFunc(func(ctx context.Context, req pipeline.ExecuteRequest) (json.RawMessage, error) {
		in := export.Input{
			CampaignID: req.CampaignID,
			Brief:      req.Brief,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
			Artifacts:  map[campaign.Stage]*campaign.Artifact{},
		}
		for stage, si := range req.Inputs {
			if si.Absent {
				in.Skipped = append(in.Skipped, stage)
				continue
			}
			if si.Artifact != nil {
				in.Artifacts[stage] = si.Artifact
				if in.CreatedAt.After(si.Artifact.CreatedAt) {
					in.CreatedAt = si.Artifact.CreatedAt
				}
			}
		}
		sort.Slice(in.Skipped, func(i, j int) bool {
			return in.Skipped[i].Index() < in.Skipped[j].Index()
		})

		files, err := export.Render(in)
		if err != nil {
			return nil, &pipeline.ExecutorError{Stage: campaign.StagePackaging, Err: err}
		}

		dir := filepath.Join(exportDir, req.CampaignID)
		if err := export.WriteFiles(dir, files); err != nil {
			return nil, &pipeline.ExecutorError{Stage: campaign.StagePackaging, Err: err}
		}

		names := map[string]string{}
		for name := range files {
			names[name] = filepath.Join(dir, name)
		}
		return campaign.EncodePayload(campaign.PackagingPayload{
			Files:   names,
			Summary: "Markdown bundle written to " + dir,
		})
	})
}
