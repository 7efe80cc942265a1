package api

type CreateCampaignRequest struct {
	Brief    string `json:"brief"`
	BrandKit string `json:"brand_kit,omitempty"`
}

type CreateCampaignResponse struct {
	CampaignID string `json:"campaign_id"`
}

type DriveResponse struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
}
