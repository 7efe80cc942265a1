package campaign

import (
	"encoding/json"
	"testing"
)

func TestDecodePayload_RoundTrip(t *testing.T) {
	in := StrategyPayload{
		Positioning: "the fastest way to ship campaigns",
		TargetAudience: Persona{
			Name:         "Indie marketer",
			Demographics: "solo founders, 25-45",
		},
		MessagingPillars: []string{"speed", "control"},
	}
	raw, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePayload(StageStrategy, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := got.(StrategyPayload)
	if !ok {
		t.Fatalf("decoded wrong type %T", got)
	}
	if p.Positioning != in.Positioning || len(p.MessagingPillars) != 2 {
		t.Fatalf("round trip mismatch: %+v", p)
	}
}

func TestDecodePayload_ToleratesUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"insights":["a"],"future_field":true}`)
	if _, err := DecodePayload(StageResearch, raw); err != nil {
		t.Fatalf("forward-compat decode failed: %v", err)
	}
}

func TestDecodePayloadStrict_RejectsUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"insights":["a"],"tyop":1}`)
	if _, err := DecodePayloadStrict(StageResearch, raw); err == nil {
		t.Fatal("expected strict decode to reject unknown field")
	}
}

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"intake ok", IntakePayload{Summary: "launch"}, false},
		{"intake empty", IntakePayload{}, true},
		{"research ok", ResearchPayload{Insights: []string{"i"}}, false},
		{"research empty", ResearchPayload{}, true},
		{"research unnamed competitor", ResearchPayload{
			Insights:    []string{"i"},
			Competitors: []Competitor{{Positioning: "x"}},
		}, true},
		{"strategy missing pillars", StrategyPayload{Positioning: "p"}, true},
		{"creative missing cta", CreativePayload{Headlines: []string{"h"}}, true},
		{"activation budget out of range", ActivationPayload{
			Channels: []Channel{{Name: "email", BudgetPct: 1.5}},
			KPIs:     []KPI{{Metric: "signups", Target: "100"}},
		}, true},
		{"activation ok", ActivationPayload{
			Channels: []Channel{{Name: "email", Objective: "nurture", BudgetPct: 0.4}},
			KPIs:     []KPI{{Metric: "signups", Target: "100"}},
		}, false},
		{"packaging empty", PackagingPayload{}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.payload.Validate()
			if c.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
