package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/pipeline"
	"github.com/yourorg/campaign-agency/internal/store"
)

type recordingDriver struct {
	driven []string
}

func (d *recordingDriver) DriveCampaign(ctx context.Context, campaignID string) error {
	d.driven = append(d.driven, campaignID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingDriver) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	driver := &recordingDriver{}
	ctrl := pipeline.NewController(logger, st, nil, pipeline.AutoApprove{}, pipeline.Limits{MaxRegenerations: 3})
	return &Server{
		Logger:     logger,
		Store:      st,
		Controller: ctrl,
		Driver:     driver,
	}, driver
}

func createCampaign(t *testing.T, s *Server, brief string) string {
	t.Helper()
	sess, err := s.Controller.Create(context.Background(), "cmp_"+strings.Repeat("a", 12), campaign.Brief{Text: brief})
	if err != nil {
		t.Fatal(err)
	}
	return sess.CampaignID
}

func TestServer_CreateCampaign(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest("POST", "/v1/campaigns", strings.NewReader(`{"brief":"Launch the fall line"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp CreateCampaignResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.CampaignID, "cmp_") {
		t.Fatalf("unexpected campaign id %q", resp.CampaignID)
	}

	sess, err := s.Store.Load(context.Background(), resp.CampaignID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.CurrentStage != campaign.StageIntake {
		t.Fatalf("new campaign at %s, want %s", sess.CurrentStage, campaign.StageIntake)
	}
}

func TestServer_CreateCampaignRejectsEmptyBrief(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/campaigns", strings.NewReader(`{"brief":"  "}`)))
	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestServer_ListAndGet(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns", nil))
	if rr.Code != 200 {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var sessions []campaign.Session
	if err := json.Unmarshal(rr.Body.Bytes(), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].CampaignID != id {
		t.Fatalf("unexpected list %+v", sessions)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns/"+id, nil))
	if rr.Code != 200 {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns/cmp_missing", nil))
	if rr.Code != 404 {
		t.Fatalf("missing: expected 404, got %d", rr.Code)
	}
}

func TestServer_Events(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns/"+id+"/events", nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var events []store.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != "campaign_created" {
		t.Fatalf("unexpected events %+v", events)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns/"+id+"/events?limit=bogus", nil))
	if rr.Code != 400 {
		t.Fatalf("bad limit: expected 400, got %d", rr.Code)
	}
}

func TestServer_Drive(t *testing.T) {
	s, driver := newTestServer(t)
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/campaigns/"+id+"/drive", nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(driver.driven) != 1 || driver.driven[0] != id {
		t.Fatalf("driver saw %v", driver.driven)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/campaigns/cmp_missing/drive", nil))
	if rr.Code != 404 {
		t.Fatalf("missing: expected 404, got %d", rr.Code)
	}
}

type busyDriver struct{}

func (busyDriver) DriveCampaign(ctx context.Context, campaignID string) error {
	return fmt.Errorf("campaign %s: %w", campaignID, ErrDriveInFlight)
}

func TestServer_DriveInFlightConflict(t *testing.T) {
	s, _ := newTestServer(t)
	s.Driver = busyDriver{}
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/campaigns/"+id+"/drive", nil))
	if rr.Code != 409 {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestServer_Export(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns/"+id+"/export", nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"campaign.json", "events.ndjson", "campaign_summary.md"} {
		if !names[want] {
			t.Fatalf("zip missing %s (have %v)", want, names)
		}
	}
}

func TestServer_Delete(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	id := createCampaign(t, s, "Launch the fall line")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("DELETE", "/v1/campaigns/"+id, nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, err := s.Store.Load(context.Background(), id); err == nil {
		t.Fatal("campaign still loadable after delete")
	}
}

func TestServer_AuthToken(t *testing.T) {
	s, _ := newTestServer(t)
	s.AuthToken = "sekrit"
	h := s.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/campaigns", nil))
	if rr.Code != 401 {
		t.Fatalf("unauthenticated: expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/v1/campaigns", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("authenticated: expected 200, got %d", rr.Code)
	}
}
