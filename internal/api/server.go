package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/export"
	"github.com/yourorg/campaign-agency/internal/pipeline"
	"github.com/yourorg/campaign-agency/internal/store"
	"github.com/yourorg/campaign-agency/internal/util"
)

// Driver runs a campaign to its next stopping point (completed, paused, or
// error). The daemon supplies an async implementation driving the pipeline
// with the auto-approve policy.
type Driver interface {
	DriveCampaign(ctx context.Context, campaignID string) error
}

// ErrDriveInFlight is returned by a Driver when the campaign is already being
// driven. Concurrent drives of the same campaign would race each other's
// commits, so duplicates are rejected with 409.
var ErrDriveInFlight = errors.New("campaign drive already in flight")

type Server struct {
	Logger     *slog.Logger
	Store      store.Store
	Controller *pipeline.Controller
	Driver     Driver
	AuthToken  string
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]any{"ok": true})
	})

	mux.HandleFunc("/v1/campaigns", s.handleCampaigns)
	mux.HandleFunc("/v1/campaigns/", s.handleCampaign)

	var h http.Handler = mux
	h = CORSMiddleware()(h)
	h = AuthMiddleware(s.AuthToken)(h)
	h = LoggingMiddleware(s.Logger)(h)
	h = RecoverMiddleware(s.Logger)(h)
	return h
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.Store.List(r.Context())
		if err != nil {
			util.WriteError(w, 500, err.Error())
			return
		}
		util.WriteJSON(w, 200, sessions)
	case http.MethodPost:
		var req CreateCampaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			util.WriteError(w, 400, "invalid json")
			return
		}
		if strings.TrimSpace(req.Brief) == "" {
			util.WriteError(w, 400, "brief required")
			return
		}
		brief := campaign.Brief{Text: req.Brief, BrandKit: req.BrandKit}
		sess, err := s.Controller.Create(r.Context(), util.NewCampaignID(), brief)
		if err != nil {
			util.WriteError(w, 400, err.Error())
			return
		}
		util.WriteJSON(w, 200, CreateCampaignResponse{CampaignID: sess.CampaignID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	// path: /v1/campaigns/{id}[/...]
	rest := strings.TrimPrefix(r.URL.Path, "/v1/campaigns/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		util.WriteError(w, 404, "campaign id required")
		return
	}
	id := parts[0]
	if len(parts) == 1 || parts[1] == "" {
		switch r.Method {
		case http.MethodGet:
			sess, err := s.Store.Load(r.Context(), id)
			if err != nil {
				util.WriteError(w, statusFor(err), err.Error())
				return
			}
			util.WriteJSON(w, 200, sess)
		case http.MethodDelete:
			if err := s.Store.Delete(r.Context(), id); err != nil {
				util.WriteError(w, statusFor(err), err.Error())
				return
			}
			util.WriteJSON(w, 200, map[string]any{"ok": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		max := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				util.WriteError(w, 400, "invalid limit")
				return
			}
			max = n
		}
		if _, err := s.Store.Load(r.Context(), id); err != nil {
			util.WriteError(w, statusFor(err), err.Error())
			return
		}
		events, err := s.Store.ReadEvents(id, max)
		if err != nil {
			util.WriteError(w, 500, err.Error())
			return
		}
		if events == nil {
			events = []store.Event{}
		}
		util.WriteJSON(w, 200, events)
	case "drive":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if s.Driver == nil {
			util.WriteError(w, 503, "driver unavailable")
			return
		}
		sess, err := s.Store.Load(r.Context(), id)
		if err != nil {
			util.WriteError(w, statusFor(err), err.Error())
			return
		}
		if err := s.Driver.DriveCampaign(r.Context(), id); err != nil {
			if errors.Is(err, ErrDriveInFlight) {
				util.WriteError(w, http.StatusConflict, err.Error())
				return
			}
			util.WriteError(w, 400, err.Error())
			return
		}
		util.WriteJSON(w, 200, DriveResponse{
			CampaignID: sess.CampaignID,
			Status:     string(sess.Status),
			Stage:      string(sess.CurrentStage),
		})
	case "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleExport(w, r, id)
	default:
		util.WriteError(w, 404, "unknown endpoint")
	}
}

// handleExport streams a zip of the campaign record, its event log, and the
// rendered markdown deliverables.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.Store.Load(r.Context(), id)
	if err != nil {
		util.WriteError(w, statusFor(err), err.Error())
		return
	}
	files, err := export.Markdown(sess)
	if err != nil {
		util.WriteError(w, 500, err.Error())
		return
	}

	record, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		util.WriteError(w, 500, err.Error())
		return
	}
	files["campaign.json"] = string(record) + "\n"

	events, err := s.Store.ReadEvents(id, 0)
	if err == nil && len(events) > 0 {
		var sb strings.Builder
		for _, ev := range events {
			line, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			sb.Write(line)
			sb.WriteByte('\n')
		}
		files["events.ndjson"] = sb.String()
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	if err := export.WriteZip(w, files); err != nil {
		s.Logger.Error("export zip", "campaign_id", id, "err", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 404
	case errors.Is(err, store.ErrCorruptState):
		return 500
	case errors.Is(err, store.ErrConcurrentAccess):
		return 409
	default:
		return 500
	}
}
