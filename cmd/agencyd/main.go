// Command agencyd serves the campaign HTTP API: create campaigns, read
// progress and events, download export bundles, and drive a campaign to
// completion with the auto-approve policy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/campaign-agency/internal/api"
	"github.com/yourorg/campaign-agency/internal/brand"
	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/config"
	"github.com/yourorg/campaign-agency/internal/llm"
	"github.com/yourorg/campaign-agency/internal/pipeline"
	"github.com/yourorg/campaign-agency/internal/stages"
	"github.com/yourorg/campaign-agency/internal/store"
	"github.com/yourorg/campaign-agency/internal/util"
)

func main() {
	var (
		flagListen  = flag.String("listen", "", "listen address (default 127.0.0.1:8787)")
		flagDataDir = flag.String("data-dir", "", "data directory (default ~/.agency)")
		flagAuth    = flag.String("auth-token", "", "auth token (Bearer). If set, required for all requests.")
		flagConfig  = flag.String("config", "", "config JSON file (default <data-dir>/config.json)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if n, err := util.LoadEnvFile(".env"); err != nil {
		logger.Warn("dotenv load failed", "error", err)
	} else if n > 0 {
		logger.Info("loaded env file", "vars", n)
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *flagListen != "" {
		cfg.ListenAddr = *flagListen
	}
	if *flagDataDir != "" {
		cfg.DataDir = config.ExpandHome(*flagDataDir)
	}
	if *flagAuth != "" {
		cfg.AuthToken = *flagAuth
	}

	var st store.Store
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err = store.OpenSQLite(filepath.Join(cfg.DataDir, "agency.db"))
	default:
		st, err = store.NewFileStore(cfg.DataDir)
	}
	if err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	var kit brand.Kit
	if settings, ok, err := config.LoadSettings(config.SettingsPath(cfg.DataDir)); err == nil && ok && settings.BrandKit != "" {
		kit, err = brand.Load(config.ExpandHome(settings.BrandKit))
		if err != nil {
			logger.Warn("brand kit load failed", "path", settings.BrandKit, "err", err)
			kit = brand.Kit{}
		}
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		logger.Error("llm client init failed", "err", err)
		os.Exit(1)
	}

	execs := stages.Registry(client, kit, filepath.Join(cfg.DataDir, "exports"))
	ctrl := pipeline.NewController(logger, st, execs, pipeline.AutoApprove{}, pipeline.Limits{MaxRegenerations: cfg.MaxRegenerations})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := &autoDriver{
		logger: logger,
		store:  st,
		ctrl:   ctrl,
		policy: pipeline.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: time.Duration(cfg.Retry.Backoff)},
		base:   rootCtx,
	}

	srv := &api.Server{
		Logger:     logger,
		Store:      st,
		Controller: ctrl,
		Driver:     driver,
		AuthToken:  cfg.AuthToken,
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info("agencyd listening", "addr", cfg.ListenAddr, "data_dir", cfg.DataDir, "backend", cfg.Backend)
		if cfg.AuthToken != "" {
			logger.Info("auth enabled", "mode", "bearer")
		}
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("agencyd failed", "err", err)
		os.Exit(1)
	}
}

// autoDriver runs campaigns in the background with the auto-approve policy.
// Requests return immediately; progress lands in the store and event log.
// At most one drive runs per campaign at a time; overlapping drives would
// commit stale sessions over each other's work.
type autoDriver struct {
	logger *slog.Logger
	store  store.Store
	ctrl   *pipeline.Controller
	policy pipeline.RetryPolicy
	base   context.Context

	mu       sync.Mutex
	inflight map[string]struct{}
}

// begin marks the campaign as being driven. Returns false if a drive is
// already running for it.
func (d *autoDriver) begin(campaignID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight == nil {
		d.inflight = make(map[string]struct{})
	}
	if _, ok := d.inflight[campaignID]; ok {
		return false
	}
	d.inflight[campaignID] = struct{}{}
	return true
}

func (d *autoDriver) end(campaignID string) {
	d.mu.Lock()
	delete(d.inflight, campaignID)
	d.mu.Unlock()
}

func (d *autoDriver) DriveCampaign(ctx context.Context, campaignID string) error {
	sess, err := d.store.Load(ctx, campaignID)
	if err != nil {
		return err
	}
	switch sess.Status {
	case campaign.StatusCompleted:
		return fmt.Errorf("campaign %s is already completed", campaignID)
	case campaign.StatusFailed:
		return fmt.Errorf("campaign %s has failed", campaignID)
	}

	if !d.begin(campaignID) {
		return fmt.Errorf("campaign %s: %w", campaignID, api.ErrDriveInFlight)
	}

	go func() {
		defer d.end(campaignID)
		sess := sess
		var err error
		if sess.Status == campaign.StatusPaused {
			sess, err = d.ctrl.Resume(d.base, sess)
			if err != nil {
				d.logger.Error("resume failed", "campaign_id", campaignID, "err", err)
				return
			}
		}
		sess, err = pipeline.Drive(d.base, d.ctrl, sess, d.policy)
		if err != nil {
			d.logger.Error("drive stopped", "campaign_id", campaignID, "stage", sess.CurrentStage, "err", err)
			return
		}
		d.logger.Info("drive finished", "campaign_id", campaignID, "status", sess.Status)
	}()
	return nil
}
