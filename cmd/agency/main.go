// Command agency runs marketing campaigns through the staged pipeline from a
// terminal: create and drive a campaign, resume a paused one, and inspect or
// export persisted records.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/campaign-agency/internal/brand"
	"github.com/yourorg/campaign-agency/internal/campaign"
	"github.com/yourorg/campaign-agency/internal/config"
	"github.com/yourorg/campaign-agency/internal/export"
	"github.com/yourorg/campaign-agency/internal/llm"
	"github.com/yourorg/campaign-agency/internal/pipeline"
	"github.com/yourorg/campaign-agency/internal/stages"
	"github.com/yourorg/campaign-agency/internal/store"
	"github.com/yourorg/campaign-agency/internal/ui"
	"github.com/yourorg/campaign-agency/internal/util"
)

var (
	flagConfig  string
	flagDataDir string
	flagVerbose bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agency",
		Short:         "Staged marketing campaign pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config JSON file (default <data-dir>/config.json)")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.agency)")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log at debug level")

	root.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newListCmd(),
		newShowCmd(),
		newExportCmd(),
		newDeleteCmd(),
	)
	return root
}

func setup() (config.Config, *slog.Logger, error) {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Optional; API keys usually live here during development.
	if n, err := util.LoadEnvFile(".env"); err != nil {
		logger.Warn("dotenv load failed", "error", err)
	} else if n > 0 {
		logger.Debug("loaded env file", "vars", n)
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = config.ExpandHome(flagDataDir)
	}
	return cfg, logger, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return store.OpenSQLite(filepath.Join(cfg.DataDir, "agency.db"))
	default:
		return store.NewFileStore(cfg.DataDir)
	}
}

// buildController assembles the executor set and gate wiring for run/resume.
func buildController(cfg config.Config, logger *slog.Logger, st store.Store, kit brand.Kit, autoApprove bool) (*pipeline.Controller, error) {
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	execs := stages.Registry(client, kit, filepath.Join(cfg.DataDir, "exports"))

	var decisions pipeline.DecisionSource
	if autoApprove {
		decisions = pipeline.AutoApprove{}
	} else {
		decisions = ui.NewGatePrompt(os.Stdin, os.Stdout)
	}
	limits := pipeline.Limits{MaxRegenerations: cfg.MaxRegenerations}
	return pipeline.NewController(logger, st, execs, decisions, limits), nil
}

func retryPolicy(cfg config.Config) pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     time.Duration(cfg.Retry.Backoff),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadKit resolves the brand kit: the explicit flag wins, then the saved
// default, then whatever the campaign was created with.
func loadKit(cfg config.Config, flagPath, sessionPath string) (brand.Kit, string, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		settings, ok, err := config.LoadSettings(config.SettingsPath(cfg.DataDir))
		if err != nil {
			return brand.Kit{}, "", err
		}
		if ok {
			path = settings.BrandKit
		}
	}
	if path == "" {
		path = sessionPath
	}
	if path == "" {
		return brand.Kit{}, "", nil
	}
	kit, err := brand.Load(config.ExpandHome(path))
	if err != nil {
		return brand.Kit{}, "", fmt.Errorf("load brand kit %s: %w", path, err)
	}
	return kit, path, nil
}

func newRunCmd() *cobra.Command {
	var (
		briefText string
		briefFile string
		brandPath string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a campaign and drive it through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			text := strings.TrimSpace(briefText)
			if text == "" && briefFile != "" {
				b, err := os.ReadFile(briefFile)
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(b))
			}
			if text == "" {
				return fmt.Errorf("a campaign brief is required (--brief or --brief-file)")
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			kit, kitPath, err := loadKit(cfg, brandPath, "")
			if err != nil {
				return err
			}

			settings, ok, err := config.LoadSettings(config.SettingsPath(cfg.DataDir))
			if err != nil {
				return err
			}
			autoApprove := yes || (ok && settings.AutoApprove)

			ctrl, err := buildController(cfg, logger, st, kit, autoApprove)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sess, err := ctrl.Create(ctx, util.NewCampaignID(), campaign.Brief{Text: text, BrandKit: kitPath})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "campaign %s created\n", sess.CampaignID)

			return drive(ctx, cmd.OutOrStdout(), ctrl, sess, retryPolicy(cfg), cfg)
		},
	}
	cmd.Flags().StringVar(&briefText, "brief", "", "campaign brief text")
	cmd.Flags().StringVar(&briefFile, "brief-file", "", "file containing the campaign brief")
	cmd.Flags().StringVar(&brandPath, "brand", "", "brand kit YAML file")
	cmd.Flags().BoolVar(&yes, "yes", false, "approve every stage without prompting")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var (
		brandPath string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "resume <campaign_id>",
		Short: "Resume a paused campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := signalContext()
			defer cancel()

			sess, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			switch sess.Status {
			case campaign.StatusCompleted:
				return fmt.Errorf("campaign %s is already completed", sess.CampaignID)
			case campaign.StatusFailed:
				return fmt.Errorf("campaign %s has failed and cannot be resumed", sess.CampaignID)
			}

			kit, _, err := loadKit(cfg, brandPath, sess.Brief.BrandKit)
			if err != nil {
				return err
			}
			ctrl, err := buildController(cfg, logger, st, kit, yes)
			if err != nil {
				return err
			}

			if sess.Status == campaign.StatusPaused {
				sess, err = ctrl.Resume(ctx, sess)
				if err != nil {
					return err
				}
			}
			return drive(ctx, cmd.OutOrStdout(), ctrl, sess, retryPolicy(cfg), cfg)
		},
	}
	cmd.Flags().StringVar(&brandPath, "brand", "", "brand kit YAML file")
	cmd.Flags().BoolVar(&yes, "yes", false, "approve every stage without prompting")
	return cmd
}

func drive(ctx context.Context, out io.Writer, ctrl *pipeline.Controller, sess campaign.Session, policy pipeline.RetryPolicy, cfg config.Config) error {
	sess, err := pipeline.Drive(ctx, ctrl, sess, policy)
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.Progress(sess))
	if err != nil {
		return fmt.Errorf("campaign %s stopped at %s: %w", sess.CampaignID, sess.CurrentStage, err)
	}

	switch sess.Status {
	case campaign.StatusCompleted:
		fmt.Fprintf(out, "campaign %s completed\n", sess.CampaignID)
		fmt.Fprintf(out, "deliverables: %s\n", filepath.Join(cfg.DataDir, "exports", sess.CampaignID))
	case campaign.StatusPaused:
		fmt.Fprintf(out, "campaign %s paused at %s; resume with: agency resume %s\n",
			sess.CampaignID, sess.CurrentStage, sess.CampaignID)
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no campaigns")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %-10s  %s  %s\n",
					s.CampaignID, s.Status, s.CurrentStage,
					s.UpdatedAt.Local().Format("2006-01-02 15:04"),
					truncate(s.Brief.Text, 60))
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var showEvents bool
	cmd := &cobra.Command{
		Use:   "show <campaign_id>",
		Short: "Show one campaign's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "campaign: %s\n", sess.CampaignID)
			fmt.Fprintf(out, "status:   %s\n", sess.Status)
			fmt.Fprintf(out, "created:  %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "brief:    %s\n", truncate(sess.Brief.Text, 120))
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Progress(sess))

			for _, stage := range campaign.StageOrder {
				versions := sess.Artifacts[stage]
				if len(versions) == 0 {
					continue
				}
				state := "pending"
				switch {
				case sess.IsApproved(stage):
					state = "approved"
				case sess.IsSkipped(stage):
					state = "skipped"
				}
				fmt.Fprintf(out, "\n%s: %d version(s), %s\n", stage, len(versions), state)
			}

			if showEvents {
				events, err := st.ReadEvents(sess.CampaignID, 0)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				for _, ev := range events {
					msg := ev.Message
					if msg == "" {
						msg = "-"
					}
					fmt.Fprintf(out, "%s  %-20s  %s\n", ev.TS.Local().Format("15:04:05"), ev.Type, msg)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEvents, "events", false, "include the event log")
	return cmd
}

func newExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <campaign_id>",
		Short: "Write the deliverable bundle to a directory or zip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := export.Markdown(sess)
			if err != nil {
				return err
			}

			dest := outPath
			if dest == "" {
				dest = filepath.Join(cfg.DataDir, "exports", sess.CampaignID)
			}
			if strings.HasSuffix(dest, ".zip") {
				f, err := os.Create(dest)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := export.WriteZip(f, files); err != nil {
					return err
				}
			} else {
				if err := export.WriteFiles(dest, files); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d file(s) to %s\n", len(files), dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output directory or .zip path (default <data-dir>/exports/<id>)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <campaign_id>",
		Short: "Delete a campaign record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
