package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/maildigest/internal/config"
	"github.com/jackzampolin/maildigest/internal/digest"
	"github.com/jackzampolin/maildigest/internal/home"
	"github.com/jackzampolin/maildigest/internal/mail"
	"github.com/jackzampolin/maildigest/internal/pipeline"
	"github.com/jackzampolin/maildigest/internal/providers"
	"github.com/jackzampolin/maildigest/internal/report"
	"github.com/jackzampolin/maildigest/internal/schema"
	"github.com/jackzampolin/maildigest/internal/state"
)

var (
	runID         string
	runCategories []string
	runSinceDays  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the digest pipeline",
	Long: `Run the full digest pipeline for every configured category.

Each category moves through fetch, extraction, merge, enrichment, and
rendering. Progress is checkpointed per step, so re-running with the same
--run-id resumes after the last completed step instead of repeating
backend calls.

Examples:
  maildigest run                         # New run named after today's date
  maildigest run --run-id 2026-08-29     # Resume a specific run
  maildigest run --categories news,deals # Override configured categories`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cm.OnChange(func(*config.Config) {
			logger.Info("config file changed, new values apply to the next run")
		})
		cm.WatchConfig()
		cfg := cm.Get()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if cfg.Provider.APIKey == "" || cfg.Provider.APIKey == "${OPENAI_API_KEY}" {
			return fmt.Errorf("no API key configured; run 'maildigest setup' or set OPENAI_API_KEY")
		}

		if runID == "" {
			runID = time.Now().Format("2006-01-02")
		}

		categories := runCategories
		if len(categories) == 0 {
			categories = cfg.Categories
		}
		if len(categories) == 0 {
			return fmt.Errorf("no categories configured")
		}

		sinceDays := runSinceDays
		if sinceDays == 0 {
			sinceDays = cfg.Mail.WindowDays
		}
		since := time.Now().AddDate(0, 0, -sinceDays)

		mailDir := cfg.Mail.Dir
		if mailDir == "" {
			mailDir = h.MailPath()
		}

		progress, err := state.NewProgressManager(h.ProgressPath(runID))
		if err != nil {
			return err
		}
		failures, err := state.NewFailedBatchManager(h.FailedBatchesPath(runID))
		if err != nil {
			return err
		}

		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:       cfg.Provider.APIKey,
			DefaultModel: cfg.Provider.Model,
			Timeout:      cfg.Provider.Timeout(),
			BaseURL:      cfg.Provider.BaseURL,
		})
		limiter := providers.NewRateLimiter(cfg.Provider.RequestsPerMinute, cfg.Provider.MinInterval())

		base, err := pipeline.NewLLMInvoker(pipeline.LLMInvokerConfig{
			Client:      client,
			RateLimiter: limiter,
			Model:       cfg.Provider.Model,
			MaxTokens:   cfg.Pipeline.MaxTokens,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		backoff := pipeline.NewBackoffInvoker(pipeline.BackoffInvokerConfig{
			Next:           base,
			Delays:         cfg.Pipeline.BackoffDelays(),
			AttemptTimeout: cfg.Pipeline.CallTimeout(),
			Logger:         logger,
		})
		invoker := pipeline.NewTruncatingInvoker(backoff, cfg.Pipeline.TruncationRatios, logger)

		renderer, err := report.NewMarkdownRenderer(cfg.Profile.Name)
		if err != nil {
			return err
		}

		runner, err := digest.NewRunner(digest.RunnerConfig{
			Home:               h,
			RunID:              runID,
			Source:             mail.NewDirSource(mailDir),
			Since:              since,
			Renderer:           renderer,
			Invoker:            invoker,
			Validator:          schema.ExtractionValidator{},
			Progress:           progress,
			Failures:           failures,
			SizeLimit:          cfg.Pipeline.SizeLimit,
			MaxHeaderChars:     cfg.Pipeline.MaxHeaderChars,
			BatchLadder:        cfg.Pipeline.BatchLadder,
			InitialBatchSize:   cfg.Pipeline.InitialBatchSize,
			MaxConcurrentUnits: cfg.Pipeline.MaxConcurrentUnits,
			Logger:             logger,
		})
		if err != nil {
			return err
		}

		logger.Info("starting run",
			"run_id", runID,
			"categories", categories,
			"since", since.Format("2006-01-02"),
			"provider", client.Name(),
			"model", cfg.Provider.Model)

		if err := runner.Run(ctx, categories); err != nil {
			return err
		}

		fmt.Printf("Run %s complete. Reports written under %s\n", runID, h.ReportsPath())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runID, "run-id", "", "run identifier (default: today's date; reuse to resume)")
	runCmd.Flags().StringSliceVar(&runCategories, "categories", nil, "categories to process (default: from config)")
	runCmd.Flags().IntVar(&runSinceDays, "since-days", 0, "only include mail newer than this many days (default: from config)")
}
