package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"clinical_note_noiser/audit"
	"clinical_note_noiser/batch"
	"clinical_note_noiser/generator"
	"clinical_note_noiser/notes"
	"clinical_note_noiser/server"
)

const defaultConfigPath = "config/config.yaml"

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notenoise",
	Short: "Rewrite embedded clinical notes so they read like real clinician notes",
	Long: `notenoise walks FHIR-style JSON bundles, decodes every
presentedForm attachment, asks an LLM to rewrite the note in a randomly chosen
clinician style without changing its facts, and writes the re-encoded bundle to
an output directory. Every accepted rewrite is appended to an audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rewrite every document in --in-dir into --out-dir",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		proc, closeAudit, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeAudit()

		runner, err := batch.New(proc, batch.Options{
			InDir:   cfg.Batch.InDir,
			OutDir:  cfg.Batch.OutDir,
			Pattern: cfg.Batch.Pattern,
			Delay:   cfg.Batch.Delay,
		}, logger)
		if err != nil {
			return err
		}

		summaries, err := runner.Run(ctx)
		for _, s := range summaries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: rewritten %d notes\n", s.File, s.Rewritten)
		}
		if err != nil {
			if errors.Is(err, generator.ErrRetriesExhausted) {
				logger.Error("aborting batch: generation retries exhausted", zap.Error(err))
			}
			return err
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /api/documents for single-document rewrites",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		proc, closeAudit, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeAudit()

		srv, err := server.New(proc, logger)
		if err != nil {
			return err
		}
		listen := cfg.ServerAddr
		if listen == "" {
			listen = ":8080"
		}
		hs := &http.Server{Addr: listen, Handler: srv.Routes()}
		go func() {
			<-ctx.Done()
			_ = hs.Shutdown(context.Background())
		}()

		logger.Info("starting web server", zap.String("addr", listen))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config.yaml (JSON also accepted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	runCmd.Flags().String("in-dir", "", "directory of input documents (overrides batch.in_dir)")
	runCmd.Flags().String("out-dir", "", "directory for rewritten documents (overrides batch.out_dir)")
	runCmd.Flags().String("pattern", "", "glob selecting input documents (overrides batch.pattern)")
	runCmd.Flags().Duration("delay", 0, "pause between documents (overrides batch.delay)")
	runCmd.Flags().String("provider", "", "llm provider: openai, deepseek, gemini or mock (overrides llm.provider)")
	runCmd.Flags().String("model", "", "llm model (overrides llm.model)")

	serveCmd.Flags().String("addr", "", "http listen address (overrides server_addr)")
	serveCmd.Flags().String("provider", "", "llm provider (overrides llm.provider)")
	serveCmd.Flags().String("model", "", "llm model (overrides llm.model)")

	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and applies command-line overrides. A missing
// default config file means built-in defaults.
func loadConfig(cmd *cobra.Command) (batch.Config, error) {
	cfg, err := batch.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return batch.Config{}, err
		}
		cfg = batch.DefaultConfig()
	}

	flags := cmd.Flags()
	overrideString := func(name string, dst *string) {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return
		}
		v, _ := flags.GetString(name)
		*dst = v
	}
	overrideString("in-dir", &cfg.Batch.InDir)
	overrideString("out-dir", &cfg.Batch.OutDir)
	overrideString("pattern", &cfg.Batch.Pattern)
	overrideString("provider", &cfg.LLM.Provider)
	overrideString("model", &cfg.LLM.Model)
	overrideString("addr", &cfg.ServerAddr)
	if flags.Lookup("delay") != nil && flags.Changed("delay") {
		cfg.Batch.Delay, _ = flags.GetDuration("delay")
	}

	if err := cfg.Validate(); err != nil {
		return batch.Config{}, err
	}
	return cfg, nil
}

// buildPipeline wires provider, audit sinks, generation client, rewriter and processor.
func buildPipeline(ctx context.Context, cfg batch.Config) (*notes.Processor, func(), error) {
	llm, err := buildLLM(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	sink, closeAudit, err := buildAudit(cfg.Audit)
	if err != nil {
		return nil, nil, err
	}

	client, err := generator.NewClient(llm, sink,
		generator.WithBackoff(cfg.Retry.Backoff),
		generator.WithMinOutputChars(cfg.Retry.MinOutputChars),
		generator.WithModel(cfg.LLM.Model),
		generator.WithLogger(logger),
	)
	if err != nil {
		closeAudit()
		return nil, nil, err
	}
	rw, err := notes.NewRewriter(client, generator.DefaultStyles(), logger)
	if err != nil {
		closeAudit()
		return nil, nil, err
	}
	proc, err := notes.NewProcessor(rw, logger)
	if err != nil {
		closeAudit()
		return nil, nil, err
	}
	return proc, closeAudit, nil
}

func buildAudit(cfg batch.AuditConfig) (audit.Sink, func(), error) {
	var sinks []audit.Sink
	closeAudit := func() {}
	if cfg.LogFile != "" {
		fileSink, err := audit.NewFileSink(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, fileSink)
	}
	if cfg.SQLitePath != "" {
		db, err := audit.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, db)
		closeAudit = func() { _ = db.Close() }
	}
	return audit.Multi(sinks...), closeAudit, nil
}

func buildLLM(ctx context.Context, cfg batch.LLMConfig) (generator.LLMClient, error) {
	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAIResponses(cfg.Settings())
	case "deepseek":
		// DeepSeek 只提供 OpenAI 兼容的 chat completions 接口；base_url 由 Config.Validate 保证。
		return generator.NewOpenAIChat(cfg.Settings())
	case "gemini":
		return generator.NewGeminiLLM(ctx, cfg.Settings())
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
