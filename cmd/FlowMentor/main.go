// Command FlowMentor serves the adaptive programming tutor over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/FlowMentor/internal/api"
	"github.com/BTreeMap/FlowMentor/internal/flow"
	"github.com/BTreeMap/FlowMentor/internal/genai"
	"github.com/BTreeMap/FlowMentor/internal/knowledge"
	"github.com/BTreeMap/FlowMentor/internal/mentor"
	"github.com/BTreeMap/FlowMentor/internal/metrics"
	"github.com/BTreeMap/FlowMentor/internal/store"
	"github.com/BTreeMap/FlowMentor/internal/util"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := newRootCmd(loadEnvironmentConfig()).Execute(); err != nil {
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	Moonshot           genai.ProviderConfig
	Google             genai.ProviderConfig
	OpenAI             genai.ProviderConfig
	GoogleOpenAICompat bool
	ProviderTimeout    time.Duration
	KnowledgeFile      string
	APIAddr            string
	DatabaseURL        string
	Debug              bool
}

// initializeLogger installs a structured text logger as the default.
func initializeLogger(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	envErr := godotenv.Load()

	config := Config{
		Moonshot: genai.ProviderConfig{
			APIKey:  util.GetEnv("MOONSHOT_API_KEY", ""),
			BaseURL: util.GetEnv("MOONSHOT_BASE_URL", genai.DefaultMoonshotBaseURL),
			Model:   util.GetEnv("MOONSHOT_MODEL", genai.DefaultMoonshotModel),
		},
		Google: genai.ProviderConfig{
			APIKey:  util.GetEnv("GOOGLE_AI_API_KEY", ""),
			BaseURL: util.GetEnv("GOOGLE_AI_BASE_URL", ""),
			Model:   util.GetEnv("GOOGLE_AI_MODEL", genai.DefaultGeminiModel),
		},
		OpenAI: genai.ProviderConfig{
			APIKey:  util.GetEnv("OPENAI_API_KEY", ""),
			BaseURL: util.GetEnv("OPENAI_BASE_URL", ""),
			Model:   util.GetEnv("OPENAI_MODEL", genai.DefaultOpenAIModel),
		},
		GoogleOpenAICompat: util.ParseBoolEnv("GOOGLE_AI_OPENAI_COMPAT", false),
		ProviderTimeout:    util.ParseDurationEnv("PROVIDER_TIMEOUT", genai.DefaultTimeout),
		KnowledgeFile:      util.GetEnv("KNOWLEDGE_FILE", knowledge.DefaultPath),
		APIAddr:            util.GetEnv("API_ADDR", ""),
		DatabaseURL:        util.GetEnv("DATABASE_URL", ""),
		Debug:              util.ParseBoolEnv("FLOWMENTOR_DEBUG", false),
	}

	if config.APIAddr == "" {
		if port := util.GetEnv("PORT", ""); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = api.DefaultAddr
		}
	}

	if envErr != nil {
		slog.Debug("failed to load .env file", "error", envErr)
	}
	return config
}

// newRootCmd builds the CLI. Flag defaults come from config and override it when given.
func newRootCmd(config Config) *cobra.Command {
	cfg := &config
	root := &cobra.Command{
		Use:          "FlowMentor",
		Short:        "FlowMentor - adaptive programming tutor",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd.ErrOrStderr(), cfg.Debug)
			slog.Debug("configuration loaded",
				"moonshotKeySet", cfg.Moonshot.APIKey != "",
				"googleKeySet", cfg.Google.APIKey != "",
				"googleOpenAICompat", cfg.GoogleOpenAICompat,
				"openaiKeySet", cfg.OpenAI.APIKey != "",
				"providerTimeout", cfg.ProviderTimeout,
				"knowledgeFile", cfg.KnowledgeFile,
				"apiAddr", cfg.APIAddr,
				"databaseURLSet", cfg.DatabaseURL != "")
		},
	}
	root.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging (overrides $FLOWMENTOR_DEBUG)")
	root.PersistentFlags().StringVar(&cfg.KnowledgeFile, "knowledge-file", cfg.KnowledgeFile, "knowledge document path (overrides $KNOWLEDGE_FILE)")
	root.PersistentFlags().DurationVar(&cfg.ProviderTimeout, "provider-timeout", cfg.ProviderTimeout, "per-provider request timeout (overrides $PROVIDER_TIMEOUT)")

	root.AddCommand(newServeCmd(cfg), newAskCmd(cfg))
	return root
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			exchanges, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open exchange store: %w", err)
			}
			defer func() {
				if cerr := exchanges.Close(); cerr != nil {
					slog.Warn("serve: failed to close exchange store", "error", cerr)
				}
			}()

			server := api.NewServer(buildTutorFlow(ctx, *cfg, exchanges), exchanges, buildAPIOptions(*cfg)...)
			slog.Info("Bootstrapping FlowMentor", "addr", server.Addr(), "version", version)
			if err := server.Run(ctx); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			slog.Info("FlowMentor exited successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.APIAddr, "api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)")
	cmd.Flags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "exchange log DSN (overrides $DATABASE_URL)")
	return cmd
}

func newAskCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer one message and print the response payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf := buildTutorFlow(cmd.Context(), *cfg, nil)
			payload, err := tf.HandleChat(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode payload: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

// buildGenAIConfig constructs the provider chain configuration
func buildGenAIConfig(cfg Config) genai.Config {
	return genai.Config{
		Moonshot:           cfg.Moonshot,
		Google:             cfg.Google,
		OpenAI:             cfg.OpenAI,
		GoogleOpenAICompat: cfg.GoogleOpenAICompat,
		Timeout:            cfg.ProviderTimeout,
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(cfg Config) []api.Option {
	var apiOpts []api.Option
	if cfg.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(cfg.APIAddr))
	}
	// Worst case every provider times out in turn.
	if minWrite := 3*cfg.ProviderTimeout + 30*time.Second; minWrite > api.DefaultWriteTimeout {
		apiOpts = append(apiOpts, api.WithWriteTimeout(minWrite))
	}
	return apiOpts
}

// buildTutorFlow wires knowledge, providers and the exchange log into a pipeline.
func buildTutorFlow(ctx context.Context, cfg Config, exchanges store.Store) *flow.TutorFlow {
	kb, err := knowledge.Load(cfg.KnowledgeFile)
	if err != nil {
		slog.Warn("knowledge base unavailable, retrieval disabled", "path", cfg.KnowledgeFile, "error", err)
	}

	chain := genai.NewChainFromConfig(ctx, buildGenAIConfig(cfg), genai.WithObserver(func(a genai.Attempt) {
		metrics.ObserveProviderAttempt(a.Provider, a.OK(), a.Duration)
	}))
	if !chain.Available() {
		slog.Warn("no LLM provider configured, answers will be synthesized locally")
	}

	return flow.NewTutorFlow(mentor.NewEngine(), kb, chain, exchanges)
}
