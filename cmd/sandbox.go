package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/ai"
	"github.com/spigell/interview-runner/internal/ai/gemini"
	"github.com/spigell/interview-runner/internal/ai/openai"
	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/sandbox"
	"github.com/spigell/interview-runner/internal/secrets"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve a local implementation of the interview API",
	Run: func(cmd *cobra.Command, _ []string) {
		serveSandbox()
	},
}

func init() {
	rootCmd.AddCommand(sandboxCmd)

	sandboxCmd.Flags().String("addr", "", "listen address")
	sandboxCmd.Flags().String("database-url", "", "postgres url; in-memory storage when empty")
	sandboxCmd.Flags().String("scorer", "", "scorer: heuristic, gemini or openai")

	viper.BindPFlag("sandbox.addr", sandboxCmd.Flags().Lookup("addr"))
	viper.BindPFlag("sandbox.database-url", sandboxCmd.Flags().Lookup("database-url"))
	viper.BindPFlag("sandbox.scorer.provider", sandboxCmd.Flags().Lookup("scorer"))
}

func serveSandbox() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	cfg := config.Sandbox

	log.Debug("sandbox config",
		zap.String("addr", cfg.Addr),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.String(logger.FieldProvider, cfg.Scorer.Provider),
	)

	scorer, err := newScorer(ctx, cfg.Scorer, log)
	if err != nil {
		log.Fatal("building scorer", zap.Error(err))
	}

	store, closeStore, err := sandbox.OpenStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("opening store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	svc := sandbox.NewService(store, scorer, log)
	router := sandbox.NewRouter(cfg.Config, svc, log)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Fatal("listening", zap.Error(err), zap.String("addr", cfg.Addr))
	}

	log.Info("sandbox is listening", zap.String("addr", ln.Addr().String()), zap.String("version", version))

	if err := sandbox.Serve(ctx, ln, router, log); err != nil {
		log.Error("sandbox stopped", zap.Error(err))
	}
}

func newScorer(ctx context.Context, cfg *ScorerConfig, log *zap.Logger) (ai.Scorer, error) {
	var primary ai.Scorer

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", "heuristic":
		return ai.Heuristic{}, nil
	case "gemini":
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gc.APIKey,
			Env:   "GEMINI_API_KEY",
			File:  gc.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		generator, err := gemini.NewGenerator(ctx, key, gc.Model, gc.MaxRetries, log)
		if err != nil {
			return nil, err
		}
		primary = gemini.NewScorer(generator, log, gc.MaxLogLength)
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &OpenAIConfig{}
		}
		key, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: oc.APIKey,
			Env:   "OPENAI_API_KEY",
			File:  oc.APIKeyFile,
		})
		if err != nil {
			return nil, err
		}
		primary, err = openai.NewScorer(key, oc.BaseURL, oc.Model, log)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", cfg.Provider)
	}

	return &ai.Fallback{Primary: primary, Secondary: ai.Heuristic{}, Logger: log}, nil
}
