package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-runner/internal/logger"
	"github.com/spigell/interview-runner/internal/sandbox"
	"github.com/spigell/interview-runner/internal/secrets"
	"github.com/spigell/interview-runner/internal/talent"
)

const (
	app       = "interview-runner"
	envPrefix = "INTERVIEW_RUNNER"
)

type Config struct {
	API       *APIConfig       `mapstructure:"api"`
	Media     *MediaConfig     `mapstructure:"media"`
	Integrity *IntegrityConfig `mapstructure:"integrity"`
	Sandbox   *SandboxConfig   `mapstructure:"sandbox"`
}

type APIConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	TokenFile    string        `mapstructure:"token-file"`
	UserAgent    string        `mapstructure:"user-agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
}

type MediaConfig struct {
	Video       bool   `mapstructure:"video"`
	Audio       bool   `mapstructure:"audio"`
	VideoDevice string `mapstructure:"video-device"`
	AudioDevice string `mapstructure:"audio-device"`
}

type IntegrityConfig struct {
	// Detector is "none" or "simulated".
	Detector    string        `mapstructure:"detector"`
	Probability float64       `mapstructure:"probability"`
	Interval    time.Duration `mapstructure:"interval"`
}

type SandboxConfig struct {
	sandbox.Config `mapstructure:",squash"`
	Scorer         *ScorerConfig `mapstructure:"scorer"`
}

type ScorerConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-runner runs AI interviews from the terminal and serves a local sandbox of the interview API",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-runner.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-file", "", "also write json logs to this file, rotated by size")
	rootCmd.PersistentFlags().String("api-url", "", "interview API base url")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:3000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.max-retries", 2)
	v.SetDefault("api.retry-backoff", 500*time.Millisecond)

	v.SetDefault("media.video", true)
	v.SetDefault("media.audio", true)

	v.SetDefault("integrity.detector", "none")
	v.SetDefault("integrity.probability", 0.05)
	v.SetDefault("integrity.interval", 5*time.Second)

	v.SetDefault("sandbox.addr", ":3000")
	v.SetDefault("sandbox.rate-limit", 20.0)
	v.SetDefault("sandbox.rate-burst", 40)
	v.SetDefault("sandbox.scorer.provider", "heuristic")
}

func initConfig() {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	for _, key := range []string{
		"api.token", "api.token-file",
		"sandbox.database-url",
		"sandbox.scorer.gemini.api-key", "sandbox.scorer.gemini.api-key-file",
		"sandbox.scorer.openai.api-key", "sandbox.scorer.openai.api-key-file",
	} {
		if err := viper.BindEnv(key); err != nil {
			log.Fatalf("binding %s environment variable: %v", key, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine; a broken or missing explicit one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("empty configuration")
	}
	if config.API == nil {
		config.API = &APIConfig{}
	}
	if config.Media == nil {
		config.Media = &MediaConfig{}
	}
	if config.Integrity == nil {
		config.Integrity = &IntegrityConfig{}
	}
	if config.Sandbox == nil {
		config.Sandbox = &SandboxConfig{}
	}
	if config.Sandbox.Scorer == nil {
		config.Sandbox.Scorer = &ScorerConfig{}
	}

	return config, nil
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		File:  viper.GetString("log-file"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func newTalentClient(cfg *APIConfig, log *zap.Logger) (*talent.Client, error) {
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "api token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("loading api token: %w", err)
	}

	client := talent.New(log, token)
	if cfg.URL != "" {
		client.APIURL = strings.TrimRight(cfg.URL, "/")
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries >= 0 {
		client.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		client.RetryBackoff = cfg.RetryBackoff
	}

	return client, nil
}
