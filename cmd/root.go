package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/ai"
	"github.com/resumix/cv-ranker/internal/ai/gemini"
	"github.com/resumix/cv-ranker/internal/batch"
	"github.com/resumix/cv-ranker/internal/logger"
	"github.com/resumix/cv-ranker/internal/parser"
	"github.com/resumix/cv-ranker/internal/secrets"
)

const (
	app = "cv-ranker"
)

type Config struct {
	Listen      string        `mapstructure:"listen"`
	Concurrency int           `mapstructure:"concurrency"`
	FileTimeout time.Duration `mapstructure:"file-timeout"`
	AI          *AIConfig     `mapstructure:"ai"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker extracts structured candidate profiles from resume files and ranks them against filter criteria",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.model", "CV_RANKER_MODEL"); err != nil {
		log.Fatalf("binding CV_RANKER_MODEL environment variable: %v", err)
	}

	viper.SetDefault("listen", ":8080")
	viper.SetDefault("concurrency", 4)
	viper.SetDefault("file-timeout", "2m")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file is optional; everything has a default or an env
	// binding. A present-but-broken file is still fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}

	return config, nil
}

// newGenerator builds the model client for the configured provider. A
// missing API key is deliberately not an error here: the provider raises it
// on first use.
func newGenerator(config *Config, log *zap.Logger) (ai.Generator, error) {
	aiConfig := config.AI
	if aiConfig == nil {
		aiConfig = &AIConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(aiConfig.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", aiConfig.Provider)
	}

	geminiConfig := aiConfig.Gemini
	if geminiConfig == nil {
		geminiConfig = &GeminiConfig{}
	}

	apiKey := geminiConfig.APIKey
	if geminiConfig.APIKeyFile != "" {
		key, err := secrets.Load("gemini api key", geminiConfig.APIKeyFile, geminiConfig.APIKey)
		if err != nil {
			return nil, err
		}
		apiKey = key
	}

	genLogger := log.With(
		zap.String(logger.FieldProvider, "gemini"),
		zap.String(logger.FieldModel, geminiConfig.Model),
	)

	return gemini.New(gemini.Config{
		APIKey:     apiKey,
		Model:      geminiConfig.Model,
		MaxRetries: geminiConfig.MaxRetries,
	}, genLogger), nil
}

// newOrchestrator wires the full pipeline: model client, structured
// extractor, batch orchestrator.
func newOrchestrator(config *Config, log *zap.Logger) (*batch.Orchestrator, error) {
	generator, err := newGenerator(config, log)
	if err != nil {
		return nil, err
	}

	profiles := parser.New(generator, log)

	return batch.New(profiles, log, config.Concurrency, config.FileTimeout), nil
}
