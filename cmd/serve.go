package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/resumix/cv-ranker/internal/logger"
	"github.com/resumix/cv-ranker/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resume upload and ranking HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default :8080)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	orchestrator, err := newOrchestrator(config, logger)
	if err != nil {
		logger.Fatal("building the extraction pipeline", zap.Error(err))
	}

	srv := server.New(orchestrator, logger)

	logger.Info("starting the cv-ranker api",
		zap.String("version", version),
		zap.String("listen", config.Listen),
		zap.Int("concurrency", config.Concurrency),
	)

	if err := srv.Router().Run(config.Listen); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}
