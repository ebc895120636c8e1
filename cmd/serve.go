package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/magnecruit/backend/internal/ai"
	"github.com/magnecruit/backend/internal/ai/gemini"
	"github.com/magnecruit/backend/internal/auth"
	"github.com/magnecruit/backend/internal/chat"
	"github.com/magnecruit/backend/internal/logger"
	"github.com/magnecruit/backend/internal/secrets"
	"github.com/magnecruit/backend/internal/server"
	"github.com/magnecruit/backend/internal/store"
	"github.com/magnecruit/backend/internal/workspace"
	"github.com/magnecruit/backend/internal/ws"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultAddr     = ":5000"
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the magnecruit backend server",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address, for example :5000")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

// serve is the main command for the backend.
func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the magnecruit backend", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Database == nil || config.Database.DSN == "" {
		logger.Fatal(
			"database connection is required",
			zap.String("hint", "set DATABASE_DSN environment variable or the 'database.dsn' key in the configuration file"),
		)
	}

	if config.Auth == nil || config.Auth.Secret == "" {
		logger.Fatal(
			"auth secret is required",
			zap.String("hint", "set AUTH_SECRET environment variable or the 'auth.secret' key in the configuration file"),
		)
	}

	st, err := store.Open(*config.Database, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}

	authSvc, err := auth.NewService(st, *config.Auth, logger)
	if err != nil {
		logger.Fatal("building the auth service", zap.Error(err))
	}

	if user, err := authSvc.SeedDemoUser(ctx, *config.Auth); err != nil {
		logger.Fatal("seeding the demo user", zap.Error(err))
	} else if user != nil {
		logger.Info("demo user is available", zap.String("email", user.Email))
	}

	gateway, err := newGateway(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai gateway", zap.Error(err))
	}

	jobs := workspace.NewJobs(st.DB(), logger)
	sequences := workspace.NewSequences(st.DB(), logger)
	orchestrator := chat.New(st, gateway, jobs, sequences, logger)

	origins := allowedOrigins(config)
	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub, orchestrator, server.CheckOrigin(origins), logger)

	srv := server.New(st, authSvc, orchestrator, jobs, sequences, logger)
	router := srv.NewRouter(server.RouterConfig{
		AllowedOrigins: origins,
		WSHandler:      wsHandler,
	})

	addr := defaultAddr
	if config.Server != nil && config.Server.Addr != "" {
		addr = config.Server.Addr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Fatal("shutdown failed", zap.Error(err))
		}
	}

	logger.Info("stopped")
}

// newGateway builds the model gateway from the ai section. A missing API key
// is not fatal: the client reports ai.ErrNotConfigured per call and the rest
// of the service keeps working.
func newGateway(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.Gateway, error) {
	cfg := gemini.Config{}

	if config != nil {
		provider := strings.TrimSpace(strings.ToLower(config.Provider))
		if provider != "" && provider != "gemini" {
			return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
		}

		if config.Gemini != nil {
			cfg.Model = config.Gemini.Model
			cfg.MaxRetries = config.Gemini.MaxRetries
			cfg.TimeoutSeconds = config.Gemini.TimeoutSeconds
			cfg.MaxLogLength = config.Gemini.MaxLogLength

			if gen := config.Gemini.Generation; gen != nil {
				cfg.Generation = gemini.Generation{
					Temperature:     gen.Temperature,
					TopP:            gen.TopP,
					TopK:            gen.TopK,
					MaxOutputTokens: gen.MaxOutputTokens,
				}
			}

			apiKey, err := secrets.Load(secrets.Source{
				Name:  "gemini api key",
				Value: config.Gemini.APIKey,
				File:  config.Gemini.APIKeyFile,
				Env:   "GEMINI_API_KEY",
			})
			if err != nil {
				logger.Warn("gemini api key is not available; model calls will fail as not configured", zap.Error(err))
			}
			cfg.APIKey = apiKey
		}
	}

	return gemini.New(ctx, cfg, logger)
}

func allowedOrigins(config *Config) []string {
	if config == nil || config.Server == nil {
		return nil
	}
	return config.Server.AllowedOrigins
}
