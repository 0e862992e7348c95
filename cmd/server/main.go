// Command server runs the video clip service: upload and index videos,
// plan and cut clips, publish the results.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/danschewy/twelvesocial/internal/api"
	"github.com/danschewy/twelvesocial/internal/chat"
	"github.com/danschewy/twelvesocial/internal/clips"
	"github.com/danschewy/twelvesocial/internal/config"
	"github.com/danschewy/twelvesocial/internal/ffmpeg"
	"github.com/danschewy/twelvesocial/internal/llm"
	"github.com/danschewy/twelvesocial/internal/logging"
	"github.com/danschewy/twelvesocial/internal/publish"
	"github.com/danschewy/twelvesocial/internal/sms"
	"github.com/danschewy/twelvesocial/internal/store"
	"github.com/danschewy/twelvesocial/internal/twelvelabs"
	"github.com/danschewy/twelvesocial/internal/uploads"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "twelvesocial-server",
		Short:        "Turn uploaded videos into shareable social clips",
		Version:      config.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting twelvesocial",
		"version", config.Version,
		"commit", config.GitCommit,
		"store_backend", cfg.StoreBackend(),
		"video_api_key", logging.SanitizeToken(cfg.TwelveLabsAPIKey()),
	)

	var taskStore store.TaskStore
	var sessionStore store.SessionStore
	var db *store.DB
	if cfg.StoreBackend() == config.StoreSQLite {
		db, err = store.New(cfg.DBPath(), logging.WithComponent(logger, "store"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		taskStore = db
		sessionStore = db
	} else {
		taskStore = store.NewMemoryTaskStore()
		sessionStore = store.NewMemorySessionStore()
	}

	videoClient := twelvelabs.NewClient(
		cfg.TwelveLabsBaseURL(), cfg.TwelveLabsAPIKey(),
		logging.WithComponent(logger, "twelvelabs"),
	)
	uploadSvc := uploads.NewService(
		videoClient, taskStore, cfg.TwelveLabsIndexID(),
		logging.WithComponent(logger, "uploads"),
	)

	extractor, err := ffmpeg.NewExtractor(
		cfg.FFmpegPath(), cfg.ExtractTimeout(),
		logging.WithComponent(logger, "ffmpeg"),
	)
	if err != nil {
		return fmt.Errorf("initialise ffmpeg: %w", err)
	}
	clipSvc, err := clips.NewService(extractor, cfg.ClipDir(), logging.WithComponent(logger, "clips"))
	if err != nil {
		return fmt.Errorf("initialise clip service: %w", err)
	}

	llmClient := llm.NewClient(
		cfg.OpenAIBaseURL(), cfg.OpenAIAPIKey(), cfg.OpenAIModel(),
		logging.WithComponent(logger, "llm"),
	)
	planner := chat.NewPlanner(llmClient, sessionStore, logging.WithComponent(logger, "chat"))

	publisher, err := newPublisher(cfg, logging.WithComponent(logger, "publish"))
	if err != nil {
		return fmt.Errorf("initialise object storage: %w", err)
	}

	smsSender := sms.NewSender(
		cfg.TwilioAccountSID(), cfg.TwilioAuthToken(), cfg.TwilioPhoneNumber(),
		logging.WithComponent(logger, "sms"),
	)

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		AllowedOrigins: splitOrigins(cfg.AllowedOrigins()),
		IndexID:        cfg.TwelveLabsIndexID(),
		Uploads:        uploadSvc,
		Videos:         videoClient,
		Clips:          clipSvc,
		Planner:        planner,
		Refiner:        llmClient,
		Publisher:      publisher,
		SMS:            smsSender,
		Logger:         logging.WithComponent(logger, "api"),
		StartTime:      time.Now(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// newPublisher wires object storage when credentials are present. An
// unconfigured publisher still serves requests; it answers each with a
// configuration error instead of failing startup.
func newPublisher(cfg config.Config, logger *slog.Logger) (*publish.Publisher, error) {
	if cfg.SpacesKey() == "" || cfg.SpacesSecret() == "" || cfg.SpacesBucket() == "" {
		logger.Warn("object storage not configured, publish endpoint disabled")
		return publish.NewPublisher(nil, cfg.SpacesEndpoint(), cfg.SpacesBucket(), logger), nil
	}

	client, err := minio.New(cfg.SpacesEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.SpacesKey(), cfg.SpacesSecret(), ""),
		Secure: true,
		Region: cfg.SpacesRegion(),
	})
	if err != nil {
		return nil, err
	}
	return publish.NewPublisher(client, cfg.SpacesEndpoint(), cfg.SpacesBucket(), logger), nil
}

func splitOrigins(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
