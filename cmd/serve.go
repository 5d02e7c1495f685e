package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/duckgeunpark/IWT/internal/config"
	"github.com/duckgeunpark/IWT/internal/database/postgres"
	"github.com/duckgeunpark/IWT/internal/enrich"
	"github.com/duckgeunpark/IWT/internal/geocode"
	"github.com/duckgeunpark/IWT/internal/post"
	"github.com/duckgeunpark/IWT/internal/storage"
	"github.com/duckgeunpark/IWT/internal/web"
	"github.com/duckgeunpark/IWT/internal/web/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the IWT API server.
The server exposes the photo upload, enrichment, post assembly and
location endpoints consumed by the web frontend.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("provider", "", "AI provider: groq, openai or gemini (defaults to AI_PROVIDER)")
}

// resolveServeHostPort resolves host and port from flags, letting the
// WEB_HOST and WEB_PORT environment variables override them.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if cfg.Web.Port != 0 {
		port = cfg.Web.Port
	}
	if cfg.Web.Host != "" {
		host = cfg.Web.Host
	}
	return host, port
}

// geocoderOptions maps geocoder config onto client options, leaving the
// client defaults in place for unset values.
func geocoderOptions(cfg *config.GeocoderConfig) []geocode.Option {
	var opts []geocode.Option
	if cfg.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.BaseURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.UserAgent))
	}
	if cfg.Zoom != 0 {
		opts = append(opts, geocode.WithZoom(cfg.Zoom))
	}
	return opts
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()
	defer pool.Close()

	store, err := storage.NewClient(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	verifier, err := middleware.NewVerifier(&cfg.Auth)
	if err != nil {
		return err
	}

	provider, err := newAIProvider(cmd.Context(), cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}
	fmt.Printf("Using AI provider %s\n", provider.Name())

	geocoder := geocode.NewClient(geocoderOptions(&cfg.Geocoder)...)

	deps := web.Deps{
		Photos:    postgres.NewPhotoRepository(pool),
		Posts:     postgres.NewPostRepository(pool),
		DB:        pool,
		Storage:   store,
		Enricher:  enrich.NewOrchestrator(geocoder, provider, store),
		Assembler: post.NewAssembler(provider),
		Planner:   provider,
		Provider:  provider.Name(),
		Verifier:  verifier,
	}

	host, port := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(deps, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting IWT API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
