package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/extract"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/logger"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/server"
	"github.com/mnemo-ai/mnemo/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New("mnemo")

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("LLM not configured, rule-based extraction only")
	}
	extractor := extract.New(cfg, llmClient)

	sim, err := memory.NewJaccardSimilarity()
	if err != nil {
		return fmt.Errorf("similarity provider: %w", err)
	}
	defer sim.Close()

	eng := engine.New(db, cfg, extractor, sim, nil, log)
	eng.StartMaintenance()
	defer eng.Stop()

	srv := server.New(db, eng, log, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", addr).Str("db", db.Path).
			Str("extractor", cfg.ExtractorProvider).Msg("mnemo serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	<-done
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

func openDB(cfg config.Config) (*store.DB, error) {
	path := cfg.DBPath
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
