package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/comfforts/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/internal/config"
	"github.com/hankgalt/triage/internal/httpapi"
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the model once and serve the triage page and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	l, err := logger.LoggerFromContext(ctx)
	if err != nil {
		l = logger.GetSlogLogger()
	}

	p := triage.NewPipeline(cfg.Classifier())
	defer func() {
		if err := p.Close(context.Background()); err != nil {
			l.Warn("close pipeline", "error", err.Error())
		}
	}()

	// a failed load ends this process, it is never retried
	if _, err := p.Load(ctx); err != nil {
		l.Error("serve - error loading model", "error", err.Error())
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      httpapi.NewRouter(l, p),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("triage listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
