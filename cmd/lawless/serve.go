package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/lawless-ai/internal/adapters/http"
	"github.com/PabloGalante/lawless-ai/internal/config"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the completion endpoint and the conversation API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Completion.Backend == config.CompletionProxy {
			return errors.New("serve hosts the completion endpoint itself, pick openai, vertex or mock as completion backend")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		log := observability.Logger()
		a.svc.Load(ctx)

		server := httpadapter.NewServer(a.svc, a.completion)
		addr := ":" + cfg.Port

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			log.Info("lawless listening", "addr", addr, "mode", cfg.Mode,
				"storage", cfg.Storage.Backend, "completion", cfg.Completion.Backend)
			return server.Listen(addr)
		})
		eg.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down")
			return server.ShutdownWithTimeout(shutdownTimeout)
		})

		if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
