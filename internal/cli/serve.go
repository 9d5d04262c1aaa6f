package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"home-dispatch/internal/application"
	"home-dispatch/internal/httpapi"
)

func (a *App) newServeCmd() *cobra.Command {
	var (
		addr   string
		listen bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, WebSocket endpoint and web form",
		Long: `Serve the HTTP surface:

  POST /api/command   dispatch a text command ({"text": "..."} or plain text)
  POST /api/audio     transcribe a recording and dispatch it
  GET  /api/status    current device state
  GET  /api/catalog   declared operations
  GET  /ws            WebSocket conversation ("command", "cancel", "reset")
  GET  /              web form
  GET  /health, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), addr, listen)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&listen, "listen", false, "Also run the voice listener on the configured audio source")

	return cmd
}

func (a *App) serve(ctx context.Context, addr string, listen bool) error {
	rt, err := a.buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	if addr == "" {
		addr = rt.cfg.HTTP.Addr
	}

	api := httpapi.NewServer(rt.dispatcher, rt.stt, rt.logger, httpapi.Options{
		RequestsPerMinute: rt.cfg.HTTP.RequestsPerMinute,
		Burst:             rt.cfg.HTTP.Burst,
		MaxAudioBytes:     rt.cfg.HTTP.MaxAudioBytes,
		HistoryTurns:      rt.cfg.SessionHistory(),
	})
	server := api.NewHTTPServer(addr)

	errCh := make(chan error, 2)
	go func() {
		rt.logger.Info("http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if listen {
		listener := application.NewListener(a.audioSource(rt), rt.stt, rt.dispatcher, rt.cfg.SessionHistory(), rt.logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("voice listener: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	rt.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		rt.logger.Warn("graceful shutdown failed", "error", shutdownErr)
	}

	return err
}
