package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	bookchat "github.com/djsadd/bookchat-go"
	"github.com/djsadd/bookchat-go/devserver"
	"github.com/djsadd/bookchat-go/sources"
	"github.com/djsadd/bookchat-go/sources/anthropic"
	"github.com/djsadd/bookchat-go/sources/lorem"
)

type serveOptions struct {
	addr        string
	framing     string
	source      string
	speed       string
	model       string
	downloadURL string
	token       string
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local development backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			framing := bookchat.Framing(so.framing)
			if !framing.IsValid() {
				return fmt.Errorf("unknown framing %q (want plain, ndjson or sse)", so.framing)
			}

			src, err := newSource(so)
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			handler := devserver.New(src,
				devserver.WithFraming(framing),
				devserver.WithRoutes(cfg.Routes),
				devserver.WithDownloadURL(so.downloadURL),
				devserver.WithRequiredToken(so.token),
				devserver.WithLogger(opts.logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runServer(ctx, so.addr, handler, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&so.addr, "addr", "127.0.0.1:8000", "listen address")
	flags.StringVar(&so.framing, "framing", string(bookchat.FramingNDJSON), "stream framing: plain, ndjson or sse")
	flags.StringVar(&so.source, "source", "lorem", "text source: lorem or anthropic")
	flags.StringVar(&so.speed, "speed", "medium", "lorem speed: slow, medium, fast or instant")
	flags.StringVar(&so.model, "model", anthropic.DefaultModel, "Claude model for the anthropic source")
	flags.StringVar(&so.downloadURL, "download-url", "", "download URL sent at the end of every stream")
	flags.StringVar(&so.token, "require-token", "", "reject requests without this bearer token")
	return cmd
}

func newSource(so *serveOptions) (sources.Source, error) {
	switch so.source {
	case "lorem":
		return lorem.New(lorem.WithDelay(lorem.SpeedFromName(so.speed))), nil
	case "anthropic":
		return anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), anthropic.WithModel(so.model))
	default:
		return nil, fmt.Errorf("unknown source %q (want lorem or anthropic)", so.source)
	}
}

func runServer(ctx context.Context, addr string, h http.Handler, opts *globalOptions) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info("development backend listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		opts.logger.Info("development backend stopped")
		return nil
	}
}
