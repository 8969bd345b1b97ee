package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/api"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/guard"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/tutor"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tutor over a JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	logger := setupLogger(cmd.ErrOrStderr())
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	bans, err := guard.NewIPBanList(cfg.Guard.BannedIPs)
	if err != nil {
		return fmt.Errorf("guard.banned_ips: %w", err)
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := tutor.New(p, store, cfg)
	if err != nil {
		return err
	}
	t.SetLogger(logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(t, bans, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "provider", p.Name())
		fmt.Fprintf(cmd.ErrOrStderr(), "dstutor serving on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
