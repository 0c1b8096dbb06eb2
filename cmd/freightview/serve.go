package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/config"
	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/internal/logging"
	"github.com/Mr-Dark-debug/freightview/internal/server"
	"github.com/Mr-Dark-debug/freightview/pkg/timeutil"
)

func newServeCommand(opt *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, err := logging.NewConsole(opt.errOut, opt.cfg.Log.Level, "server")
			if err != nil {
				return err
			}

			if err := config.EnsureDir(opt.cfg.Server.DBPath); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			store, err := database.NewDBService(opt.cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			sc := server.DefaultConfig()
			sc.ListenAddr = opt.cfg.Server.Listen
			if listen != "" {
				sc.ListenAddr = listen
			}
			sc.HistoryLimit = opt.cfg.Server.HistoryLimit
			sc.WatchBuffer = opt.cfg.Server.WatchBuffer
			sc.TokenSecret = opt.cfg.Server.TokenSecret
			if sc.TokenSecret == "" {
				logger.Warn("server.token_secret is empty; API is unauthenticated")
			}

			srv := server.New(sc, store, logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			logger.Info("server started", "addr", srv.Addr(), "db", opt.cfg.Server.DBPath, "version", server.Version)

			<-ctx.Done()
			logger.Info("shutting down")
			start := time.Now()
			if err := srv.Stop(); err != nil {
				return fmt.Errorf("stop server: %w", err)
			}
			logger.Info("server stopped", "took", timeutil.FormatDuration(time.Since(start)))
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default server.listen)")
	return cmd
}
