package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/config"
	"github.com/Mr-Dark-debug/freightview/internal/database"
	"github.com/Mr-Dark-debug/freightview/internal/logging"
	"github.com/Mr-Dark-debug/freightview/internal/tui"
)

func newUICommand(opt *options) *cobra.Command {
	var projectFlag, stage string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(projectFlag)
			if err != nil {
				return err
			}

			logger, closeLog, err := logging.NewFile(opt.cfg.Log.File, opt.cfg.Log.Level, "ui")
			if err != nil {
				return err
			}
			defer closeLog()

			if err := config.EnsureDir(opt.cfg.Prefs.Path); err != nil {
				return fmt.Errorf("create prefs dir: %w", err)
			}
			prefs, err := database.NewDBService(opt.cfg.Prefs.Path)
			if err != nil {
				return fmt.Errorf("open prefs: %w", err)
			}
			defer prefs.Close()

			logger.Info("dashboard starting", "project", project, "api", opt.cfg.API.URL)
			return tui.Run(cmd.Context(), tui.Options{
				Project:         project,
				Stage:           stage,
				Backend:         tui.NewClientBackend(opt.client()),
				Prefs:           prefs,
				Logger:          logger,
				RefreshInterval: opt.cfg.UI.RefreshInterval,
				PageSize:        opt.cfg.UI.PageSize,
			})
		},
	}
	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "project to browse (default ui.project)")
	cmd.Flags().StringVar(&stage, "stage", "", "open directly on this stage's promotions")
	return cmd
}
