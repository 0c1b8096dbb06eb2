// Command freightview browses stages, freight and promotions of a delivery pipeline.
//
// Usage:
//
//	freightview <command> [flags]
//
// Commands:
//
//	ui         Open the terminal dashboard
//	serve      Run the API server
//	stages     Apply and list stages
//	promote    Create a promotion
//	promotion  List, update and delete promotions
//	token      Issue an API token
//	version    Print version information
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/client"
	"github.com/Mr-Dark-debug/freightview/internal/config"
	"github.com/Mr-Dark-debug/freightview/pkg/jsonutil"
)

var version = "dev"

// options is shared by every subcommand.
type options struct {
	configPath string
	cfg        config.Config
	out        io.Writer
	errOut     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opt := &options{out: stdout, errOut: stderr}
	cmd := &cobra.Command{
		Use:           "freightview",
		Short:         "Browse stages, freight and promotions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opt.configPath)
			if err != nil {
				return err
			}
			opt.cfg = cfg
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&opt.configPath, "config", "", "path to a TOML config file")

	cmd.AddCommand(
		newUICommand(opt),
		newServeCommand(opt),
		newStagesCommand(opt),
		newPromoteCommand(opt),
		newPromotionCommand(opt),
		newTokenCommand(opt),
		newVersionCommand(opt),
	)
	return cmd
}

func (o *options) client() *client.Client {
	return client.New(o.cfg.API.URL, o.cfg.API.Token)
}

// project resolves --project, falling back to ui.project.
func (o *options) project(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.cfg.UI.Project != "" {
		return o.cfg.UI.Project, nil
	}
	return "", fmt.Errorf("--project is required")
}

func (o *options) printJSON(v any) error {
	s, err := jsonutil.PrettyJSON(v)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(o.out, s)
	return err
}
