package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newVersionCommand(opt *options) *cobra.Command {
	var clientOnly bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(opt.out, "Client Version:", version)
			if clientOnly {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			health, err := opt.client().Health(ctx)
			if err != nil {
				fmt.Fprintf(opt.errOut, "Server Version: unavailable (%v)\n", err)
				return nil
			}
			fmt.Fprintln(opt.out, "Server Version:", health.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clientOnly, "client", false, "print only the client version")
	return cmd
}
