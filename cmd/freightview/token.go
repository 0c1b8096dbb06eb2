package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/server"
)

func newTokenCommand(opt *options) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with server.token_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := server.IssueToken(opt.cfg.Server.TokenSecret, subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(opt.out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "freightview", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	return cmd
}
