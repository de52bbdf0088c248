package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xtaosu/meme-memos/internal/auth"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token without logging in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if len(cfg.Auth.JWTSecret) < 16 {
				return errors.New("auth.jwt_secret must be at least 16 bytes")
			}
			if username == "" {
				username = cfg.Auth.Username
			}
			if strings.TrimSpace(username) == "" {
				return errors.New("username is required")
			}
			tok, exp, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Sign(username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintln(cmd.ErrOrStderr(), "expires at", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "token subject (default auth.username)")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for auth.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
