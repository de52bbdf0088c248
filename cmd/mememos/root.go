package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xtaosu/meme-memos/internal/config"
)

type rootOptions struct {
	configPath string
	envOnly    bool
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath, o.envOnly)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{
		configPath: os.Getenv("MEMO_CONFIG"),
		envOnly:    envBool("MEMO_ENV_ONLY"),
	}
	if opts.configPath == "" {
		opts.configPath = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "mememos",
		Short:         "Meme memo tracker",
		Long:          "Tracks tokens, dated events on them and the large buys that preceded each event.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", opts.configPath, "config file (MEMO_CONFIG)")
	cmd.PersistentFlags().BoolVar(&opts.envOnly, "env-only", opts.envOnly, "read settings from MEMO_* variables only (MEMO_ENV_ONLY)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newHashPasswordCommand())
	return cmd
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1"
}
