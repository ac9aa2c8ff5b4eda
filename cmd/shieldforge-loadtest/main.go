package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SHIELDFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "shieldforge-loadtest",
		Short: "Measure token validation and challenge consume throughput",
		Long: `shieldforge-loadtest drives two phases against a shieldforge Engine:

  validate:  ValidateToken over a pool of pre-issued HS256 tokens
  challenge: Store then Consume on the Redis challenge store, checking that
             a second Consume of the same value always fails

Flags may also be set through SHIELDFORGE_* environment variables, for example
SHIELDFORGE_REDIS_ADDR. Without a Redis address an in-process miniredis is used.

The compare subcommand checks two benchmark outputs for regressions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := loadOptions{
				Tokens:      v.GetInt("tokens"),
				Concurrency: v.GetInt("concurrency"),
				Ops:         v.GetInt("ops"),
				RedisAddr:   v.GetString("redis-addr"),
				Prefix:      v.GetString("prefix"),
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Int("tokens", 10000, "number of tokens to issue before the validate phase")
	flags.Int("concurrency", 256, "number of concurrent workers")
	flags.Int("ops", 200000, "operations per phase")
	flags.String("redis-addr", "", "redis address; miniredis is used when empty")
	flags.String("prefix", "sfc-load", "challenge key prefix")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(newCompareCmd())
	return cmd
}
