package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "epd-normalizer",
		Short:         "Load EPD datastock exports into a relational PostgreSQL schema",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default config.yaml when present)")

	cmd.AddCommand(newMigrateCmd(&configPath))
	cmd.AddCommand(newSeedVocabularyCmd(&configPath))
	cmd.AddCommand(newIngestCmd(&configPath))

	return cmd
}
