package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsbridge-ai/opsbridge/pkg/config"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "opsbridge",
		Short:   "Opsbridge — local inference gateway with remote command execution",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newPurgeCmd(),
		newStatsCmd(),
		newCacheCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration for maintenance
// subcommands: defaults when no file is named, the file otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
