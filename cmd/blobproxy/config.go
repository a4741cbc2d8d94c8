package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"blob-storage-proxy-go/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration with credentials masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Redacted(settingsViper)
		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, settings[key])
		}
		return nil
	},
}
