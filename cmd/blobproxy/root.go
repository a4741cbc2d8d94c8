package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blob-storage-proxy-go/config"
)

var (
	cfgFile string
	envFile string

	settingsViper *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:           "blobproxy",
	Short:         "REST facade over cloud blob storage",
	Long:          `Lists, creates and deletes containers and blobs, and hands out short-lived read links.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		settingsViper = config.NewViper()
		if cfgFile != "" {
			if err := config.ReadConfigFile(settingsViper, cfgFile); err != nil {
				return err
			}
		}
		if flag := cmd.Flags().Lookup("listen"); flag != nil {
			if err := settingsViper.BindPFlag(config.KeyServerListen, flag); err != nil {
				return err
			}
		}
		return nil
	},
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.KeyServerLogLevel, err)
	}
	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           lvl,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	return slog.New(handler), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	rootCmd.AddCommand(serveCmd, configCmd)
}
