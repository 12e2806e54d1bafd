// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litstream CLI, a progressive
// multi-source literature search client. Searches stream over a WebSocket
// channel; results accumulate, re-rank, and narrow in place as sources
// and semantic tiers finish.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shahabnazari/litstream/internal/secrets"
	"github.com/shahabnazari/litstream/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the litstream CLI.
var rootCmd = &cobra.Command{
	Use:   "litstream",
	Short: "Progressive multi-source literature search client",
	Long: `litstream queries 10+ academic sources (OpenAlex, Crossref, PubMed, arXiv,
Semantic Scholar, and others) through a streaming search server. Results
arrive progressively: fast sources show papers within seconds, slower
sources merge in as they finish, and semantic re-ranking refines the
ordering in successive tiers.

Use search to run a streamed search, sources to inspect the source
registry, and sessions to browse previously saved searches.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litstream.yaml or ~/.config/litstream/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litstream")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litstream"))
		}
	}

	viper.SetEnvPrefix("LITSTREAM")
	viper.AutomaticEnv()

	viper.SetDefault("server.url", "ws://localhost:8080/ws/search")
	viper.SetDefault("stream.dial_timeout", "10s")
	viper.SetDefault("stream.max_reconnect_attempts", 5)
	viper.SetDefault("stream.reconnect_base_delay", "500ms")
	viper.SetDefault("search.slow_source_grace", "8s")
	viper.SetDefault("search.tier_failure_policy", "proceed")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// clientConfig assembles the typed config from viper. The server token
// falls back to the secrets directory when not configured.
func clientConfig() types.ClientConfig {
	token := viper.GetString("server.token")
	if token == "" {
		if loaded, err := secrets.Load(secretsDir()); err == nil {
			token = loaded[secrets.ServerToken]
		}
	}
	cfg := types.ClientConfig{
		Stream: types.StreamConfig{
			ServerURL:            viper.GetString("server.url"),
			Token:                token,
			DialTimeout:          viper.GetDuration("stream.dial_timeout"),
			MaxReconnectAttempts: viper.GetInt("stream.max_reconnect_attempts"),
			ReconnectBaseDelay:   viper.GetDuration("stream.reconnect_base_delay"),
		},
		Search: types.SearchRuntimeConfig{
			SlowSourceGrace: viper.GetDuration("search.slow_source_grace"),
			TierFailure:     types.TierFailurePolicy(viper.GetString("search.tier_failure_policy")),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
	}
	return cfg.WithDefaults()
}

// newLogger builds the CLI logger. Quiet by default so progress output
// stays readable.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// secretsDir is where the server token is read from when server.token is
// not set in config or environment.
func secretsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".secrets"
	}
	return filepath.Join(home, ".config", "litstream", "secrets")
}

// defaultStorePath is used when store.path is not configured.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "litstream-sessions.db")
	}
	return filepath.Join(home, ".config", "litstream", "sessions.db")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
