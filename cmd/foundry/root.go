// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Command foundry is the development-time front end for the file-serve
// client/server, the plugin loader, and the TexConv driver: one binary
// exposing each as a cobra subcommand, with flags bindable through viper
// from a config file or environment variable as well as the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Development tooling for the forgelogic/core file-serve, plugin, and texconv subsystems",
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.foundry.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".foundry")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("FOUNDRY")
	viper.AutomaticEnv()
	viper.ReadInConfig() // missing config file is not an error; flags/env still apply.

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Exit codes of the foundry command: 0 normal, 1 warnings, 2 errors.
const (
	exitOK      = 0
	exitWarning = 1
	exitError   = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}
