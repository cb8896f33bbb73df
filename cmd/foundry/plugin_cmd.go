// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgelogic/core/plugin"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Load and inspect dynamic plugin modules",
}

var pluginLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Load a plugin by name from the configured plugin directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginLoad,
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginLoadCmd)

	pluginLoadCmd.Flags().String("plugin_dir", ".", "directory to search for plugin files")
	pluginLoadCmd.Flags().Bool("optional", false, "missing file or dependency is a warning, not an error")
	pluginLoadCmd.Flags().String("manifest", "", "YAML manifest declaring dependency edges for plugins with no Register hook")
	viper.BindPFlag("plugin_dir", pluginLoadCmd.Flags().Lookup("plugin_dir"))
	viper.BindPFlag("optional", pluginLoadCmd.Flags().Lookup("optional"))
	viper.BindPFlag("manifest", pluginLoadCmd.Flags().Lookup("manifest"))
}

func runPluginLoad(cmd *cobra.Command, args []string) error {
	name := args[0]
	loader := plugin.New(viper.GetString("plugin_dir"), log)

	var flags plugin.Flags
	if path := viper.GetString("manifest"); path != "" {
		m, err := plugin.LoadManifestFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "manifest load failed:", err)
			os.Exit(exitError)
		}
		plugin.LoadManifest(m)
		flags |= plugin.CustomDependency
	}
	if viper.GetBool("optional") {
		flags |= plugin.PluginIsOptional
	}
	if err := loader.LoadPlugin(name, flags); err != nil {
		fmt.Fprintln(os.Stderr, "plugin load failed:", err)
		os.Exit(exitError)
	}
	for _, info := range loader.GetAllPluginInfos() {
		fmt.Printf("%s\t%s\tdeps=%v\n", info.Name, info.Path, info.DependsOn)
	}
	return nil
}
