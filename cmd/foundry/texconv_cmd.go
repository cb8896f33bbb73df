// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgelogic/core/texconv"
)

var texconvCmd = &cobra.Command{
	Use:   "texconv",
	Short: "Run one texture conversion through the external converter binary",
	RunE:  runTexconv,
}

func init() {
	rootCmd.AddCommand(texconvCmd)

	flags := texconvCmd.Flags()
	flags.String("binary", "texconv", "converter executable to invoke")
	flags.StringSlice("input", nil, "input image path, repeatable")
	flags.StringSlice("map", nil, "channel-mapping expression, repeatable")
	flags.String("container", "dds", "output container: png, dds, tga")
	flags.String("output", "", "output file path")
	flags.Int("timeout", 30, "conversion timeout in seconds")

	for _, name := range []string{"binary", "input", "map", "container", "output", "timeout"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runTexconv(cmd *cobra.Command, args []string) error {
	inputs := viper.GetStringSlice("input")
	opts := texconv.Options{
		ChannelExprs: viper.GetStringSlice("map"),
		OutputPath:   viper.GetString("output"),
	}
	for _, p := range inputs {
		opts.Inputs = append(opts.Inputs, texconv.Input{Path: p})
	}
	switch viper.GetString("container") {
	case "png":
		opts.Container = texconv.PNG
	case "tga":
		opts.Container = texconv.TGA
	default:
		opts.Container = texconv.DDS
	}

	driver := texconv.NewDriver(viper.GetString("binary"), log)
	if secs := viper.GetInt("timeout"); secs > 0 {
		driver.Timeout = time.Duration(secs) * time.Second
	}
	res, err := driver.Convert(context.Background(), opts, cliDiagnostics{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "texconv: conversion failed:", err)
		if res.ExitCode != 0 {
			os.Exit(exitError)
		}
		os.Exit(exitWarning)
	}
	return nil
}

// cliDiagnostics streams a conversion's subprocess output straight to
// the terminal as it arrives.
type cliDiagnostics struct{}

func (cliDiagnostics) Line(stream, text string) {
	fmt.Printf("[texconv:%s] %s\n", stream, text)
}
