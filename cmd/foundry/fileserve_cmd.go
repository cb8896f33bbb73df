// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgelogic/core/fileserve"
	"github.com/forgelogic/core/vfs"
)

var fileserveCmd = &cobra.Command{
	Use:   "fileserve",
	Short: "Mount a remote data directory over the file-serve protocol, or run a server",
	RunE:  runFileserve,
}

func init() {
	rootCmd.AddCommand(fileserveCmd)

	flags := fileserveCmd.Flags()
	flags.Bool("fs_off", false, "disable file-serve entirely, use local data dirs only")
	flags.String("fs_server", "", "server address as host:port")
	flags.Int("fs_port", 9000, "local server port when -fs_start is given")
	flags.Bool("fs_start", false, "run as a file-serve server instead of a client")
	flags.Int("fs_timeout", 5, "server discovery timeout in seconds")
	flags.StringSlice("specialdirs", nil, "name path pairs, eg cache /tmp/cache logs /tmp/logs")

	for _, name := range []string{"fs_off", "fs_server", "fs_port", "fs_start", "fs_timeout", "specialdirs"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runFileserve(cmd *cobra.Command, args []string) error {
	if viper.GetBool("fs_off") {
		log.Info("fileserve disabled via -fs_off")
		return nil
	}
	timeout := time.Duration(viper.GetInt("fs_timeout")) * time.Second

	if viper.GetBool("fs_start") {
		return runFileserveServer(viper.GetInt("fs_port"))
	}
	return runFileserveClient(viper.GetString("fs_server"), timeout)
}

func runFileserveServer(port int) error {
	fs := vfs.New()
	if err := applySpecialDirs(fs); err != nil {
		return err
	}
	srv := fileserve.NewServer(fs, log)
	addr := fmt.Sprintf(":%d", port)
	log.Info("fileserve server listening", "addr", addr)
	return srv.ListenAndServe(addr)
}

func runFileserveClient(serverAddr string, timeout time.Duration) error {
	opts := fileserve.DialOptions{ServerAddr: serverAddr, DiscoveryWindow: timeout}
	c, err := fileserve.Dial(opts, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fileserve: dial failed:", err)
		os.Exit(exitWarning)
	}
	defer c.Close()
	log.Info("fileserve client connected")
	return nil
}

// applySpecialDirs maps -specialdirs name/path pairs onto fs's special
// directory resolver.
func applySpecialDirs(fs *vfs.FS) error {
	pairs := viper.GetStringSlice("specialdirs")
	if len(pairs)%2 != 0 {
		return fmt.Errorf("fileserve: -specialdirs needs name/path pairs, got %d entries", len(pairs))
	}
	for i := 0; i < len(pairs); i += 2 {
		name := strings.TrimSpace(pairs[i])
		path := strings.TrimSpace(pairs[i+1])
		fs.SetSpecialDirectory(name, path)
	}
	return nil
}
