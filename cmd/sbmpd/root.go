// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
)

// cfgFile is bound to --config and read by loadConfig in both subcommands.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sbmpd",
	Short: "sbmpd is a demo SBMP endpoint: serve accepts connections, dial connects to one",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (default: ./configs/config.yaml or ./config.yaml)")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDialCmd())
}

// Execute runs the root command, returning any error from the selected
// subcommand.
func Execute() error {
	return rootCmd.Execute()
}
