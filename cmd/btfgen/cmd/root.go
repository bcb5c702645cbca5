// Copyright 2024 The btfgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "btfgen",
	Short: "Regenerate a C header from an ELF object's BTF type section",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("btfgen: reading config file: %w", err)
			}
		}
		viper.AutomaticEnv()
		return viper.BindPFlags(cmd.Flags())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config_file", "", "path to an optional YAML/JSON config file")
	rootCmd.AddCommand(newDumpCmd())
}

// Execute runs the root command, printing any error to stderr and exiting
// nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("btfgen: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
