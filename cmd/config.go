// Copyright 2021-2023 JD Fergason
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Run: func(cmd *cobra.Command, args []string) {
		settings := viper.AllSettings()

		// never echo credentials
		if tiingo, ok := settings["tiingo"].(map[string]interface{}); ok {
			if token, ok := tiingo["token"].(string); ok && token != "" {
				tiingo["token"] = "********"
			}
		}

		doc, err := toml.Marshal(settings)
		if err != nil {
			log.Fatal().Err(err).Msg("could not serialize configuration")
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("# %s\n", used)
		}
		fmt.Print(string(doc))
	},
}
