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
	"os"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Profile bool
var Trace bool

func bindFlag(key, env, flag string) {
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			log.Panic().Err(err).Str("Key", key).Msg("could not bind environment variable")
		}
	}
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind flag")
	}
}

func init() {
	// Logging configuration
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	bindFlag("log.level", "PVM_LOG_LEVEL", "log-level")

	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	bindFlag("log.report_caller", "PVM_LOG_REPORT_CALLER", "log-report-caller")

	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindFlag("log.output", "PVM_LOG_OUTPUT", "log-output")

	rootCmd.PersistentFlags().Bool("log-pretty", true, "Pretty print log messages")
	bindFlag("log.pretty", "PVM_LOG_PRETTY", "log-pretty")

	// Price data
	rootCmd.PersistentFlags().String("provider", "tiingo", "Source of price data one of: `tiingo` or `csv`")
	bindFlag("data.provider", "PVM_DATA_PROVIDER", "provider")

	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	bindFlag("tiingo.token", "TIINGO_TOKEN", "tiingo-token")

	rootCmd.PersistentFlags().String("data-dir", ".", "Directory of <TICKER>.csv price files used by the csv provider")
	bindFlag("data.dir", "PVM_DATA_DIR", "data-dir")

	rootCmd.PersistentFlags().Int("cache-size", data.DefaultCacheSize, "Number of price series kept in memory")
	bindFlag("data.cache_size", "PVM_DATA_CACHE_SIZE", "cache-size")

	rootCmd.PersistentFlags().Int("workers", data.DefaultWorkers, "Number of concurrent price downloads")
	bindFlag("data.workers", "PVM_DATA_WORKERS", "workers")

	// Tracing
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector endpoint, tracing is disabled when blank")
	bindFlag("otlp.endpoint", "OTLP_ENDPOINT", "otlp-endpoint")

	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC to connect to the collector")
	bindFlag("otlp.http", "OTLP_HTTP", "otlp-http")

	rootCmd.PersistentFlags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
	rootCmd.PersistentFlags().BoolVar(&Trace, "trace", false, "Trace program execution and save in trace.out")
}

var rootCmd = &cobra.Command{
	Use:     "pvmomentum",
	Version: common.CurrentVersion.String(),
	Short:   "Cross-sectional momentum analyzer",
	Long: `Rank a universe of assets by their trailing return, form winner and loser
baskets each month and report the long-short momentum return alongside the
benchmark, rolling beta and rolling Sharpe ratio.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
