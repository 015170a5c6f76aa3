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
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/penny-vault/pv-momentum/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// newDataManager creates the price feed configured by data.provider
func newDataManager() (*data.Manager, error) {
	var provider data.Provider

	switch strings.ToLower(viper.GetString("data.provider")) {
	case "tiingo", "":
		token := viper.GetString("tiingo.token")
		if token == "" {
			return nil, fmt.Errorf("%w: tiingo requires an API token (set TIINGO_TOKEN)", data.ErrProviderNotAvailable)
		}
		provider = data.NewTiingo(token)
	case "csv":
		provider = data.NewCSVFiles(viper.GetString("data.dir"))
	default:
		return nil, fmt.Errorf("%w: '%s'", data.ErrProviderNotAvailable, viper.GetString("data.provider"))
	}

	manager, err := data.NewManager(provider, viper.GetInt("data.cache_size"))
	if err != nil {
		return nil, err
	}
	manager.SetWorkers(viper.GetInt("data.workers"))

	log.Debug().Str("Provider", provider.Name()).Msg("initialized data manager")
	return manager, nil
}

// startProfiling enables the cpu profile and execution trace requested on
// the command line and returns a function that stops them
func startProfiling() func() {
	stops := make([]func(), 0, 2)

	if Profile {
		f, err := os.Create("profile.out")
		if err != nil {
			log.Fatal().Err(err).Msg("could not create profile.out")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start cpu profile")
		}
		stops = append(stops, pprof.StopCPUProfile)
	}

	if Trace {
		f, err := os.Create("trace.out")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create trace output file")
		}
		if err := trace.Start(f); err != nil {
			log.Fatal().Err(err).Msg("failed to start trace")
		}
		stops = append(stops, func() {
			trace.Stop()
			if err := f.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close trace file")
			}
		})
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
