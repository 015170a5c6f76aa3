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
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/middleware"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/penny-vault/pv-momentum/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	if err := viper.BindEnv("server.port", "PORT"); err != nil {
		log.Panic().Err(err).Msg("could not bind server.port")
	}
	if err := viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		log.Panic().Err(err).Msg("could not bind server.port")
	}

	serveCmd.Flags().String("allow-origins", "http://localhost:8080", "Comma separated list of origins allowed by CORS")
	if err := viper.BindPFlag("server.allow_origins", serveCmd.Flags().Lookup("allow-origins")); err != nil {
		log.Panic().Err(err).Msg("could not bind server.allow_origins")
	}

	serveCmd.Flags().Duration("cache-ttl", time.Hour, "How often the quote cache is purged")
	if err := viper.BindPFlag("data.cache_ttl", serveCmd.Flags().Lookup("cache-ttl")); err != nil {
		log.Panic().Err(err).Msg("could not bind data.cache_ttl")
	}

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the momentum API server",
	Long:  `Run HTTP server that computes momentum analyses on request`,
	Run: func(cmd *cobra.Command, args []string) {
		stopProfiling := startProfiling()
		defer stopProfiling()

		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}()

		manager, err := newDataManager()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize price data")
		}
		log.Info().Msg("initialized data framework")

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			AppName:     fmt.Sprintf("%s %s", common.ProgramName, common.CurrentVersion.String()),
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("shutdown failed")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.allow_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,HEAD",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app, manager)

		// Quotes change daily; drop cached series periodically
		scheduler := gocron.NewScheduler(common.GetTimezone())
		if _, err := scheduler.Every(viper.GetDuration("data.cache_ttl")).Do(manager.PurgeCache); err != nil {
			log.Fatal().Err(err).Msg("could not schedule cache purge")
		}
		scheduler.StartAsync()
		defer scheduler.Stop()

		err = app.Listen(":" + viper.GetString("server.port"))
		if err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	},
}
