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
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-momentum/backtest"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/portfolio"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeBenchmark    string
	analyzeStart        string
	analyzeEnd          string
	analyzePeriod       int
	analyzeMethod       string
	analyzeQuantile     float64
	analyzeBasketSize   int
	analyzeAmount       float64
	analyzeBetaWindow   int
	analyzeSharpeWindow int
	analyzeRiskFree     float64
	analyzeShowBaskets  bool
)

func init() {
	defaults := backtest.DefaultParams()

	analyzeCmd.Flags().StringVarP(&analyzeBenchmark, "benchmark", "b", defaults.Benchmark, "Benchmark ticker")
	analyzeCmd.Flags().StringVar(&analyzeStart, "start", defaults.Start.Format(common.DateFormat), "First date of price history (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeEnd, "end", "now", "Last date of price history (YYYY-MM-DD)")
	analyzeCmd.Flags().IntVarP(&analyzePeriod, "period", "p", defaults.Options.Period, "Lookback period in months")
	analyzeCmd.Flags().StringVarP(&analyzeMethod, "method", "m", string(defaults.Options.Method), "Basket selection method: Equal or Quantile")
	analyzeCmd.Flags().Float64VarP(&analyzeQuantile, "quantile", "q", defaults.Options.Quantile, "Basket quantile for the Quantile method")
	analyzeCmd.Flags().IntVar(&analyzeBasketSize, "basket-size", defaults.Options.BasketSize, "Basket size for the Equal method")
	analyzeCmd.Flags().Float64VarP(&analyzeAmount, "amount", "a", defaults.Amount, "Amount invested")
	analyzeCmd.Flags().IntVar(&analyzeBetaWindow, "beta-window", defaults.BetaWindow, "Months in the rolling beta window")
	analyzeCmd.Flags().IntVar(&analyzeSharpeWindow, "sharpe-window", defaults.SharpeWindow, "Months in the rolling Sharpe ratio window")
	analyzeCmd.Flags().Float64Var(&analyzeRiskFree, "risk-free", defaults.RiskFreeRate, "Risk free rate subtracted by the Sharpe ratio")
	analyzeCmd.Flags().BoolVar(&analyzeShowBaskets, "baskets", false, "Print the members of each basket")

	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] [TICKER ...]",
	Short: "Run a cross-sectional momentum analysis",
	Long: `Download prices for the tickers and benchmark, rank the tickers by their
trailing return and print the momentum table and performance summary.
Tickers may be separated by spaces or commas; when none are given the
default universe is used.`,
	Example: "pvmomentum analyze --period 6 --method equal AAPL,MSFT,GOOGL,AMZN",
	Run: func(cmd *cobra.Command, args []string) {
		stopProfiling := startProfiling()
		defer stopProfiling()

		params, err := analyzeParams(args)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid arguments")
		}

		manager, err := newDataManager()
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize price data")
		}

		result, err := backtest.Run(context.Background(), manager, params)
		if err != nil {
			log.Fatal().Err(err).Msg("momentum analysis failed")
		}

		printResult(result)
	},
}

func analyzeParams(args []string) (backtest.Params, error) {
	tz := common.GetTimezone()
	params := backtest.DefaultParams()

	if len(args) > 0 {
		params.Tickers = common.ParseTickers(strings.Join(args, ","))
	}

	params.Benchmark = strings.ToUpper(strings.TrimSpace(analyzeBenchmark))

	start, err := time.ParseInLocation(common.DateFormat, analyzeStart, tz)
	if err != nil {
		return params, fmt.Errorf("%w: start date '%s'", xsmom.ErrInvalidParameter, analyzeStart)
	}
	params.Start = start

	if analyzeEnd != "now" {
		end, err := time.ParseInLocation(common.DateFormat, analyzeEnd, tz)
		if err != nil {
			return params, fmt.Errorf("%w: end date '%s'", xsmom.ErrInvalidParameter, analyzeEnd)
		}
		params.End = end
	}

	method, err := xsmom.ParseMethod(analyzeMethod)
	if err != nil {
		return params, err
	}

	params.Options = xsmom.Options{
		Period:     analyzePeriod,
		Method:     method,
		Quantile:   analyzeQuantile,
		BasketSize: analyzeBasketSize,
	}
	params.Amount = analyzeAmount
	params.BetaWindow = analyzeBetaWindow
	params.SharpeWindow = analyzeSharpeWindow
	params.RiskFreeRate = analyzeRiskFree

	return params, params.Validate()
}

func formatFloat(val float64, format string) string {
	if math.IsNaN(val) {
		return "NaN"
	}
	return fmt.Sprintf(format, val)
}

func printResult(result *backtest.Result) {
	params := result.Params
	fmt.Printf("Tickers:   %s\n", strings.Join(params.Tickers, ", "))
	fmt.Printf("Benchmark: %s\n", params.Benchmark)
	fmt.Printf("Method:    %s (period %d)\n\n", params.Options.Method, params.Options.Period)

	// monthly returns with the rolling statistics alongside
	report := result.Table.Returns()
	report.ColNames = append(report.ColNames, portfolio.ColBeta, portfolio.ColSharpe)
	report.Vals = append(report.Vals, result.Beta.Vals[0], result.Sharpe.Vals[0])
	fmt.Println(report.Table())

	if analyzeShowBaskets {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Formed", "Realized", "Basket", "Return", "Members"})
		table.SetBorder(false)
		for _, basket := range result.Table.Baskets {
			table.Append([]string{
				basket.Formed.Format(common.DateFormat),
				basket.Realized.Format(common.DateFormat),
				basket.Name,
				formatFloat(basket.Return, "%.4f"),
				strings.Join(basket.Members, " "),
			})
		}
		table.Render()
		fmt.Println()
	}

	summary := result.Summary
	fmt.Printf("Invested %.2f from %s through %s (%d months)\n", summary.Amount,
		summary.Begin.Format(common.DateFormat), summary.End.Format(common.DateFormat), summary.Months)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Series", "Final Value", "Change %", "CAGR %", "Volatility %", "Max Draw Down %"})
	table.SetBorder(false)
	for _, col := range summary.Columns {
		maxDrawDown := "-"
		if col.MaxDrawDown != nil {
			maxDrawDown = formatFloat(col.MaxDrawDown.LossPercent*100, "%.2f")
		}
		table.Append([]string{
			col.Name,
			formatFloat(col.FinalValue, "%.2f"),
			formatFloat(col.PercentChange, "%.2f"),
			formatFloat(col.AnnualizedReturn*100, "%.2f"),
			formatFloat(col.Volatility*100, "%.2f"),
			maxDrawDown,
		})
	}
	table.Render()

	for _, warning := range result.Table.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
}
