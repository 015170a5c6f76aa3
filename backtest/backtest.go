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

package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/indicators"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/penny-vault/pv-momentum/portfolio"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBenchmark = "SPY"
	DefaultAmount    = 1000.0
)

// DefaultTickers is the universe used when none is given
var DefaultTickers = []string{"AAPL", "MSFT", "GOOGL"}

// PriceFeed supplies daily adjusted close prices
type PriceFeed interface {
	Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error)
	Benchmark(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error)
}

// Params are the inputs of a momentum backtest
type Params struct {
	Tickers      []string      `json:"tickers"`
	Benchmark    string        `json:"benchmark"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Amount       float64       `json:"amount"`
	Options      xsmom.Options `json:"options"`
	BetaWindow   int           `json:"betaWindow"`
	SharpeWindow int           `json:"sharpeWindow"`
	RiskFreeRate float64       `json:"riskFreeRate"`
}

// Result is everything needed to present a momentum backtest
type Result struct {
	ID         uuid.UUID            `json:"id"`
	Params     Params               `json:"params"`
	ComputedOn time.Time            `json:"computedOn"`
	Table      *xsmom.Table         `json:"-"`
	Cumulative *dataframe.DataFrame `json:"-"`
	Summary    *portfolio.Summary   `json:"summary"`
	Beta       *dataframe.DataFrame `json:"-"`
	Sharpe     *dataframe.DataFrame `json:"-"`
}

// DefaultParams returns the parameters of the default analysis
func DefaultParams() Params {
	tickers := make([]string, len(DefaultTickers))
	copy(tickers, DefaultTickers)

	return Params{
		Tickers:      tickers,
		Benchmark:    DefaultBenchmark,
		Start:        time.Date(2007, time.January, 1, 0, 0, 0, 0, common.GetTimezone()),
		Amount:       DefaultAmount,
		Options:      xsmom.DefaultOptions(),
		BetaWindow:   portfolio.DefaultBetaWindow,
		SharpeWindow: portfolio.DefaultSharpeWindow,
		RiskFreeRate: portfolio.DefaultRiskFreeRate,
	}
}

// Validate checks the parameters before any data is requested
func (params Params) Validate() error {
	if len(params.Tickers) == 0 {
		return data.ErrEmptyUniverse
	}

	if params.Benchmark == "" {
		return fmt.Errorf("%w: benchmark is required", xsmom.ErrInvalidParameter)
	}

	if !params.End.IsZero() && !params.Start.Before(params.End) {
		return data.ErrInvalidTimeRange
	}

	if !(params.Amount > 0) || math.IsInf(params.Amount, 0) {
		return fmt.Errorf("%w: %f", portfolio.ErrInvalidAmount, params.Amount)
	}

	if math.IsNaN(params.RiskFreeRate) || math.IsInf(params.RiskFreeRate, 0) {
		return fmt.Errorf("%w: risk free rate must be finite", xsmom.ErrInvalidParameter)
	}

	if params.BetaWindow < 2 {
		return fmt.Errorf("%w: beta window %d", portfolio.ErrInvalidWindow, params.BetaWindow)
	}

	if params.SharpeWindow < 2 {
		return fmt.Errorf("%w: sharpe window %d", portfolio.ErrInvalidWindow, params.SharpeWindow)
	}

	return params.Options.Validate()
}

// Run downloads prices for the universe and benchmark and computes the
// momentum table, its summary and rolling risk statistics
func Run(ctx context.Context, feed PriceFeed, params Params) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Run")
	defer span.End()

	if params.End.IsZero() {
		params.End = time.Now().In(common.GetTimezone())
	}

	span.SetAttributes(
		attribute.StringSlice("Tickers", params.Tickers),
		attribute.String("Benchmark", params.Benchmark),
		attribute.String("Start", params.Start.Format(common.DateFormat)),
		attribute.String("End", params.End.Format(common.DateFormat)),
	)

	subLog := log.With().Strs("Tickers", params.Tickers).Str("Benchmark", params.Benchmark).Time("Start", params.Start).Time("End", params.End).Logger()

	if err := params.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		subLog.Warn().Err(err).Msg("invalid backtest parameters")
		return nil, err
	}

	start := time.Now()
	prices, err := feed.Prices(ctx, params.Tickers, params.Start, params.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load prices")
		return nil, err
	}

	benchPrices, err := feed.Benchmark(ctx, params.Benchmark, params.Start, params.End)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load benchmark")
		return nil, err
	}
	stop := time.Now()
	downloadDur := stop.Sub(start).Round(time.Millisecond)

	start = time.Now()
	monthly, err := indicators.MonthlyReturns(prices)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not compute monthly returns")
		return nil, err
	}

	benchMonthly, err := indicators.MonthlyReturns(benchPrices)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not compute benchmark returns")
		return nil, err
	}

	table, err := xsmom.Compute(ctx, monthly, benchMonthly, params.Options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "momentum computation failed")
		return nil, err
	}
	stop = time.Now()
	computeDur := stop.Sub(start).Round(time.Millisecond)

	start = time.Now()
	cumulative, err := portfolio.Cumulative(table)
	if err != nil {
		return nil, err
	}

	summary, err := portfolio.Summarize(table, params.Amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not summarize table")
		return nil, err
	}

	beta, err := portfolio.RollingBeta(table, params.BetaWindow)
	if err != nil {
		return nil, err
	}

	sharpe, err := portfolio.RollingSharpe(table, params.RiskFreeRate, params.SharpeWindow)
	if err != nil {
		return nil, err
	}
	stop = time.Now()
	metricsDur := stop.Sub(start).Round(time.Millisecond)

	subLog.Info().Dur("DownloadDur", downloadDur).Dur("ComputeDur", computeDur).Dur("MetricsDur", metricsDur).Int("Months", table.Len()).Msg("backtest runtime performance")

	return &Result{
		ID:         uuid.New(),
		Params:     params,
		ComputedOn: time.Now(),
		Table:      table,
		Cumulative: cumulative,
		Summary:    summary,
		Beta:       beta,
		Sharpe:     sharpe,
	}, nil
}
