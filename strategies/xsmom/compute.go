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

package xsmom

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/indicators"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LookbackReturns computes the trailing compounded return of every ticker
// for each month with a full period-month window
func LookbackReturns(monthly *dataframe.DataFrame, period int) (*dataframe.DataFrame, error) {
	lookback, err := indicators.Lookback(monthly, period)
	if err != nil {
		if errors.Is(err, indicators.ErrInvalidPeriod) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err.Error())
		}
		return nil, err
	}
	return lookback, nil
}

// Compute ranks the tickers in monthly by their trailing period-month return
// at the end of each month, forms winner and loser baskets and measures their
// return over the following month. Each row of the resulting table is
// labeled with the month the returns were realized in. benchmark is a single
// column frame of monthly returns; its value for the realization month is
// reported alongside the baskets.
func Compute(ctx context.Context, monthly, benchmark *dataframe.DataFrame, opts Options) (*Table, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "xsmom.Compute")
	defer span.End()

	span.SetAttributes(
		attribute.Int("Period", opts.Period),
		attribute.String("Method", string(opts.Method)),
		attribute.Float64("Quantile", opts.Quantile),
		attribute.Int("BasketSize", opts.BasketSize),
	)

	subLog := log.With().Int("Period", opts.Period).Str("Method", string(opts.Method)).Logger()

	if err := opts.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if monthly.ColCount() == 0 {
		span.SetStatus(codes.Error, ErrEmptyUniverse.Error())
		return nil, ErrEmptyUniverse
	}

	if benchmark == nil || benchmark.ColCount() != 1 {
		err := fmt.Errorf("%w: benchmark must have exactly one column", ErrInvalidParameter)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// the last lookback month has no following month to realize returns in
	if monthly.Len() <= opts.Period {
		err := fmt.Errorf("%w: %d months available, lookback is %d", ErrInsufficientHistory, monthly.Len(), opts.Period)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	lookback, err := LookbackReturns(monthly, opts.Period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookback failed")
		return nil, err
	}

	benchmarkByMonth := make(map[int]float64, benchmark.Len())
	for idx, date := range benchmark.Dates {
		benchmarkByMonth[monthKey(date)] = benchmark.Vals[0][idx]
	}

	// lookback row ii corresponds to monthly row ii + offset
	offset := opts.Period - 1
	builder := newTableBuilder(lookback.Len() - 1)

	for ii := 0; ii < lookback.Len()-1; ii++ {
		formed := lookback.Dates[ii]
		realizedIdx := ii + offset + 1
		realized := monthly.Dates[realizedIdx]

		winners, losers := selectBaskets(rank(lookback, ii), opts)

		bench, ok := benchmarkByMonth[monthKey(realized)]
		if !ok {
			bench = math.NaN()
		}

		builder.add(monthRecord{
			realized: realized,
			win: Basket{
				Name:     ColWin,
				Formed:   formed,
				Realized: realized,
				Members:  winners,
				Return:   basketReturn(monthly, realizedIdx, winners),
			},
			loss: Basket{
				Name:     ColLoss,
				Formed:   formed,
				Realized: realized,
				Members:  losers,
				Return:   basketReturn(monthly, realizedIdx, losers),
			},
			benchmark: bench,
		})
	}

	table, err := builder.finalize()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not assemble momentum table")
		return nil, err
	}

	for _, warning := range table.Warnings {
		subLog.Warn().Str("Basket", warning.Basket).Time("Formed", warning.Formed).Time("Realized", warning.Realized).Str("Reason", warning.Reason).Msg("basket return is missing")
	}

	span.SetAttributes(attribute.Int("Months", table.Len()), attribute.Int("Warnings", len(table.Warnings)))
	subLog.Debug().Int("Months", table.Len()).Int("Warnings", len(table.Warnings)).Msg("computed momentum table")

	return table, nil
}

func monthKey(date time.Time) int {
	return date.Year()*12 + int(date.Month())
}
