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

package backtest_test

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-momentum/backtest"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/portfolio"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
)

var errFeedDown = errors.New("feed down")

// syntheticFeed serves two quotes per month: one mid-month equal to the
// previous month end and one at month end, so every monthly return equals
// the configured return for that month
type syntheticFeed struct {
	returns map[string][]float64
	err     error
}

func (feed *syntheticFeed) series(ticker string) *dataframe.DataFrame {
	tz := common.GetTimezone()
	df := dataframe.New(ticker)
	price := 100.0
	for month, ret := range feed.returns[ticker] {
		mid := time.Date(2020, time.Month(month+1), 15, 0, 0, 0, 0, tz)
		end := time.Date(2020, time.Month(month+2), 0, 0, 0, 0, 0, tz)
		Expect(df.InsertRow(mid, price)).To(Succeed())
		price *= 1.0 + ret
		Expect(df.InsertRow(end, price)).To(Succeed())
	}
	return df
}

func (feed *syntheticFeed) Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if feed.err != nil {
		return nil, feed.err
	}
	dfMap := make(dataframe.Map, len(tickers))
	for _, ticker := range tickers {
		if _, ok := feed.returns[ticker]; !ok {
			continue
		}
		dfMap[ticker] = feed.series(ticker)
	}
	if len(dfMap) == 0 {
		return nil, data.ErrEmptyUniverse
	}
	return dfMap.DataFrame(tickers...), nil
}

func (feed *syntheticFeed) Benchmark(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if _, ok := feed.returns[ticker]; !ok {
		return nil, data.ErrNotFound
	}
	return feed.series(ticker), nil
}

func alternating(n int, first, second float64) []float64 {
	res := make([]float64, n)
	for ii := range res {
		if ii%2 == 0 {
			res[ii] = first
		} else {
			res[ii] = second
		}
	}
	return res
}

var _ = Describe("Backtest", func() {
	var (
		feed   *syntheticFeed
		params backtest.Params
		tz     *time.Location
	)

	BeforeEach(func() {
		tz = common.GetTimezone()
		feed = &syntheticFeed{
			returns: map[string][]float64{
				"A":   alternating(24, 0.10, -0.05),
				"B":   alternating(24, -0.05, 0.10),
				"C":   alternating(24, 0.02, 0.02),
				"SPY": alternating(24, 0.01, 0.03),
			},
		}

		params = backtest.DefaultParams()
		params.Tickers = []string{"A", "B", "C"}
		params.Start = time.Date(2020, time.January, 1, 0, 0, 0, 0, tz)
		params.End = time.Date(2021, time.December, 31, 0, 0, 0, 0, tz)
		params.Options = xsmom.Options{Period: 3, Method: xsmom.MethodEqual, BasketSize: 1}
	})

	It("has sensible defaults", func() {
		params := backtest.DefaultParams()
		Expect(params.Tickers).To(Equal([]string{"AAPL", "MSFT", "GOOGL"}))
		Expect(params.Benchmark).To(Equal("SPY"))
		Expect(params.Start).To(Equal(time.Date(2007, time.January, 1, 0, 0, 0, 0, tz)))
		Expect(params.Amount).To(Equal(1000.0))
		Expect(params.Options.Period).To(Equal(11))
		Expect(params.Options.Method).To(Equal(xsmom.MethodQuantile))
		Expect(params.BetaWindow).To(Equal(6))
		Expect(params.SharpeWindow).To(Equal(6))
		Expect(params.RiskFreeRate).To(Equal(0.02))
		Expect(params.Validate()).To(Succeed())
	})

	It("runs the full pipeline", func() {
		result, err := backtest.Run(context.Background(), feed, params)
		Expect(err).To(BeNil())
		Expect(result.ID).ToNot(Equal(uuid.Nil))
		Expect(result.Table.Len()).To(Equal(21))
		Expect(result.Cumulative.Len()).To(Equal(21))
		Expect(result.Beta.Len()).To(Equal(21))
		Expect(result.Sharpe.Len()).To(Equal(21))

		for _, val := range result.Table.Column(xsmom.ColMomentum) {
			Expect(val).To(BeNumerically("~", 0.85, 1e-9))
		}

		Expect(result.Summary.Column(xsmom.ColMomentum).FinalValue).To(BeNumerically("~", 1000*math.Pow(0.85, 21), 1e-6))
	})

	It("computes rolling statistics with the requested windows", func() {
		params.BetaWindow = 4
		result, err := backtest.Run(context.Background(), feed, params)
		Expect(err).To(BeNil())

		for ii, val := range result.Beta.Vals[0] {
			if ii < 3 {
				Expect(math.IsNaN(val)).To(BeTrue())
				continue
			}
			// a constant spread does not move with the benchmark
			Expect(val).To(BeNumerically("~", 0.0, 1e-9))
		}

		for _, val := range result.Sharpe.Vals[0] {
			Expect(math.IsNaN(val)).To(BeTrue())
		}
	})

	It("works with the quantile method", func() {
		params.Options = xsmom.DefaultOptions().WithPeriod(3)
		result, err := backtest.Run(context.Background(), feed, params)
		Expect(err).To(BeNil())
		Expect(result.Table.Len()).To(Equal(21))
		Expect(result.Table.Warnings).To(BeEmpty())
		Expect(result.Table.Baskets[0].Members).To(Equal([]string{"A"}))
		Expect(result.Table.Baskets[1].Members).To(Equal([]string{"B"}))
	})

	It("fails when the history is shorter than the lookback", func() {
		params.Options.Period = 24
		_, err := backtest.Run(context.Background(), feed, params)
		Expect(errors.Is(err, xsmom.ErrInsufficientHistory)).To(BeTrue())
	})

	It("fails fast when the feed fails", func() {
		feed.err = errFeedDown
		_, err := backtest.Run(context.Background(), feed, params)
		Expect(errors.Is(err, errFeedDown)).To(BeTrue())
	})

	It("fails for an unknown benchmark", func() {
		params.Benchmark = "^GSPC"
		_, err := backtest.Run(context.Background(), feed, params)
		Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
	})

	DescribeTable("validates parameters before downloading",
		func(modify func(*backtest.Params), expected error) {
			feed.err = errFeedDown
			modify(&params)
			_, err := backtest.Run(context.Background(), feed, params)
			Expect(errors.Is(err, expected)).To(BeTrue())
		},
		Entry("no tickers", func(p *backtest.Params) { p.Tickers = []string{} }, data.ErrEmptyUniverse),
		Entry("no benchmark", func(p *backtest.Params) { p.Benchmark = "" }, xsmom.ErrInvalidParameter),
		Entry("start after end", func(p *backtest.Params) { p.Start = p.End.AddDate(0, 0, 1) }, data.ErrInvalidTimeRange),
		Entry("zero amount", func(p *backtest.Params) { p.Amount = 0 }, portfolio.ErrInvalidAmount),
		Entry("infinite amount", func(p *backtest.Params) { p.Amount = math.Inf(1) }, portfolio.ErrInvalidAmount),
		Entry("NaN risk free rate", func(p *backtest.Params) { p.RiskFreeRate = math.NaN() }, xsmom.ErrInvalidParameter),
		Entry("infinite risk free rate", func(p *backtest.Params) { p.RiskFreeRate = math.Inf(-1) }, xsmom.ErrInvalidParameter),
		Entry("small beta window", func(p *backtest.Params) { p.BetaWindow = 1 }, portfolio.ErrInvalidWindow),
		Entry("small sharpe window", func(p *backtest.Params) { p.SharpeWindow = 0 }, portfolio.ErrInvalidWindow),
		Entry("invalid quantile", func(p *backtest.Params) {
			p.Options = xsmom.Options{Period: 3, Method: xsmom.MethodQuantile, Quantile: 0.75}
		}, xsmom.ErrInvalidParameter),
	)
})
