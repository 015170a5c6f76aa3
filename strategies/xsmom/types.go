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
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
)

// Method selects how winner and loser baskets are formed
type Method string

const (
	// MethodEqual picks a fixed number of tickers from each end of the ranking
	MethodEqual Method = "Equal"

	// MethodQuantile picks tickers beyond the upper and lower sample quantiles
	MethodQuantile Method = "Quantile"
)

const (
	ColMomentum  = "Momentum"
	ColWin       = "Win"
	ColLoss      = "Loss"
	ColBenchmark = "Benchmark"
)

const (
	DefaultPeriod     = 11
	DefaultQuantile   = 0.25
	DefaultBasketSize = 10
)

// ParseMethod converts a user supplied string into a Method
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equal":
		return MethodEqual, nil
	case "quantile", "":
		return MethodQuantile, nil
	default:
		return "", fmt.Errorf("%w: unknown method '%s'", ErrInvalidParameter, s)
	}
}

// Options controls momentum computation
type Options struct {
	Period     int     `json:"period" toml:"period"`
	Method     Method  `json:"method" toml:"method"`
	Quantile   float64 `json:"quantile" toml:"quantile"`
	BasketSize int     `json:"basketSize" toml:"basket_size"`
}

// DefaultOptions returns the options used when the caller does not specify any
func DefaultOptions() Options {
	return Options{
		Period:     DefaultPeriod,
		Method:     MethodQuantile,
		Quantile:   DefaultQuantile,
		BasketSize: DefaultBasketSize,
	}
}

// WithPeriod returns a copy of opts using the given lookback period
func (opts Options) WithPeriod(period int) Options {
	opts.Period = period
	return opts
}

// Validate checks that all options are in range
func (opts Options) Validate() error {
	if opts.Period < 1 {
		return fmt.Errorf("%w: period must be at least 1, got %d", ErrInvalidParameter, opts.Period)
	}

	switch opts.Method {
	case MethodEqual:
		if opts.BasketSize < 1 {
			return fmt.Errorf("%w: basket size must be at least 1, got %d", ErrInvalidParameter, opts.BasketSize)
		}
	case MethodQuantile:
		if !(opts.Quantile > 0 && opts.Quantile <= 0.5) {
			return fmt.Errorf("%w: quantile must be in (0, 0.5], got %f", ErrInvalidParameter, opts.Quantile)
		}
	default:
		return fmt.Errorf("%w: unknown method '%s'", ErrInvalidParameter, opts.Method)
	}

	return nil
}

// Basket is the set of tickers selected at the end of month Formed and the
// equal-weight mean of their returns over the following month Realized
type Basket struct {
	Name     string    `json:"name"`
	Formed   time.Time `json:"formed"`
	Realized time.Time `json:"realized"`
	Members  []string  `json:"members"`
	Return   float64   `json:"return"`
}

// MissingValue records a basket whose return could not be computed. It is a
// warning; the corresponding entry of the table is NaN.
type MissingValue struct {
	Basket   string    `json:"basket"`
	Formed   time.Time `json:"formed"`
	Realized time.Time `json:"realized"`
	Reason   string    `json:"reason"`
}

func (mv MissingValue) String() string {
	return fmt.Sprintf("%s basket formed %s realized %s: %s", mv.Basket, mv.Formed.Format(common.DateFormat),
		mv.Realized.Format(common.DateFormat), mv.Reason)
}

// Table holds the momentum return stream. Data has the columns Momentum,
// Win, Loss and Benchmark stored as gross return factors (1 + return) and is
// indexed by the month in which returns were realized.
type Table struct {
	Data     *dataframe.DataFrame
	Baskets  []Basket
	Warnings []MissingValue
}

// Len returns the number of months in the table
func (table *Table) Len() int {
	return table.Data.Len()
}

// Column returns the gross factors of the named column
func (table *Table) Column(name string) []float64 {
	return table.Data.Column(name)
}

// Returns converts the gross factors into simple returns
func (table *Table) Returns() *dataframe.DataFrame {
	return table.Data.AddScalar(-1.0)
}
