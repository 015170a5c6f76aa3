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

package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
	"gonum.org/v1/gonum/stat"
)

// SummaryColumns lists the table columns reported by Summarize in the order
// they are displayed
var SummaryColumns = []string{xsmom.ColBenchmark, xsmom.ColMomentum, xsmom.ColWin, xsmom.ColLoss}

// ColumnSummary is the growth of an investment in one column of the table
type ColumnSummary struct {
	Name             string    `json:"name"`
	FinalValue       float64   `json:"finalValue"`
	PercentChange    float64   `json:"percentChange"`
	AnnualizedReturn float64   `json:"annualizedReturn"`
	Volatility       float64   `json:"volatility"`
	MaxDrawDown      *DrawDown `json:"maxDrawDown,omitempty"`
}

// Summary reports the value of an initial investment at the end of the table
type Summary struct {
	Amount  float64          `json:"amount"`
	Begin   time.Time        `json:"begin"`
	End     time.Time        `json:"end"`
	Months  int              `json:"months"`
	Columns []*ColumnSummary `json:"columns"`
}

// Column returns the summary of the named column or nil
func (summary *Summary) Column(name string) *ColumnSummary {
	for _, col := range summary.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// Cumulative computes the running product of each column of the table. The
// result is the growth of $1 invested at the start; months with a missing
// value remain NaN and do not affect later months.
func Cumulative(table *xsmom.Table) (*dataframe.DataFrame, error) {
	if table == nil || table.Data == nil {
		return nil, ErrNilTable
	}
	return table.Data.CumProd(), nil
}

// Summarize computes the terminal value of amount invested in each of the
// Benchmark, Momentum, Win and Loss columns
func Summarize(table *xsmom.Table, amount float64) (*Summary, error) {
	if !(amount > 0) {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidAmount, amount)
	}

	cumulative, err := Cumulative(table)
	if err != nil {
		return nil, err
	}

	if cumulative.Len() == 0 {
		return nil, ErrEmptyTable
	}

	summary := &Summary{
		Amount:  amount,
		Begin:   cumulative.Start(),
		End:     cumulative.End(),
		Months:  cumulative.Len(),
		Columns: make([]*ColumnSummary, 0, len(SummaryColumns)),
	}

	years := float64(cumulative.Len()) / 12.0

	for _, name := range SummaryColumns {
		growth := cumulative.Column(name)
		if growth == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}

		terminal := lastDefined(growth)
		colSummary := &ColumnSummary{
			Name:             name,
			FinalValue:       amount * terminal,
			PercentChange:    (terminal - 1.0) * 100.0,
			AnnualizedReturn: math.Pow(terminal, 1.0/years) - 1.0,
			Volatility:       math.NaN(),
			MaxDrawDown:      MaxDrawDown(cumulative.Dates, growth),
		}

		monthly := definedValues(table.Column(name))
		if len(monthly) > 1 {
			colSummary.Volatility = stat.StdDev(monthly, nil) * math.Sqrt(12.0)
		}

		summary.Columns = append(summary.Columns, colSummary)
	}

	return summary, nil
}

// lastDefined returns the last non-NaN value of vals; if every value is NaN
// the investment never changed and 1 is returned
func lastDefined(vals []float64) float64 {
	for idx := len(vals) - 1; idx >= 0; idx-- {
		if !math.IsNaN(vals[idx]) {
			return vals[idx]
		}
	}
	return 1.0
}

func definedValues(vals []float64) []float64 {
	res := make([]float64, 0, len(vals))
	for _, val := range vals {
		if !math.IsNaN(val) {
			res = append(res, val)
		}
	}
	return res
}
