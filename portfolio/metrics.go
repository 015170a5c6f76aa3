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

const (
	ColBeta   = "Beta"
	ColSharpe = "Sharpe"
)

// deviations below zeroTolerance are rounding noise on a flat series
const zeroTolerance = 1e-12

const (
	DefaultBetaWindow   = 6
	DefaultSharpeWindow = 6
	DefaultRiskFreeRate = 0.02
)

// DrawDown is the period in which a series falls from its previous peak
type DrawDown struct {
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	Recovery    time.Time `json:"recovery"`
	LossPercent float64   `json:"lossPercent"`
}

// Metric Functions

// RollingBeta measures the sensitivity of the momentum return to the
// benchmark return over a sliding window of months. Beta is the sample
// covariance of Momentum and Benchmark divided by the sample variance of
// Benchmark. A window containing a missing month or a flat benchmark yields
// NaN.
func RollingBeta(table *xsmom.Table, window int) (*dataframe.DataFrame, error) {
	momentum, benchmark, err := columns(table, xsmom.ColMomentum, xsmom.ColBenchmark)
	if err != nil {
		return nil, err
	}

	if window < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}

	beta := nanSlice(table.Len())
	for ii := window - 1; ii < table.Len(); ii++ {
		retA := momentum[ii-window+1 : ii+1]
		retB := benchmark[ii-window+1 : ii+1]
		if hasNaN(retA) || hasNaN(retB) {
			continue
		}

		variance := stat.Variance(retB, nil)
		if math.Sqrt(variance) < zeroTolerance {
			continue
		}

		beta[ii] = stat.Covariance(retA, retB, nil) / variance
	}

	return &dataframe.DataFrame{
		Dates:    copyDates(table.Data.Dates),
		ColNames: []string{ColBeta},
		Vals:     [][]float64{beta},
	}, nil
}

// RollingSharpe computes the ratio of the mean excess return to its standard
// deviation over a sliding window of months. Excess return is the stored
// Momentum value less rf, a flat per-period rate. A window containing a
// missing month or with zero deviation yields NaN.
func RollingSharpe(table *xsmom.Table, rf float64, window int) (*dataframe.DataFrame, error) {
	momentum, err := column(table, xsmom.ColMomentum)
	if err != nil {
		return nil, err
	}

	if window < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, window)
	}

	excess := make([]float64, len(momentum))
	for ii, val := range momentum {
		excess[ii] = val - rf
	}

	sharpe := nanSlice(table.Len())
	for ii := window - 1; ii < table.Len(); ii++ {
		vals := excess[ii-window+1 : ii+1]
		if hasNaN(vals) {
			continue
		}

		mean, std := stat.MeanStdDev(vals, nil)
		if std < zeroTolerance {
			continue
		}

		sharpe[ii] = mean / std
	}

	return &dataframe.DataFrame{
		Dates:    copyDates(table.Data.Dates),
		ColNames: []string{ColSharpe},
		Vals:     [][]float64{sharpe},
	}, nil
}

// AllDrawDowns computes every draw down of a series of values. Draw downs
// include the time period of the loss, percent of loss, and when the series
// recovered. NaN values are skipped.
func AllDrawDowns(dates []time.Time, values []float64) []*DrawDown {
	allDrawDowns := []*DrawDown{}

	peak := math.NaN()
	var drawDown *DrawDown
	var prev time.Time
	for idx, value := range values {
		if math.IsNaN(value) {
			continue
		}

		if math.IsNaN(peak) {
			peak = value
		}

		peak = math.Max(peak, value)
		diff := value - peak
		if diff < 0 {
			loss := value/peak - 1.0
			if drawDown == nil {
				drawDown = &DrawDown{
					Begin:       prev,
					End:         dates[idx],
					LossPercent: loss,
				}
			}

			if loss < drawDown.LossPercent {
				drawDown.End = dates[idx]
				drawDown.LossPercent = loss
			}
		} else if drawDown != nil {
			drawDown.Recovery = dates[idx]
			allDrawDowns = append(allDrawDowns, drawDown)
			drawDown = nil
		}
		prev = dates[idx]
	}

	// still under water at the end of the series
	if drawDown != nil {
		allDrawDowns = append(allDrawDowns, drawDown)
	}

	return allDrawDowns
}

// MaxDrawDown returns the deepest draw down of the series or nil if the
// series never fell from a peak
func MaxDrawDown(dates []time.Time, values []float64) *DrawDown {
	var deepest *DrawDown
	for _, dd := range AllDrawDowns(dates, values) {
		if deepest == nil || dd.LossPercent < deepest.LossPercent {
			deepest = dd
		}
	}
	return deepest
}

func column(table *xsmom.Table, name string) ([]float64, error) {
	if table == nil || table.Data == nil {
		return nil, ErrNilTable
	}

	col := table.Column(name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}

	return col, nil
}

func columns(table *xsmom.Table, a, b string) ([]float64, []float64, error) {
	colA, err := column(table, a)
	if err != nil {
		return nil, nil, err
	}

	colB, err := column(table, b)
	if err != nil {
		return nil, nil, err
	}

	return colA, colB, nil
}

func hasNaN(vals []float64) bool {
	for _, val := range vals {
		if math.IsNaN(val) {
			return true
		}
	}
	return false
}

func nanSlice(n int) []float64 {
	res := make([]float64, n)
	for idx := range res {
		res[idx] = math.NaN()
	}
	return res
}

func copyDates(dates []time.Time) []time.Time {
	res := make([]time.Time, len(dates))
	copy(res, dates)
	return res
}
