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
	"math"
	"sort"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
	"gonum.org/v1/gonum/stat"
)

// rank returns the tickers with a defined value in row idx of df, sorted
// ascending by value with ties broken by ticker
func rank(df *dataframe.DataFrame, idx int) common.PairList {
	ranked := make(common.PairList, 0, len(df.ColNames))
	for colIdx, ticker := range df.ColNames {
		val := df.Vals[colIdx][idx]
		if math.IsNaN(val) {
			continue
		}
		ranked = append(ranked, common.Pair{
			Key:   ticker,
			Value: val,
		})
	}
	sort.Sort(ranked)
	return ranked
}

// quantile computes the q-th sample quantile of sorted values by linear
// interpolation between the closest order statistics (Hyndman and Fan
// definition 7). sorted must be in ascending order.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}

	h := float64(n-1) * q
	lo := math.Floor(h)
	idx := int(lo)
	if idx >= n-1 {
		return sorted[n-1]
	}

	return sorted[idx] + (h-lo)*(sorted[idx+1]-sorted[idx])
}

// selectBaskets picks the winner and loser tickers from an ascending ranking.
// Winners are ordered best first, losers worst first.
func selectBaskets(ranked common.PairList, opts Options) (winners, losers []string) {
	switch opts.Method {
	case MethodEqual:
		size := opts.BasketSize
		if size > len(ranked) {
			size = len(ranked)
		}

		losers = ranked[:size].Keys()

		best := make(common.PairList, len(ranked))
		copy(best, ranked)
		sort.SliceStable(best, func(i, j int) bool {
			if best[i].Value == best[j].Value {
				return best[i].Key < best[j].Key
			}
			return best[i].Value > best[j].Value
		})
		winners = best[:size].Keys()

	case MethodQuantile:
		vals := make([]float64, len(ranked))
		for idx, pair := range ranked {
			vals[idx] = pair.Value
		}

		upper := quantile(vals, 1.0-opts.Quantile)
		lower := quantile(vals, opts.Quantile)

		winners = []string{}
		for idx := len(ranked) - 1; idx >= 0; idx-- {
			if ranked[idx].Value > upper {
				winners = append(winners, ranked[idx].Key)
			}
		}

		losers = []string{}
		for _, pair := range ranked {
			if pair.Value < lower {
				losers = append(losers, pair.Key)
			}
		}
	}

	return winners, losers
}

// basketReturn is the equal-weight mean of the members' returns in row idx of
// monthly. Members without a return that month are skipped; if no member
// has one the result is NaN.
func basketReturn(monthly *dataframe.DataFrame, idx int, members []string) float64 {
	vals := make([]float64, 0, len(members))
	for _, ticker := range members {
		col := monthly.Column(ticker)
		if col == nil || math.IsNaN(col[idx]) {
			continue
		}
		vals = append(vals, col[idx])
	}

	if len(vals) == 0 {
		return math.NaN()
	}

	return stat.Mean(vals, nil)
}
