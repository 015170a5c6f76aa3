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

package dataframe

import (
	"math"
	"sort"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DataFrame converts each item in the map to a column in a single dataframe.
// The result is indexed by the union of all dates; dates missing from a
// member dataframe are filled with NaN. Columns are ordered by `order` when
// given, otherwise alphabetically by key. Only the first column of each member
// is used and it is renamed to the map key.
func (dfMap Map) DataFrame(order ...string) *DataFrame {
	keys := order
	if len(keys) == 0 {
		keys = maps.Keys(dfMap)
		slices.Sort(keys)
	}

	// build the union of all dates
	dateSet := make(map[int64]time.Time)
	for _, key := range keys {
		df, ok := dfMap[key]
		if !ok {
			continue
		}
		for _, date := range df.Dates {
			dateSet[date.UnixNano()] = date
		}
	}

	dates := maps.Values(dateSet)
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	rowIdx := make(map[int64]int, len(dates))
	for idx, date := range dates {
		rowIdx[date.UnixNano()] = idx
	}

	res := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, 0, len(keys)),
		Vals:     make([][]float64, 0, len(keys)),
	}

	for _, key := range keys {
		col := make([]float64, len(dates))
		for idx := range col {
			col[idx] = math.NaN()
		}

		if df, ok := dfMap[key]; ok && df.ColCount() > 0 {
			for idx, date := range df.Dates {
				col[rowIdx[date.UnixNano()]] = df.Vals[0][idx]
			}
		}

		res.ColNames = append(res.ColNames, key)
		res.Vals = append(res.Vals, col)
	}

	return res
}
