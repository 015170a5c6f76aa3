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
	"fmt"
	"math"
	"time"
)

// Compound resamples a dataframe of periodic returns to the requested
// frequency by compounding the returns within each period:
//
//	r_period = Π(1 + r) - 1
//
// Rows are labeled with the last calendar day of the period. NaN values are
// excluded from the product (zero-weight, not zero-return); a period with no
// defined value for a column is NaN.
func (df *DataFrame) Compound(frequency Frequency) (*DataFrame, error) {
	var periodEnd func(time.Time) time.Time

	switch frequency {
	case Daily:
		return df.Copy(), nil
	case MonthEnd:
		periodEnd = func(t time.Time) time.Time {
			year, month, _ := t.Date()
			return time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location())
		}
	case YearEnd:
		periodEnd = func(t time.Time) time.Time {
			return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrequency, frequency)
	}

	res := New(df.ColNames...)
	if df.Len() == 0 {
		return res, nil
	}

	prods := make([]float64, len(df.ColNames))
	counts := make([]int, len(df.ColNames))
	reset := func() {
		for idx := range prods {
			prods[idx] = 1.0
			counts[idx] = 0
		}
	}
	flush := func(label time.Time) error {
		row := make([]float64, len(prods))
		for idx := range prods {
			if counts[idx] == 0 {
				row[idx] = math.NaN()
			} else {
				row[idx] = prods[idx] - 1.0
			}
		}
		return res.InsertRow(label, row...)
	}

	reset()
	current := periodEnd(df.Dates[0])
	for rowIdx, date := range df.Dates {
		label := periodEnd(date)
		if !label.Equal(current) {
			if err := flush(current); err != nil {
				return nil, err
			}
			reset()
			current = label
		}

		for colIdx, col := range df.Vals {
			val := col[rowIdx]
			if math.IsNaN(val) {
				continue
			}
			prods[colIdx] *= 1.0 + val
			counts[colIdx]++
		}
	}

	if err := flush(current); err != nil {
		return nil, err
	}

	return res, nil
}
