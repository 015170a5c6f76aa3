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

	"gonum.org/v1/gonum/floats"
)

// AddScalar adds the scalar value to all columns in dataframe df and returns a new dataframe
func (df *DataFrame) AddScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.AddConst(scalar, df.Vals[colIdx])
	}
	return df
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}

// CumProd computes the running product of each column and returns a new
// dataframe. NaN values are skipped: the NaN stays in place and the product
// continues from the last defined value.
func (df *DataFrame) CumProd() *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		prod := 1.0
		for rowIdx, val := range df.Vals[colIdx] {
			if math.IsNaN(val) {
				continue
			}
			prod *= val
			df.Vals[colIdx][rowIdx] = prod
		}
	}
	return df
}

// PctChange computes the percent change between consecutive rows of each
// column and returns a new dataframe of the same length. The first row is
// always NaN. A NaN value yields NaN; a gap of NaN values is bridged by
// measuring from the last defined value.
func (df *DataFrame) PctChange() *DataFrame {
	res := df.Copy()
	for colIdx, col := range df.Vals {
		last := math.NaN()
		for rowIdx, val := range col {
			switch {
			case math.IsNaN(val):
				res.Vals[colIdx][rowIdx] = math.NaN()
			case math.IsNaN(last) || last == 0:
				res.Vals[colIdx][rowIdx] = math.NaN()
				last = val
			default:
				res.Vals[colIdx][rowIdx] = val/last - 1.0
				last = val
			}
		}
	}
	return res
}

// RollingCompound computes Π(1 + r) - 1 over a trailing window of n rows for
// every column and returns a new dataframe of the same length. Rows during
// the warm-up period, and windows that contain a NaN, are NaN. Invalid
// windows (n <= 0) result in a dataframe of all NaN.
func (df *DataFrame) RollingCompound(n int) *DataFrame {
	res := df.Copy()
	for colIdx, col := range df.Vals {
		for rowIdx := range col {
			if n <= 0 || rowIdx < n-1 {
				res.Vals[colIdx][rowIdx] = math.NaN()
				continue
			}

			prod := 1.0
			for _, val := range col[rowIdx-n+1 : rowIdx+1] {
				prod *= 1.0 + val
			}
			// NaN propagates through the product
			res.Vals[colIdx][rowIdx] = prod - 1.0
		}
	}
	return res
}
