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

package indicators

import (
	"fmt"

	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/dataframe"
)

// Lookback computes each column's return compounded over the trailing period
// months. Only months with a full window are kept so the result has
// monthly.Len() - period + 1 rows. A NaN inside a window makes that row NaN
// for the column.
func Lookback(monthly *dataframe.DataFrame, period int) (*dataframe.DataFrame, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPeriod, period)
	}

	if monthly.ColCount() == 0 {
		return nil, data.ErrEmptyUniverse
	}

	if monthly.Len() < period {
		return nil, fmt.Errorf("%w: %d months available, lookback is %d", ErrInsufficientHistory, monthly.Len(), period)
	}

	rolling := monthly.RollingCompound(period)
	return rolling.Slice(period-1, rolling.Len()), nil
}
