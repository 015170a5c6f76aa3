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
	"time"

	"github.com/penny-vault/pv-momentum/dataframe"
)

type monthRecord struct {
	realized  time.Time
	win       Basket
	loss      Basket
	benchmark float64
}

// tableBuilder accumulates one record per month in realization order
type tableBuilder struct {
	records []monthRecord
}

func newTableBuilder(capacity int) *tableBuilder {
	if capacity < 0 {
		capacity = 0
	}
	return &tableBuilder{
		records: make([]monthRecord, 0, capacity),
	}
}

func (builder *tableBuilder) add(rec monthRecord) {
	builder.records = append(builder.records, rec)
}

func (builder *tableBuilder) finalize() (*Table, error) {
	table := &Table{
		Data:     dataframe.New(ColMomentum, ColWin, ColLoss, ColBenchmark),
		Baskets:  make([]Basket, 0, 2*len(builder.records)),
		Warnings: []MissingValue{},
	}

	for _, rec := range builder.records {
		for _, basket := range []Basket{rec.win, rec.loss} {
			if !math.IsNaN(basket.Return) {
				continue
			}

			reason := "no member has a return for the month"
			if len(basket.Members) == 0 {
				reason = "basket is empty"
			}

			table.Warnings = append(table.Warnings, MissingValue{
				Basket:   basket.Name,
				Formed:   basket.Formed,
				Realized: basket.Realized,
				Reason:   reason,
			})
		}

		// NaN propagates into the spread
		momentum := rec.win.Return - rec.loss.Return

		if err := table.Data.InsertRow(rec.realized, 1.0+momentum, 1.0+rec.win.Return, 1.0+rec.loss.Return, 1.0+rec.benchmark); err != nil {
			return nil, err
		}

		table.Baskets = append(table.Baskets, rec.win, rec.loss)
	}

	return table, nil
}
