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

package handler

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-momentum/backtest"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/portfolio"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
)

// NullFloat is a float64 that encodes NaN and infinities as null
type NullFloat float64

func (f NullFloat) MarshalJSON() ([]byte, error) {
	val := float64(f)
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, val, 'g', -1, 64), nil
}

// Column is one named series of a Series
type Column struct {
	Name   string      `json:"name"`
	Values []NullFloat `json:"values"`
}

// Series is a time indexed table suitable for charting
type Series struct {
	Dates   []string `json:"dates"`
	Columns []Column `json:"columns"`
}

type BasketResponse struct {
	Name     string    `json:"name"`
	Formed   string    `json:"formed"`
	Realized string    `json:"realized"`
	Members  []string  `json:"members"`
	Return   NullFloat `json:"return"`
}

type DrawDownResponse struct {
	Begin       string    `json:"begin"`
	End         string    `json:"end"`
	Recovery    string    `json:"recovery,omitempty"`
	LossPercent NullFloat `json:"lossPercent"`
}

type ColumnSummaryResponse struct {
	Name             string            `json:"name"`
	FinalValue       NullFloat         `json:"finalValue"`
	PercentChange    NullFloat         `json:"percentChange"`
	AnnualizedReturn NullFloat         `json:"annualizedReturn"`
	Volatility       NullFloat         `json:"volatility"`
	MaxDrawDown      *DrawDownResponse `json:"maxDrawDown,omitempty"`
}

type SummaryResponse struct {
	Amount  float64                 `json:"amount"`
	Begin   string                  `json:"begin"`
	End     string                  `json:"end"`
	Months  int                     `json:"months"`
	Columns []ColumnSummaryResponse `json:"columns"`
}

// Analysis is the deterministic part of a momentum response; its encoding
// is the source of the ETag
type Analysis struct {
	Table      Series               `json:"table"`
	Returns    Series               `json:"returns"`
	Cumulative Series               `json:"cumulative"`
	Beta       Series               `json:"beta"`
	Sharpe     Series               `json:"sharpe"`
	Baskets    []BasketResponse     `json:"baskets"`
	Warnings   []xsmom.MissingValue `json:"warnings"`
	Summary    SummaryResponse      `json:"summary"`
}

type MomentumResponse struct {
	ID         uuid.UUID       `json:"id"`
	ComputedOn time.Time       `json:"computedOn"`
	Params     backtest.Params `json:"params"`
	Analysis   *Analysis       `json:"analysis"`
}

func newSeries(df *dataframe.DataFrame) Series {
	series := Series{
		Dates:   make([]string, len(df.Dates)),
		Columns: make([]Column, len(df.ColNames)),
	}

	for idx, date := range df.Dates {
		series.Dates[idx] = date.Format(common.DateFormat)
	}

	for colIdx, name := range df.ColNames {
		vals := make([]NullFloat, len(df.Vals[colIdx]))
		for rowIdx, val := range df.Vals[colIdx] {
			vals[rowIdx] = NullFloat(val)
		}
		series.Columns[colIdx] = Column{
			Name:   name,
			Values: vals,
		}
	}

	return series
}

func formatDate(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	return date.Format(common.DateFormat)
}

func newSummaryResponse(summary *portfolio.Summary) SummaryResponse {
	resp := SummaryResponse{
		Amount:  summary.Amount,
		Begin:   formatDate(summary.Begin),
		End:     formatDate(summary.End),
		Months:  summary.Months,
		Columns: make([]ColumnSummaryResponse, 0, len(summary.Columns)),
	}

	for _, col := range summary.Columns {
		colResp := ColumnSummaryResponse{
			Name:             col.Name,
			FinalValue:       NullFloat(col.FinalValue),
			PercentChange:    NullFloat(col.PercentChange),
			AnnualizedReturn: NullFloat(col.AnnualizedReturn),
			Volatility:       NullFloat(col.Volatility),
		}
		if col.MaxDrawDown != nil {
			colResp.MaxDrawDown = &DrawDownResponse{
				Begin:       formatDate(col.MaxDrawDown.Begin),
				End:         formatDate(col.MaxDrawDown.End),
				Recovery:    formatDate(col.MaxDrawDown.Recovery),
				LossPercent: NullFloat(col.MaxDrawDown.LossPercent),
			}
		}
		resp.Columns = append(resp.Columns, colResp)
	}

	return resp
}

func newAnalysis(result *backtest.Result) *Analysis {
	analysis := &Analysis{
		Table:      newSeries(result.Table.Data),
		Returns:    newSeries(result.Table.Returns()),
		Cumulative: newSeries(result.Cumulative),
		Beta:       newSeries(result.Beta),
		Sharpe:     newSeries(result.Sharpe),
		Baskets:    make([]BasketResponse, len(result.Table.Baskets)),
		Warnings:   result.Table.Warnings,
		Summary:    newSummaryResponse(result.Summary),
	}

	if analysis.Warnings == nil {
		analysis.Warnings = []xsmom.MissingValue{}
	}

	for idx, basket := range result.Table.Baskets {
		members := basket.Members
		if members == nil {
			members = []string{}
		}
		analysis.Baskets[idx] = BasketResponse{
			Name:     basket.Name,
			Formed:   formatDate(basket.Formed),
			Realized: formatDate(basket.Realized),
			Members:  members,
			Return:   NullFloat(basket.Return),
		}
	}

	return analysis
}
