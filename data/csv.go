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

package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	rdf "github.com/rocketlaunchr/dataframe-go"
	imports "github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	dateColumn     = "date"
	adjCloseColumn = "adjClose"
)

// CSVFiles reads end-of-day quotes from a directory holding one file per
// ticker named <TICKER>.csv. Files use the layout of tiingo's csv export; only
// the date and adjClose columns are required.
type CSVFiles struct {
	Dir string
}

// NewCSVFiles creates a provider that reads quotes from dir
func NewCSVFiles(dir string) *CSVFiles {
	return &CSVFiles{
		Dir: dir,
	}
}

func (c *CSVFiles) Name() string {
	return "csv"
}

// GetPrices reads the adjusted close for ticker from disk
func (c *CSVFiles) GetPrices(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "csv.GetPrices")
	defer span.End()

	ticker = strings.ToUpper(ticker)
	fn := filepath.Join(c.Dir, fmt.Sprintf("%s.csv", ticker))
	span.SetAttributes(attribute.String("Ticker", ticker), attribute.String("FileName", fn))

	subLog := log.With().Str("Ticker", ticker).Str("FileName", fn).Logger()

	if end.Before(begin) {
		span.SetStatus(codes.Error, ErrInvalidTimeRange.Error())
		return nil, ErrInvalidTimeRange
	}

	fh, err := os.Open(fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not open price file")
		if errors.Is(err, fs.ErrNotExist) {
			subLog.Warn().Msg("no price file for ticker")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		subLog.Error().Err(err).Msg("could not open price file")
		return nil, err
	}
	defer fh.Close()

	df, err := parsePriceCSV(ctx, fh, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse price file")
		subLog.Warn().Err(err).Msg("could not parse price file")
		return nil, err
	}

	return df, nil
}

// parsePriceCSV converts csv formatted quotes into a single column dataframe
// named after ticker. Rows outside of [begin, end] are dropped, unparsable
// prices are stored as NaN.
func parsePriceCSV(ctx context.Context, r io.ReadSeeker, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	tz := common.GetTimezone()

	floatConverter := imports.Converter{
		ConcreteType: float64(0),
		ConverterFunc: func(in interface{}) (interface{}, error) {
			v, err := strconv.ParseFloat(in.(string), 64)
			if err != nil {
				return math.NaN(), nil
			}
			return v, nil
		},
	}

	raw, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			dateColumn: imports.Converter{
				ConcreteType: time.Time{},
				ConverterFunc: func(in interface{}) (interface{}, error) {
					str := in.(string)
					// tiingo sometimes sends full timestamps
					if len(str) > len(common.DateFormat) {
						str = str[:len(common.DateFormat)]
					}
					return time.ParseInLocation(common.DateFormat, str, tz)
				},
			},
			adjCloseColumn: floatConverter,
		},
	})
	if err != nil {
		if errors.Is(err, rdf.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
		}
		return nil, err
	}

	if _, err := raw.NameToColumn(dateColumn); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPriceColumn, dateColumn)
	}
	if _, err := raw.NameToColumn(adjCloseColumn); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPriceColumn, adjCloseColumn)
	}

	type quote struct {
		date  time.Time
		price float64
	}

	quotes := make([]quote, 0, raw.NRows())
	iterator := raw.ValuesIterator(rdf.ValuesOptions{InitialRow: 0, Step: 1, DontReadLock: true})
	for {
		row, vals, _ := iterator(rdf.SeriesName)
		if row == nil {
			break
		}

		dt, ok := vals[dateColumn].(time.Time)
		if !ok {
			continue
		}
		if dt.Before(begin) || dt.After(end) {
			continue
		}

		price, ok := vals[adjCloseColumn].(float64)
		if !ok {
			price = math.NaN()
		}

		quotes = append(quotes, quote{date: dt, price: price})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].date.Before(quotes[j].date)
	})

	df := dataframe.New(ticker)
	for _, q := range quotes {
		if df.Len() > 0 && !q.date.After(df.End()) {
			// duplicate date; keep the first quote
			continue
		}
		if err := df.InsertRow(q.date, q.price); err != nil {
			return nil, err
		}
	}

	if df.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	return df, nil
}
