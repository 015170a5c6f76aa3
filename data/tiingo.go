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
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TiingoAPI is the base url of the tiingo REST api
var TiingoAPI = "https://api.tiingo.com"

// Tiingo downloads end-of-day quotes from tiingo.com
type Tiingo struct {
	apikey string
	client *http.Client
}

type tiingoErrorResponse struct {
	Detail string `json:"detail"`
}

// NewTiingo Create a new Tiingo data provider
func NewTiingo(key string) *Tiingo {
	return &Tiingo{
		apikey: key,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Tiingo) Name() string {
	return "tiingo"
}

// GetPrices downloads daily adjusted close prices for ticker
func (t *Tiingo) GetPrices(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.GetPrices")
	defer span.End()

	ticker = strings.ToUpper(ticker)
	subLog := log.With().Str("Ticker", ticker).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		span.SetStatus(codes.Error, ErrInvalidTimeRange.Error())
		return nil, ErrInvalidTimeRange
	}

	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&format=csv&resampleFreq=daily", TiingoAPI,
		url.PathEscape(ticker), begin.Format(common.DateFormat), end.Format(common.DateFormat))

	span.SetAttributes(
		attribute.KeyValue{
			Key:   "Url",
			Value: attribute.StringValue(endpoint),
		},
		attribute.KeyValue{
			Key:   "Ticker",
			Value: attribute.StringValue(ticker),
		},
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s&token=%s", endpoint, t.apikey), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not build request")
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "tiingo http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		msg := "could not read tiingo body"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.KeyValue{
			Key:   "StatusCode",
			Value: attribute.IntValue(resp.StatusCode),
		})
		msg := "tiingo returned invalid response code"
		span.SetStatus(codes.Error, msg)

		detail := string(body)
		errResp := tiingoErrorResponse{}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			detail = errResp.Detail
		}
		subLog.Warn().Int("HTTPResponseStatusCode", resp.StatusCode).Str("Detail", detail).Msg(msg)

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		return nil, fmt.Errorf("%w: %d (%s)", ErrInvalidStatusCode, resp.StatusCode, detail)
	}

	// tiingo answers unknown tickers on the csv endpoint with a json error and a 200 status
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		errResp := tiingoErrorResponse{}
		if err := json.Unmarshal(trimmed, &errResp); err == nil && errResp.Detail != "" {
			subLog.Warn().Str("Detail", errResp.Detail).Msg("tiingo returned an error")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
		}
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	df, err := parsePriceCSV(ctx, bytes.NewReader(body), ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not parse tiingo response")
		subLog.Warn().Err(err).Msg("could not parse tiingo response")
		return nil, err
	}

	subLog.Debug().Int("Rows", df.Len()).Msg("loaded prices from tiingo")
	return df, nil
}
