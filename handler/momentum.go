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
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-momentum/backtest"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/penny-vault/pv-momentum/portfolio"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RunMomentum returns a handler that runs a momentum analysis with prices
// from feed. Inputs are read from the query string; anything missing takes
// the value of backtest.DefaultParams.
//
//	tickers      comma separated universe
//	benchmark    benchmark ticker
//	startDate    first date of price history (YYYY-MM-DD)
//	endDate      last date of price history or `now`
//	period       lookback period in months
//	method       Equal or Quantile
//	quantile     basket quantile for the Quantile method
//	basketSize   basket size for the Equal method
//	amount       initial investment of the summary
//	betaWindow   months in the rolling beta window
//	sharpeWindow months in the rolling Sharpe window
//	riskFree     risk free rate subtracted by the Sharpe ratio
func RunMomentum(feed backtest.PriceFeed) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "handler.RunMomentum")
		defer span.End()
		span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

		params, err := paramsFromQuery(c)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return sendError(c, err)
		}

		result, err := backtest.Run(ctx, feed, params)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "momentum analysis failed")
			return sendError(c, err)
		}

		analysis := newAnalysis(result)
		analysisJSON, err := json.Marshal(analysis)
		if err != nil {
			log.Error().Err(err).Msg("could not serialize momentum analysis")
			return sendError(c, err)
		}

		digest := blake3.Sum256(analysisJSON)
		etag := fmt.Sprintf(`"%s"`, hex.EncodeToString(digest[:]))
		c.Set(fiber.HeaderETag, etag)
		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			return c.SendStatus(fiber.StatusNotModified)
		}

		resp := MomentumResponse{
			ID:         result.ID,
			ComputedOn: result.ComputedOn,
			Params:     result.Params,
			Analysis:   analysis,
		}

		body, err := json.Marshal(resp)
		if err != nil {
			log.Error().Err(err).Msg("could not serialize momentum response")
			return sendError(c, err)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(body)
	}
}

func paramsFromQuery(c *fiber.Ctx) (backtest.Params, error) {
	tz := common.GetTimezone()
	params := backtest.DefaultParams()

	if tickers := c.Query("tickers"); tickers != "" {
		params.Tickers = common.ParseTickers(tickers)
	}

	if benchmark := c.Query("benchmark"); benchmark != "" {
		params.Benchmark = strings.ToUpper(strings.TrimSpace(benchmark))
	}

	if startDateStr := c.Query("startDate"); startDateStr != "" {
		startDate, err := time.ParseInLocation(common.DateFormat, startDateStr, tz)
		if err != nil {
			return params, fmt.Errorf("%w: startDate '%s'", xsmom.ErrInvalidParameter, startDateStr)
		}
		params.Start = startDate
	}

	if endDateStr := c.Query("endDate", "now"); endDateStr != "now" {
		endDate, err := time.ParseInLocation(common.DateFormat, endDateStr, tz)
		if err != nil {
			return params, fmt.Errorf("%w: endDate '%s'", xsmom.ErrInvalidParameter, endDateStr)
		}
		params.End = endDate
	}

	if method := c.Query("method"); method != "" {
		parsed, err := xsmom.ParseMethod(method)
		if err != nil {
			return params, err
		}
		params.Options.Method = parsed
	}

	var err error
	if params.Options.Period, err = queryInt(c, "period", params.Options.Period); err != nil {
		return params, err
	}
	if params.Options.BasketSize, err = queryInt(c, "basketSize", params.Options.BasketSize); err != nil {
		return params, err
	}
	if params.BetaWindow, err = queryInt(c, "betaWindow", params.BetaWindow); err != nil {
		return params, err
	}
	if params.SharpeWindow, err = queryInt(c, "sharpeWindow", params.SharpeWindow); err != nil {
		return params, err
	}
	if params.Options.Quantile, err = queryFloat(c, "quantile", params.Options.Quantile); err != nil {
		return params, err
	}
	if params.Amount, err = queryFloat(c, "amount", params.Amount); err != nil {
		return params, err
	}
	if params.RiskFreeRate, err = queryFloat(c, "riskFree", params.RiskFreeRate); err != nil {
		return params, err
	}

	return params, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	str := c.Query(key)
	if str == "" {
		return def, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return def, fmt.Errorf("%w: %s '%s' is not an integer", xsmom.ErrInvalidParameter, key, str)
	}
	return val, nil
}

func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	str := c.Query(key)
	if str == "" {
		return def, nil
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return def, fmt.Errorf("%w: %s '%s' is not a finite number", xsmom.ErrInvalidParameter, key, str)
	}
	return val, nil
}

// statusCode maps analysis errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, xsmom.ErrInvalidParameter),
		errors.Is(err, portfolio.ErrInvalidWindow),
		errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, data.ErrInvalidTimeRange):
		return fiber.StatusBadRequest
	case errors.Is(err, data.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, xsmom.ErrInsufficientHistory),
		errors.Is(err, data.ErrEmptyUniverse),
		errors.Is(err, data.ErrNoData),
		errors.Is(err, portfolio.ErrEmptyTable):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	code := statusCode(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("URL", c.OriginalURL()).Msg("momentum analysis failed")
		message = "internal server error"
	} else {
		log.Warn().Err(err).Int("StatusCode", code).Str("URL", c.OriginalURL()).Msg("momentum analysis rejected")
	}

	return c.Status(code).JSON(ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
