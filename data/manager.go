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
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCacheSize = 512
	DefaultWorkers   = 8
)

// Manager fetches quotes for a universe of tickers from a Provider. Downloads
// run concurrently and individual series are kept in an LRU cache keyed by
// ticker and date range.
type Manager struct {
	provider Provider
	cache    *lru.Cache
	workers  int
}

type quoteResult struct {
	Ticker string
	Data   *dataframe.DataFrame
	Err    error
}

// NewManager create a new data manager
func NewManager(provider Provider, cacheSize int) (*Manager, error) {
	if provider == nil {
		return nil, ErrProviderNotAvailable
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	return &Manager{
		provider: provider,
		cache:    cache,
		workers:  DefaultWorkers,
	}, nil
}

// SetWorkers sets the number of concurrent downloads
func (m *Manager) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	m.workers = n
}

// PurgeCache removes all cached quotes
func (m *Manager) PurgeCache() {
	log.Info().Int("Entries", m.cache.Len()).Msg("purging quote cache")
	m.cache.Purge()
}

// Prices returns a dataframe of adjusted closes with one column per ticker in
// the order requested. Dates are the union of all trading days returned;
// tickers lacking a quote on a date are NaN. Tickers the provider does not
// know are dropped with a warning; if none remain ErrEmptyUniverse is returned.
func (m *Manager) Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.Prices")
	defer span.End()

	subLog := log.With().Strs("Tickers", tickers).Time("Begin", begin).Time("End", end).Logger()

	tickers = append([]string{}, tickers...)
	common.ArrToUpper(tickers)
	universe := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		ticker = strings.TrimSpace(ticker)
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		universe = append(universe, ticker)
	}

	span.SetAttributes(attribute.StringSlice("Tickers", universe))

	if len(universe) == 0 {
		span.SetStatus(codes.Error, ErrEmptyUniverse.Error())
		return nil, ErrEmptyUniverse
	}

	results, err := m.fetch(ctx, universe, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		subLog.Error().Err(err).Msg("could not fetch prices")
		return nil, err
	}

	dfMap := make(dataframe.Map, len(results))
	order := make([]string, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			subLog.Warn().Err(res.Err).Str("Ticker", res.Ticker).Msg("dropping ticker from universe")
			continue
		}
		dfMap[res.Ticker] = res.Data
		order = append(order, res.Ticker)
	}

	if len(order) == 0 {
		span.SetStatus(codes.Error, ErrEmptyUniverse.Error())
		return nil, ErrEmptyUniverse
	}

	return dfMap.DataFrame(order...), nil
}

// Benchmark returns a single column dataframe of adjusted closes for ticker
func (m *Manager) Benchmark(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.Benchmark")
	defer span.End()

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		span.SetStatus(codes.Error, ErrEmptyUniverse.Error())
		return nil, ErrEmptyUniverse
	}

	df, err := m.get(ctx, ticker, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not fetch benchmark")
		log.Error().Err(err).Str("Benchmark", ticker).Msg("could not fetch benchmark")
		return nil, fmt.Errorf("benchmark %s: %w", ticker, err)
	}

	return df, nil
}

// fetch downloads all tickers with a bounded pool of workers. Missing
// securities are reported on the individual result; any other error cancels
// the remaining downloads.
func (m *Manager) fetch(ctx context.Context, tickers []string, begin, end time.Time) ([]quoteResult, error) {
	results := make([]quoteResult, len(tickers))

	jobs := make(chan int, len(tickers))
	for idx := range tickers {
		jobs <- idx
	}
	close(jobs)

	workers := m.workers
	if workers > len(tickers) {
		workers = len(tickers)
	}

	g, gctx := errgroup.WithContext(ctx)
	for ii := 0; ii < workers; ii++ {
		g.Go(func() error {
			for idx := range jobs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				ticker := tickers[idx]
				df, err := m.get(gctx, ticker, begin, end)
				if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrNoData) {
					return fmt.Errorf("%s: %w", ticker, err)
				}

				// each worker writes a distinct index
				results[idx] = quoteResult{
					Ticker: ticker,
					Data:   df,
					Err:    err,
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (m *Manager) get(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	key := fmt.Sprintf("%s:%s:%s:%s", m.provider.Name(), ticker, begin.Format(common.DateFormat), end.Format(common.DateFormat))
	if val, ok := m.cache.Get(key); ok {
		log.Debug().Str("Ticker", ticker).Msg("quote cache hit")
		return val.(*dataframe.DataFrame).Copy(), nil
	}

	df, err := m.provider.GetPrices(ctx, ticker, begin, end)
	if err != nil {
		return nil, err
	}

	m.cache.Add(key, df)
	return df.Copy(), nil
}
