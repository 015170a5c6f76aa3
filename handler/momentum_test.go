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

package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/handler"
)

// monthlyFeed serves a mid-month and a month-end quote for each month so
// that each monthly return equals the configured value
type monthlyFeed struct {
	returns map[string][]float64
	err     error
}

func (feed *monthlyFeed) series(ticker string) *dataframe.DataFrame {
	tz := common.GetTimezone()
	df := dataframe.New(ticker)
	price := 50.0
	for month, ret := range feed.returns[ticker] {
		mid := time.Date(2020, time.Month(month+1), 15, 0, 0, 0, 0, tz)
		end := time.Date(2020, time.Month(month+2), 0, 0, 0, 0, 0, tz)
		Expect(df.InsertRow(mid, price)).To(Succeed())
		price *= 1.0 + ret
		Expect(df.InsertRow(end, price)).To(Succeed())
	}
	return df
}

func (feed *monthlyFeed) Prices(ctx context.Context, tickers []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if feed.err != nil {
		return nil, feed.err
	}
	dfMap := make(dataframe.Map, len(tickers))
	for _, ticker := range tickers {
		if _, ok := feed.returns[ticker]; ok {
			dfMap[ticker] = feed.series(ticker)
		}
	}
	if len(dfMap) == 0 {
		return nil, data.ErrEmptyUniverse
	}
	return dfMap.DataFrame(tickers...), nil
}

func (feed *monthlyFeed) Benchmark(ctx context.Context, ticker string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if _, ok := feed.returns[ticker]; !ok {
		return nil, data.ErrNotFound
	}
	return feed.series(ticker), nil
}

func repeat(n int, vals ...float64) []float64 {
	res := make([]float64, n)
	for ii := range res {
		res[ii] = vals[ii%len(vals)]
	}
	return res
}

type seriesBody struct {
	Dates   []string `json:"dates"`
	Columns []struct {
		Name   string     `json:"name"`
		Values []*float64 `json:"values"`
	} `json:"columns"`
}

type momentumBody struct {
	ID       string `json:"id"`
	Params   struct {
		Tickers   []string `json:"tickers"`
		Benchmark string   `json:"benchmark"`
	} `json:"params"`
	Analysis struct {
		Table   seriesBody `json:"table"`
		Returns seriesBody `json:"returns"`
		Beta    seriesBody `json:"beta"`
		Sharpe  seriesBody `json:"sharpe"`
		Baskets []struct {
			Name    string   `json:"name"`
			Members []string `json:"members"`
		} `json:"baskets"`
		Summary struct {
			Amount  float64 `json:"amount"`
			Columns []struct {
				Name       string   `json:"name"`
				FinalValue *float64 `json:"finalValue"`
			} `json:"columns"`
		} `json:"summary"`
	} `json:"analysis"`
}

// momentumURL builds a request for the synthetic universe; each pair of
// args overrides one query parameter
func momentumURL(args ...string) string {
	query := url.Values{}
	query.Set("tickers", "a, b,c")
	query.Set("benchmark", "spy")
	query.Set("startDate", "2020-01-01")
	query.Set("endDate", "2021-12-31")
	query.Set("period", "3")
	query.Set("method", "equal")
	query.Set("basketSize", "1")
	for ii := 0; ii+1 < len(args); ii += 2 {
		query.Set(args[ii], args[ii+1])
	}
	return "/v1/momentum?" + query.Encode()
}

var _ = Describe("Momentum handler", func() {
	var (
		app  *fiber.App
		feed *monthlyFeed
	)

	BeforeEach(func() {
		feed = &monthlyFeed{
			returns: map[string][]float64{
				"A":   repeat(24, 0.10, -0.05),
				"B":   repeat(24, -0.05, 0.10),
				"C":   repeat(24, 0.02),
				"SPY": repeat(24, 0.01, 0.03),
			},
		}

		app = fiber.New()
		app.Get("/v1/momentum", handler.RunMomentum(feed))
		app.Get("/v1/strategy", handler.GetStrategy)
		app.Get("/v1", handler.Ping)
	})

	It("returns the momentum analysis", func() {
		resp, err := app.Test(httptest.NewRequest("GET", momentumURL(), nil), -1)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(resp.Header.Get(fiber.HeaderETag)).To(HavePrefix(`"`))

		body, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())

		var decoded momentumBody
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())

		Expect(decoded.ID).ToNot(BeEmpty())
		Expect(decoded.Params.Tickers).To(Equal([]string{"A", "B", "C"}))
		Expect(decoded.Params.Benchmark).To(Equal("SPY"))

		table := decoded.Analysis.Table
		Expect(table.Dates).To(HaveLen(21))
		Expect(table.Dates[0]).To(Equal("2020-04-30"))
		Expect(table.Columns).To(HaveLen(4))
		Expect(table.Columns[0].Name).To(Equal("Momentum"))
		for _, val := range table.Columns[0].Values {
			Expect(val).ToNot(BeNil())
			Expect(*val).To(BeNumerically("~", 0.85, 1e-9))
		}

		Expect(decoded.Analysis.Returns.Columns[0].Values[0]).ToNot(BeNil())
		Expect(*decoded.Analysis.Returns.Columns[0].Values[0]).To(BeNumerically("~", -0.15, 1e-9))

		// the first window-1 points of a rolling statistic are undefined
		Expect(decoded.Analysis.Beta.Columns[0].Values[0]).To(BeNil())
		Expect(decoded.Analysis.Beta.Columns[0].Values[5]).ToNot(BeNil())

		// a constant momentum return has no volatility
		for _, val := range decoded.Analysis.Sharpe.Columns[0].Values {
			Expect(val).To(BeNil())
		}

		Expect(decoded.Analysis.Baskets).To(HaveLen(42))
		Expect(decoded.Analysis.Baskets[0].Name).To(Equal("Win"))

		Expect(decoded.Analysis.Summary.Amount).To(Equal(1000.0))
		Expect(decoded.Analysis.Summary.Columns).To(HaveLen(4))
		Expect(decoded.Analysis.Summary.Columns[0].Name).To(Equal("Benchmark"))
	})

	It("honors If-None-Match", func() {
		resp, err := app.Test(httptest.NewRequest("GET", momentumURL(), nil), -1)
		Expect(err).To(BeNil())
		etag := resp.Header.Get(fiber.HeaderETag)
		Expect(etag).ToNot(BeEmpty())

		req := httptest.NewRequest("GET", momentumURL(), nil)
		req.Header.Set(fiber.HeaderIfNoneMatch, etag)
		resp, err = app.Test(req, -1)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotModified))
	})

	DescribeTable("maps errors to status codes",
		func(url string, expected int) {
			resp, err := app.Test(httptest.NewRequest("GET", url, nil), -1)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(expected))

			var decoded handler.ErrorResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded.Status).To(Equal("error"))
			Expect(decoded.Message).ToNot(BeEmpty())
		},
		Entry("bad period", momentumURL("period", "abc"), fiber.StatusBadRequest),
		Entry("bad start date", momentumURL("startDate", "01/01/2020"), fiber.StatusBadRequest),
		Entry("start after end", momentumURL("startDate", "2022-01-01"), fiber.StatusBadRequest),
		Entry("bad method", momentumURL("method", "random"), fiber.StatusBadRequest),
		Entry("quantile out of range", momentumURL("method", "quantile", "quantile", "0.9"), fiber.StatusBadRequest),
		Entry("small beta window", momentumURL("betaWindow", "1"), fiber.StatusBadRequest),
		Entry("negative amount", momentumURL("amount", "-5"), fiber.StatusBadRequest),
		Entry("NaN risk free rate", momentumURL("riskFree", "NaN"), fiber.StatusBadRequest),
		Entry("infinite amount", momentumURL("amount", "Inf"), fiber.StatusBadRequest),
		Entry("NaN quantile", momentumURL("method", "quantile", "quantile", "NaN"), fiber.StatusBadRequest),
		Entry("period longer than history", momentumURL("period", "30"), fiber.StatusUnprocessableEntity),
		Entry("unknown tickers", momentumURL("tickers", "X,Y"), fiber.StatusUnprocessableEntity),
		Entry("unknown benchmark", momentumURL("benchmark", "QQQ"), fiber.StatusNotFound),
	)

	It("hides internal errors", func() {
		feed.err = errors.New("connection refused")
		resp, err := app.Test(httptest.NewRequest("GET", momentumURL(), nil), -1)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

		body, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		Expect(string(body)).ToNot(ContainSubstring("connection refused"))
	})

	It("describes the analyzer", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/strategy", nil), -1)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var info struct {
			Shortcode string                     `json:"shortcode"`
			Arguments map[string]json.RawMessage `json:"arguments"`
		}
		body, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		Expect(json.Unmarshal(body, &info)).To(Succeed())
		Expect(info.Shortcode).To(Equal("xsmom"))
		Expect(info.Arguments).To(HaveKey("period"))
	})

	It("answers ping", func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1", nil), -1)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	})
})
