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

package data_test

import (
	"context"
	"errors"
	"io/ioutil"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-momentum/common"
	"github.com/penny-vault/pv-momentum/data"
)

var _ = Describe("Tiingo provider", func() {
	var (
		tiingo *data.Tiingo
		tz     *time.Location
		begin  time.Time
		end    time.Time
	)

	BeforeEach(func() {
		httpmock.Activate()
		tiingo = data.NewTiingo("TEST")
		tz = common.GetTimezone()
		begin = time.Date(2021, 1, 1, 0, 0, 0, 0, tz)
		end = time.Date(2021, 1, 31, 0, 0, 0, 0, tz)
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("is named tiingo", func() {
		Expect(tiingo.Name()).To(Equal("tiingo"))
	})

	It("downloads adjusted close prices", func() {
		content, err := ioutil.ReadFile("testdata/AAPL.csv")
		Expect(err).To(BeNil())

		httpmock.RegisterResponder("GET", "https://api.tiingo.com/tiingo/daily/AAPL/prices?startDate=2021-01-01&endDate=2021-01-31&format=csv&resampleFreq=daily&token=TEST",
			httpmock.NewBytesResponder(200, content))

		df, err := tiingo.GetPrices(context.Background(), "aapl", begin, end)
		Expect(err).To(BeNil())
		Expect(df.ColNames).To(Equal([]string{"AAPL"}))
		Expect(df.Len()).To(Equal(5))
		Expect(df.Start()).To(Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, tz)))
		Expect(df.Vals[0][4]).To(Equal(130.41))
		Expect(httpmock.GetTotalCallCount()).To(Equal(1))
	})

	It("maps a 404 to ErrNotFound", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/XXXX/prices`,
			httpmock.NewStringResponder(404, `{"detail":"Error: Ticker 'XXXX' not found"}`))

		_, err := tiingo.GetPrices(context.Background(), "XXXX", begin, end)
		Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
	})

	It("maps an error document to ErrNotFound", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/XXXX/prices`,
			httpmock.NewStringResponder(200, `{"detail":"Error: Ticker 'XXXX' not found"}`))

		_, err := tiingo.GetPrices(context.Background(), "XXXX", begin, end)
		Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
	})

	It("returns ErrNoData for an empty response", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/SPY/prices`,
			httpmock.NewStringResponder(200, "[]"))

		_, err := tiingo.GetPrices(context.Background(), "SPY", begin, end)
		Expect(errors.Is(err, data.ErrNoData)).To(BeTrue())
	})

	It("fails on server errors", func() {
		httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/SPY/prices`,
			httpmock.NewStringResponder(500, "internal error"))

		_, err := tiingo.GetPrices(context.Background(), "SPY", begin, end)
		Expect(errors.Is(err, data.ErrInvalidStatusCode)).To(BeTrue())
	})

	It("rejects an inverted time range without calling the api", func() {
		_, err := tiingo.GetPrices(context.Background(), "SPY", end, begin)
		Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
		Expect(httpmock.GetTotalCallCount()).To(Equal(0))
	})
})
