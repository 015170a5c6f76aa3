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

package indicators_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-momentum/data"
	"github.com/penny-vault/pv-momentum/dataframe"
	"github.com/penny-vault/pv-momentum/indicators"
)

var _ = Describe("Returns", func() {
	var (
		prices *dataframe.DataFrame
	)

	BeforeEach(func() {
		prices = &dataframe.DataFrame{
			Dates: []time.Time{
				time.Date(2021, time.January, 28, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.January, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.February, 26, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC),
			},
			ColNames: []string{"AAPL", "SPY"},
			Vals: [][]float64{
				{100, 110, 121, 121, 108.9},
				{200, 200, 200, 220, 220},
			},
		}
	})

	It("compounds daily changes into calendar months", func() {
		monthly, err := indicators.MonthlyReturns(prices)
		Expect(err).To(BeNil())
		Expect(monthly.Len()).To(Equal(3))
		Expect(monthly.Dates[0]).To(Equal(time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC)))
		Expect(monthly.Dates[2]).To(Equal(time.Date(2021, time.March, 31, 0, 0, 0, 0, time.UTC)))

		// the first daily change is undefined and excluded from January
		Expect(monthly.Vals[0][0]).To(BeNumerically("~", 0.10, 1e-12))
		Expect(monthly.Vals[0][1]).To(BeNumerically("~", 0.10, 1e-12))
		Expect(monthly.Vals[0][2]).To(BeNumerically("~", -0.10, 1e-12))

		Expect(monthly.Vals[1][0]).To(BeNumerically("~", 0.0, 1e-12))
		Expect(monthly.Vals[1][1]).To(BeNumerically("~", 0.10, 1e-12))
		Expect(monthly.Vals[1][2]).To(BeNumerically("~", 0.0, 1e-12))
	})

	It("treats a single column benchmark the same way", func() {
		_, spy := prices.Split("AAPL")
		monthly, err := indicators.MonthlyReturns(spy)
		Expect(err).To(BeNil())
		Expect(monthly.ColNames).To(Equal([]string{"SPY"}))
		Expect(monthly.Vals[0][1]).To(BeNumerically("~", 0.10, 1e-12))
	})

	It("leaves the month before a ticker's first quote undefined", func() {
		prices.Vals[0][0] = math.NaN()
		prices.Vals[0][1] = math.NaN()
		monthly, err := indicators.MonthlyReturns(prices)
		Expect(err).To(BeNil())
		Expect(math.IsNaN(monthly.Vals[0][0])).To(BeTrue())
		// the Feb 1 change has no prior quote; Feb 26 is unchanged
		Expect(monthly.Vals[0][1]).To(BeNumerically("~", 0.0, 1e-12))
		Expect(monthly.Vals[0][2]).To(BeNumerically("~", -0.10, 1e-12))
	})

	It("leaves a month without any defined daily change undefined", func() {
		prices.Vals[0][2] = math.NaN()
		prices.Vals[0][3] = math.NaN()
		monthly, err := indicators.MonthlyReturns(prices)
		Expect(err).To(BeNil())
		Expect(monthly.Vals[0][0]).To(BeNumerically("~", 0.10, 1e-12))
		Expect(math.IsNaN(monthly.Vals[0][1])).To(BeTrue())
		// March is measured from the last quote in January
		Expect(monthly.Vals[0][2]).To(BeNumerically("~", -0.01, 1e-12))
	})

	It("errors on a frame without columns", func() {
		_, err := indicators.MonthlyReturns(dataframe.New())
		Expect(errors.Is(err, data.ErrEmptyUniverse)).To(BeTrue())
	})

	It("errors on a frame without rows", func() {
		_, err := indicators.MonthlyReturns(dataframe.New("AAPL"))
		Expect(errors.Is(err, data.ErrNoData)).To(BeTrue())
	})
})
