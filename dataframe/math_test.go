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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-momentum/dataframe"
)

var _ = Describe("DataFrame math", func() {
	var (
		df *dataframe.DataFrame
	)

	BeforeEach(func() {
		df = &dataframe.DataFrame{
			Dates: []time.Time{
				time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.January, 5, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.January, 6, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.January, 7, 0, 0, 0, 0, time.UTC),
				time.Date(2021, time.January, 8, 0, 0, 0, 0, time.UTC),
			},
			ColNames: []string{"test"},
			Vals:     [][]float64{{100, 110, 99, 99, 108.9}},
		}
	})

	Describe("when computing the percent change", func() {
		It("has an undefined first row", func() {
			pct := df.PctChange()
			Expect(pct.Len()).To(Equal(5))
			Expect(math.IsNaN(pct.Vals[0][0])).To(BeTrue())
		})

		It("yields the change between consecutive rows", func() {
			pct := df.PctChange()
			Expect(pct.Vals[0][1]).To(BeNumerically("~", 0.10, 1e-12))
			Expect(pct.Vals[0][2]).To(BeNumerically("~", -0.10, 1e-12))
			Expect(pct.Vals[0][3]).To(BeNumerically("~", 0.0, 1e-12))
			Expect(pct.Vals[0][4]).To(BeNumerically("~", 0.10, 1e-12))
		})

		It("does not modify the source dataframe", func() {
			df.PctChange()
			Expect(df.Vals[0][0]).To(Equal(100.0))
		})

		It("leaves leading NaNs undefined", func() {
			df.Vals[0][0] = math.NaN()
			df.Vals[0][1] = math.NaN()
			pct := df.PctChange()
			Expect(math.IsNaN(pct.Vals[0][0])).To(BeTrue())
			Expect(math.IsNaN(pct.Vals[0][1])).To(BeTrue())
			Expect(math.IsNaN(pct.Vals[0][2])).To(BeTrue())
			Expect(pct.Vals[0][3]).To(BeNumerically("~", 0.0, 1e-12))
		})

		It("bridges gaps from the last defined value", func() {
			df.Vals[0][2] = math.NaN()
			pct := df.PctChange()
			Expect(math.IsNaN(pct.Vals[0][2])).To(BeTrue())
			Expect(pct.Vals[0][3]).To(BeNumerically("~", -0.10, 1e-12))
		})
	})

	Describe("when computing the rolling compound return", func() {
		BeforeEach(func() {
			df.Vals = [][]float64{{0.1, -0.05, 0.1, -0.05, 0.1}}
		})

		It("is undefined during warm-up", func() {
			roll := df.RollingCompound(3)
			Expect(roll.Len()).To(Equal(5))
			Expect(math.IsNaN(roll.Vals[0][0])).To(BeTrue())
			Expect(math.IsNaN(roll.Vals[0][1])).To(BeTrue())
		})

		It("compounds the trailing window", func() {
			roll := df.RollingCompound(3)
			Expect(roll.Vals[0][2]).To(BeNumerically("~", 1.1*0.95*1.1-1, 1e-12))
			Expect(roll.Vals[0][3]).To(BeNumerically("~", 0.95*1.1*0.95-1, 1e-12))
			Expect(roll.Vals[0][4]).To(BeNumerically("~", 1.1*0.95*1.1-1, 1e-12))
		})

		It("propagates NaN inside the window", func() {
			df.Vals[0][1] = math.NaN()
			roll := df.RollingCompound(2)
			Expect(math.IsNaN(roll.Vals[0][1])).To(BeTrue())
			Expect(math.IsNaN(roll.Vals[0][2])).To(BeTrue())
			Expect(roll.Vals[0][3]).To(BeNumerically("~", 1.1*0.95-1, 1e-12))
		})

		It("is all NaN for an invalid window", func() {
			roll := df.RollingCompound(0)
			for _, val := range roll.Vals[0] {
				Expect(math.IsNaN(val)).To(BeTrue())
			}
		})
	})

	Describe("when computing the cumulative product", func() {
		It("multiplies running values", func() {
			df.Vals = [][]float64{{1.1, 0.9, 1.0, 2.0, 0.5}}
			cum := df.CumProd()
			Expect(cum.Vals[0][1]).To(BeNumerically("~", 0.99, 1e-12))
			Expect(cum.Vals[0][4]).To(BeNumerically("~", 0.99, 1e-12))
		})

		It("skips NaN values leaving a gap", func() {
			df.Vals = [][]float64{{1.1, math.NaN(), 2.0, 1.0, 1.0}}
			cum := df.CumProd()
			Expect(math.IsNaN(cum.Vals[0][1])).To(BeTrue())
			Expect(cum.Vals[0][2]).To(BeNumerically("~", 2.2, 1e-12))
		})
	})

	Describe("when applying scalars", func() {
		It("adds a scalar to every value", func() {
			res := df.AddScalar(1)
			Expect(res.Vals[0][0]).To(Equal(101.0))
			Expect(df.Vals[0][0]).To(Equal(100.0))
		})

		It("multiplies every value by a scalar", func() {
			res := df.MulScalar(0.5)
			Expect(res.Vals[0][1]).To(Equal(55.0))
		})
	})
})
