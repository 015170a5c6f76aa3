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

import "errors"

var (
	ErrEmptyUniverse        = errors.New("no valid tickers in universe")
	ErrNoData               = errors.New("no price data returned")
	ErrNotFound             = errors.New("security not found")
	ErrInvalidTimeRange     = errors.New("begin must be before end")
	ErrInvalidStatusCode    = errors.New("price feed returned invalid status code")
	ErrMissingPriceColumn   = errors.New("price column not found")
	ErrProviderNotAvailable = errors.New("no price provider configured")
)
