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
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-momentum/strategies/xsmom"
	"github.com/rs/zerolog/log"
)

// GetStrategy describes the momentum analyzer and the arguments it accepts
func GetStrategy(c *fiber.Ctx) error {
	info, err := xsmom.GetInfo()
	if err != nil {
		log.Error().Err(err).Msg("could not load strategy description")
		return fiber.ErrInternalServerError
	}
	return c.JSON(info)
}
