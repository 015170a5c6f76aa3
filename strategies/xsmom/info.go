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

package xsmom

import (
	"embed"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed strategy.toml description.md
var resources embed.FS

// Argument describes a user supplied input of the analyzer
type Argument struct {
	Name        string   `json:"name" toml:"name"`
	Description string   `json:"description" toml:"description"`
	Typecode    string   `json:"typecode" toml:"typecode"`
	Default     string   `json:"default" toml:"default"`
	Advanced    bool     `json:"advanced" toml:"advanced"`
	Options     []string `json:"options" toml:"options"`
}

// Info describes the analyzer and its arguments
type Info struct {
	Name            string              `json:"name" toml:"name"`
	Shortcode       string              `json:"shortcode" toml:"shortcode"`
	Description     string              `json:"description" toml:"description"`
	LongDescription string              `json:"longDescription" toml:"-"`
	Source          string              `json:"source" toml:"source"`
	Version         string              `json:"version" toml:"version"`
	Benchmark       string              `json:"benchmark" toml:"benchmark"`
	Arguments       map[string]Argument `json:"arguments" toml:"arguments"`
}

var (
	infoOnce sync.Once
	info     Info
	infoErr  error
)

// GetInfo returns the description of the analyzer
func GetInfo() (Info, error) {
	infoOnce.Do(func() {
		doc, err := resources.ReadFile("strategy.toml")
		if err != nil {
			infoErr = err
			return
		}

		if err := toml.Unmarshal(doc, &info); err != nil {
			infoErr = err
			return
		}

		longDescription, err := resources.ReadFile("description.md")
		if err != nil {
			infoErr = err
			return
		}
		info.LongDescription = string(longDescription)
	})

	return info, infoErr
}
