//go:build mage

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
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pvmomentum"
	commonPkg  = "github.com/penny-vault/pv-momentum/common"
)

// GOEXE overrides the go executable, e.g. GOEXE=go1.18 mage build
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

var Default = Build

// Build compiles the pvmomentum binary with the commit hash and build date
// stamped into the version command
func Build() error {
	fmt.Println("Building...")
	return sh.RunWith(versionEnv(), goexe, append([]string{"build", "-o", binaryName, "-ldflags", ldflags()}, exeFlags()...)...)
}

// Install puts pvmomentum in GOBIN
func Install() error {
	return sh.RunWith(versionEnv(), goexe, append([]string{"install", "-ldflags", ldflags()}, exeFlags()...)...)
}

// Serve builds and starts the momentum API on the configured port
func Serve() error {
	mg.Deps(Build)
	return sh.RunV("./"+binaryName, "serve")
}

// Clean removes the built binary and coverage output
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(binaryName)
	os.RemoveAll("coverage.out")
}

// Check runs the formatter, vet, and the test suites
func Check() {
	mg.SerialDeps(Fmt, Vet, Test)
}

// Test runs every ginkgo suite with the race detector and writes coverage.out
func Test() error {
	fmt.Println("Go Test")
	args := []string{"test", "-race", "-coverprofile=coverage.out", "./..."}
	if mg.Verbose() {
		return sh.RunV(goexe, args...)
	}

	out, err := sh.Output(goexe, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, out)
	}
	return err
}

// Fmt fails when any package holds a file gofmt would rewrite
func Fmt() error {
	fmt.Println("Go Format")
	dirs, err := sh.Output(goexe, "list", "-f", "{{.Dir}}", "./...")
	if err != nil {
		return err
	}

	// gofmt -l exits zero even when it lists files
	out, err := sh.Output("gofmt", append([]string{"-l"}, strings.Fields(dirs)...)...)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(out)
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Vet runs go vet over the module
func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

func ldflags() string {
	return fmt.Sprintf("-X %s.commitHash=$COMMIT_HASH -X %s.buildDate=$BUILD_DATE", commonPkg, commonPkg)
}

func versionEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

func exeFlags() []string {
	if runtime.GOOS == "windows" {
		return []string{"-buildmode", "exe"}
	}
	return nil
}
