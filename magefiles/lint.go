// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binLint = "golangci-lint"

// lintPackages are the module's own packages. The integration build tag
// is set so the server-backed tests are checked too.
var lintPackages = []string{"./cmd/...", "./internal/...", "./pkg/..."}

// Vet runs go vet with the integration build tag.
func Vet() error {
	args := append([]string{"vet", "-tags", "integration"}, lintPackages...)
	return sh.RunV(binGo, args...)
}

// Lint runs go vet, then golangci-lint over the module's packages.
func Lint() error {
	mg.Deps(Vet)
	args := append([]string{"run", "--build-tags", "integration"}, lintPackages...)
	return sh.RunV(binLint, args...)
}
