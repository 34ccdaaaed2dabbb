// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// envMongoURI points integration tests at a running MongoDB-compatible
// server, such as the local emulator.
const envMongoURI = "COSMOSX_TEST_MONGO_URI"

// Test groups test targets (all, unit, integration).
type Test mg.Namespace

// All runs all tests (unit and integration).
func (Test) All() error {
	mg.Deps(Test.Unit)
	return Test{}.Integration()
}

// Unit runs the tests that need no database server.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Integration runs the tests tagged integration. They skip unless
// COSMOSX_TEST_MONGO_URI is set.
func (Test) Integration() error {
	if os.Getenv(envMongoURI) == "" {
		fmt.Printf("%s not set; integration tests will skip.\n", envMongoURI)
	}
	return sh.RunV(binGo, "test", "-tags", "integration", "-v", "./internal/mongo/...")
}
