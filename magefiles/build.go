// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

// Package main provides build targets for cosmosx using Mage.
//
// Usage:
//
//	mage build             Compile cosmosx to bin/
//	mage install           Install cosmosx to GOPATH/bin
//	mage test:all          Run all tests
//	mage test:unit         Run tests that need no database server
//	mage test:integration  Run tests against a local MongoDB or emulator
//	mage lint              Run golangci-lint
//	mage clean             Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "cosmosx"
	binaryDir  = "bin"
	cmdDir     = "./cmd/cosmosx"
	versionVar = "github.com/mesh-intelligence/cosmosx/internal/cli.Version"
)

// ldflags stamps the version from COSMOSX_VERSION when set.
func ldflags() string {
	if v := os.Getenv("COSMOSX_VERSION"); v != "" {
		return "-X " + versionVar + "=" + v
	}
	return ""
}

// Build compiles the cosmosx binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
