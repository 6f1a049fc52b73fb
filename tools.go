//go:build tools
// +build tools

// Package backend tracks Go-based tool dependencies (mockgen) in go.mod.
package backend

import (
	_ "go.uber.org/mock/mockgen"
)
