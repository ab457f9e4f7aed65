// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/certflow/pkg/registry"
)

// NewRegistry creates a registry holding the built-in action kinds.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaultKinds()

	return reg
}
