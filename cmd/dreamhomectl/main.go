// Package main provides dreamhomectl, the operator CLI for the auth gateway.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"

	"github.com/dreamhome/auth-gateway/internal/pkg/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	load := func(ctx context.Context) (*config.Config, error) {
		return config.Process(ctx, envconfig.OsLookuper())
	}
	if err := newRootCmd(load).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
