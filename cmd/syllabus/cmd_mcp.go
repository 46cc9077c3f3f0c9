package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/syllabus/internal/app"
)

// cmdMCP serves the MCP tools on stdio, or over HTTP when an address is given.
func cmdMCP(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: syllabus mcp [http-addr]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, so logs go to stderr only
	application, err := app.New(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer application.Close()

	srv := application.MCPServer(Version)
	if len(args) == 1 {
		return srv.ServeHTTP(ctx, args[0])
	}
	return srv.ServeStdio(ctx)
}
