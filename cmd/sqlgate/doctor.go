package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/sqlgate/sqlgate"
)

// runDoctor validates the environment configuration and probes each
// configured target, printing a check line per finding.
func runDoctor() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	useColor := term.IsTerminal(int(os.Stderr.Fd()))
	return doctor(os.Stderr, useColor)
}

func doctor(w io.Writer, useColor bool) error {
	fmt.Fprintln(w, "sqlgate doctor")
	fmt.Fprintln(w)

	config, warnings, err := sqlgate.FromEnv()
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Configuration parses: %v", err))
		return nil
	}
	printCheck(w, useColor, true, "Configuration parses")

	for _, warning := range warnings {
		printCheck(w, useColor, false, warning)
	}
	if len(warnings) == 0 {
		printCheck(w, useColor, true, "Parallel config lists agree in length")
	}

	if len(config.Targets) == 0 {
		printCheck(w, useColor, false, "At least one target configured")
		return nil
	}
	printCheck(w, useColor, true, fmt.Sprintf("%d target(s) configured", len(config.Targets)))

	for _, t := range config.Targets {
		if t.User == "" {
			printCheck(w, useColor, false, fmt.Sprintf("Target %q has a user configured", t.Name))
		}
	}

	// Probe each target independently; one unreachable target is a
	// finding, not a doctor failure.
	logger := zerolog.New(io.Discard)
	gw := sqlgate.New(config, logger)
	defer gw.Close(context.Background())

	for _, t := range config.Targets {
		ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout+5*time.Second)
		err := gw.Ping(ctx, t.Name)
		cancel()
		if err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("Target %q reachable: %v", t.Name, err))
			continue
		}
		printCheck(w, useColor, true, fmt.Sprintf("Target %q reachable (%s:%d)", t.Name, t.Host, t.Port))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Read-only mode: %t, max pool size: %d, max results: %d\n",
		config.ReadOnly, config.MaxPoolSize, config.MaxResults)
	return nil
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	mark, color := "✓", "\033[32m"
	if !pass {
		mark, color = "✗", "\033[31m"
	}
	if useColor {
		fmt.Fprintf(w, "  %s%s\033[0m %s\n", color, mark, msg)
	} else {
		fmt.Fprintf(w, "  %s %s\n", mark, msg)
	}
}
