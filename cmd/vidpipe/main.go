/*
Vidpipe compiles and runs a video-frame pipeline program.

Usage:

	vidpipe --program FILE [--config FILE]

The flags are:

	--program FILE
		Path to a pipeline source file. Required.

	--config FILE
		Path to a YAML RuntimeConfig. If not given, the §6 defaults are used.

Vidpipe prints the structured runtime event stream to stderr as it runs and
exits with status 0 on a normal finish, 130 if the run was cancelled
(SIGINT), or 1 on compile failure or a fatal runtime fault.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/vidpipe/vidpipe"
	"github.com/vidpipe/vidpipe/internal/functions"
)

var (
	flagProgram = pflag.String("program", "", "Path to a pipeline source file.")
	flagConfig  = pflag.String("config", "", "Path to a YAML RuntimeConfig file.")
)

func main() {
	pflag.Parse()
	os.Exit(run())
}

func run() int {
	if *flagProgram == "" {
		fmt.Fprintln(os.Stderr, "vidpipe: --program is required")
		return 1
	}

	src, err := os.ReadFile(*flagProgram)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidpipe: %v\n", err)
		return 1
	}

	config := vidpipe.DefaultRuntimeConfig()
	if *flagConfig != "" {
		raw, err := os.ReadFile(*flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vidpipe: %v\n", err)
			return 1
		}
		if err := yaml.Unmarshal(raw, &config); err != nil {
			fmt.Fprintf(os.Stderr, "vidpipe: invalid config: %v\n", err)
			return 1
		}
	}

	prog, err := vidpipe.Parse(*flagProgram, string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidpipe: %v\n", err)
		return 1
	}

	reg := vidpipe.NewRegistry()
	functions.Register(reg, functions.NewRecorder())

	graph, err := vidpipe.CompileWithCapacities(prog, reg, config.DefaultEdgeCapacity, config.AsyncEdgeCapacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidpipe: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	events := vidpipe.NewSlogEventSink(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sup := vidpipe.NewSupervisor(graph, config, events)
	result, err := sup.Run(ctx)
	if err != nil && result.Status != vidpipe.StatusCancelled {
		fmt.Fprintf(os.Stderr, "vidpipe: %v\n", err)
	}

	switch result.Status {
	case vidpipe.StatusNormal:
		return 0
	case vidpipe.StatusCancelled:
		return 130
	default:
		return 1
	}
}
