package main

// Package main is the entry point for the gumshoe CLI.
//
// Responsibilities:
//   - Load and validate configuration from YAML, environment variables, and CLI flags
//   - Connect to the local Docker engine and discover the container inventory
//   - Build the probe registry and the LLM-backed Reasoner client
//   - Drive one debug session through the control loop under a step budget
//   - Persist the finished session and its Markdown report
//   - Abort cleanly on SIGINT/SIGTERM without leaking inspection containers

import (
	"os"

	"github.com/gumshoe-dev/gumshoe/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
