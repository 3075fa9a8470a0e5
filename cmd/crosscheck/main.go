package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/jsvx/crosscheck/internal/cli"
	"github.com/jsvx/crosscheck/internal/config"
)

const quickStart = `crosscheck - conformance harness for schema-validation implementations

START HERE:
  crosscheck run -i <image> cases.jsonl

Flags:
  -i    Implementation container image (repeatable)
  -D    Dialect URI or shortname (default: newest known)

Other useful commands:
  crosscheck smoke -i <image>           Smoke test an implementation
  crosscheck summary report.jsonl       Summarize a finished run
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("crosscheck"),
		kong.Description("Run untrusted schema-validation implementations against a shared stream of test cases and stream a uniform report."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)

	globals := cli.NewGlobals(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			if exit.Message != "" {
				fmt.Fprintln(os.Stderr, exit.Message)
			}
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
