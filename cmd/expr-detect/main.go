// =============================================================================
// expr-detect - Main Entry Point
// =============================================================================
//
// A test-case reduction pass for C. It numbers the scalar expressions of a
// file and instruments the N-th one so that running the program prints its
// value (print mode) or aborts when it differs from a reference (check mode).
// A reduction driver calls it with N = 1, 2, ... until exit status 2.
//
// THE PIPELINE:
//   1. Tree-sitter parses C into a syntax tree
//   2. The front end lowers it into a typed AST (internal/cast)
//   3. The detector walks every function and numbers valid candidates
//   4. The emitter plans edits for the requested instance
//   5. The rewritten source is re-parsed and written atomically
//   6. The CUE validator checks the config and the JSON report
//
// EXIT STATUS:
//   0  success
//   1  usage, I/O or configuration error
//   2  instance out of range (nothing written)
//   3  internal invariant violation
//   4  rewritten source has new syntax errors
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/robert-at-pretension-io/exprdetect/internal/config"
	"github.com/robert-at-pretension-io/exprdetect/internal/detector"
	"github.com/robert-at-pretension-io/exprdetect/internal/frontend"
	"github.com/robert-at-pretension-io/exprdetect/internal/runner"
	"github.com/robert-at-pretension-io/exprdetect/internal/validator"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitMaxInstance = 2
	exitInternal    = 3
	exitDiagnostics = 4
)

const usage = `Usage: expr-detect [options] <file.c>
       expr-detect init [config-file]

Options:
  -instance N        1-based ordinal of the expression to instrument (default 1)
  -mode print|check  print the value, or abort when it differs from -reference
  -reference V       numeric literal compared against in check mode
  -replacement TEXT  replace the expression with TEXT instead of instrumenting
  -fire-instance N   guard counter value at which the report fires (default 0)
  -query             print the number of instances and exit
  -language L        override the dialect inferred from the file extension
  -o, -output FILE   write the rewritten source to FILE (default: stdout)
  -in-place          overwrite the input file
  -json              print a JSON report on stdout
  -timing            append stage timings to the timing log
  -timing-path FILE  timing log path (default .expr_detect_timing.jsonl)
  -c, -config FILE   configuration file (JSON or YAML)
  -v, -verbose       progress on stderr

Configuration:
  expr-detect looks for configuration in:
    1. ./expr_detect.json
    2. ./.expr_detect.json
    3. ./expr_detect.yaml
    4. ./expr_detect.yml
    5. ~/.config/expr_detect/config.json
  Flags override the configuration file.`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliFlags struct {
	instance     int
	mode         string
	reference    string
	replacement  string
	fireInstance int
	query        bool
	language     string
	output       string
	inPlace      bool
	jsonOut      bool
	timing       bool
	timingPath   string
	configPath   string
	verbose      bool
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("expr-detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprintln(stderr, usage) }

	var f cliFlags
	fs.IntVar(&f.instance, "instance", 1, "")
	fs.StringVar(&f.mode, "mode", "print", "")
	fs.StringVar(&f.reference, "reference", "", "")
	fs.StringVar(&f.replacement, "replacement", "", "")
	fs.IntVar(&f.fireInstance, "fire-instance", 0, "")
	fs.BoolVar(&f.query, "query", false, "")
	fs.StringVar(&f.language, "language", "", "")
	fs.StringVar(&f.output, "output", "", "")
	fs.StringVar(&f.output, "o", "", "")
	fs.BoolVar(&f.inPlace, "in-place", false, "")
	fs.BoolVar(&f.jsonOut, "json", false, "")
	fs.BoolVar(&f.timing, "timing", false, "")
	fs.StringVar(&f.timingPath, "timing-path", "", "")
	fs.StringVar(&f.configPath, "config", "", "")
	fs.StringVar(&f.configPath, "c", "", "")
	fs.BoolVar(&f.verbose, "verbose", false, "")
	fs.BoolVar(&f.verbose, "v", false, "")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	if err := applyFlags(cfg, fs, f); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if code := validateConfig(cfg, stderr); code != exitOK {
		return code
	}
	if f.jsonOut && !cfg.QueryInstances && cfg.OutputPath(path) == "" {
		fmt.Fprintln(stderr, "Error: -json needs -o or -in-place so the report and the source don't share stdout")
		return exitUsage
	}

	r := runner.New(cfg)
	r.Verbose = f.verbose
	r.JSONOutput = f.jsonOut
	r.Stdout = stdout
	r.Stderr = stderr

	report, runErr := r.Run(context.Background(), path)
	if report != nil {
		if f.jsonOut {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				fmt.Fprintf(stderr, "Error encoding report: %v\n", err)
				return exitUsage
			}
		} else if report.Status == runner.StatusQuery {
			fmt.Fprintf(stdout, "Available transformation instances: %d\n", report.Instances)
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
	}
	return exitCode(runErr)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// applyFlags copies the flags that were given on the command line over cfg.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, f cliFlags) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "instance":
			cfg.Instance = f.instance
		case "mode":
			if e := cfg.Mode.UnmarshalText([]byte(f.mode)); e != nil {
				err = e
			}
		case "reference":
			cfg.Reference = f.reference
		case "replacement":
			cfg.Replacement = f.replacement
		case "fire-instance":
			cfg.FireInstance = f.fireInstance
		case "query":
			cfg.QueryInstances = f.query
		case "language":
			cfg.Language = f.language
		case "output", "o":
			cfg.Output.Path = f.output
		case "in-place":
			cfg.Output.InPlace = f.inPlace
		case "timing":
			enabled := f.timing
			cfg.Timing.Enabled = &enabled
		case "timing-path":
			cfg.Timing.Path = f.timingPath
		}
	})
	return err
}

func validateConfig(cfg *config.Config, stderr io.Writer) int {
	v, err := validator.New()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitInternal
	}
	if errs := v.ValidationErrors(validator.ConfigDef, cfg); len(errs) > 0 {
		fmt.Fprintln(stderr, "Error: invalid configuration:")
		for _, e := range errs {
			fmt.Fprintf(stderr, "  %s\n", e)
		}
		return exitUsage
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, detector.ErrInternal):
		return exitInternal
	case errors.Is(err, detector.ErrMaxInstance):
		return exitMaxInstance
	case errors.Is(err, frontend.ErrDiagnostics):
		return exitDiagnostics
	}
	return exitUsage
}

func runInit(args []string, stdout, stderr io.Writer) int {
	configPath := "expr_detect.json"
	if len(args) > 0 {
		configPath = args[0]
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(stderr, "Config file %s already exists\n", configPath)
		return exitUsage
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(stderr, "Error creating config: %v\n", err)
		return exitUsage
	}

	fmt.Fprintf(stdout, "Created %s\n", configPath)
	return exitOK
}
