// expr-facts dumps the candidate expressions of C files as relational
// tables, and optionally the row delta against a previous dump.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/config"
	"github.com/robert-at-pretension-io/exprdetect/internal/detector"
	"github.com/robert-at-pretension-io/exprdetect/internal/facts"
	"github.com/robert-at-pretension-io/exprdetect/internal/frontend"
	"github.com/robert-at-pretension-io/exprdetect/internal/policy"
	"github.com/robert-at-pretension-io/exprdetect/internal/validator"
)

func main() {
	output := flag.String("output", "", "write facts JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write facts JSON to file (shorthand)")
	configPath := flag.String("config", "", "configuration file (default: search the working directory)")
	function := flag.String("function", "", "keep only the rows of this function")
	only := flag.String("only", "", "comma-separated files to keep in the output and delta")
	deltaFrom := flag.String("delta-from", "", "previous facts JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	check := flag.Bool("check", false, "evaluate the Rego rules against the facts")
	policyDir := flag.String("policy", "", "directory of .rego rules (default: built-in rules; implies --check)")
	violationsOut := flag.String("violations", "", "write rule violations JSON to file (implies --check)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"."}
	}
	files, err := collectFiles(cfg, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: expr-facts [--output file] [--function name] [--only a.c,b.c] [--delta-from prev.json --delta-out delta.json] [--check] [--policy dir] [--violations out.json] [path...]")
		fmt.Fprintln(os.Stderr, "Error: no C sources found")
		os.Exit(1)
	}

	tables, err := buildTables(context.Background(), cfg, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *function != "" {
		tables = facts.FilterCandidatesByFunction(tables, *function)
	}
	keep := fileSet(*only)
	if keep != nil {
		tables = facts.FilterTablesByFiles(tables, keep)
	}

	v, err := validator.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := v.ValidateFacts(tables); err != nil {
		fmt.Fprintf(os.Stderr, "Error: facts violate the contract: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := writeJSON(*output, tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing facts: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding facts: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readTables(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := facts.ComputeDelta(prev, tables)
		if keep != nil {
			delta = facts.FilterDeltaByFiles(delta, keep)
		}
		if err := v.Validate(validator.DeltaDef, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error: delta violates the contract: %v\n", err)
			os.Exit(1)
		}
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}

	if *check || *policyDir != "" || *violationsOut != "" {
		result, err := evaluateRules(context.Background(), *policyDir, tables)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, viol := range result.Violations {
			fmt.Fprintf(os.Stderr, "%s:%d: %s: %s [%s]\n", viol.File, viol.Line, viol.Severity, viol.Message, viol.Rule)
		}
		if *violationsOut != "" {
			if err := writeJSON(*violationsOut, result); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing violations: %v\n", err)
				os.Exit(1)
			}
		}
		if result.Summary.Errors > 0 {
			os.Exit(1)
		}
	}
}

func evaluateRules(ctx context.Context, dir string, tables facts.Tables) (*policy.Result, error) {
	engine, err := policy.New(ctx, dir)
	if err != nil {
		return nil, err
	}
	return engine.Evaluate(ctx, tables)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// collectFiles expands directory arguments with the configured globs and
// keeps file arguments as given.
func collectFiles(cfg *config.Config, args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		matches := []string{filepath.Clean(arg)}
		if info.IsDir() {
			if matches, err = cfg.ResolveFiles(arg); err != nil {
				return nil, err
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func buildTables(ctx context.Context, cfg *config.Config, files []string) (facts.Tables, error) {
	parser := frontend.New()
	units := make([]facts.Unit, 0, len(files))
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return facts.Tables{}, fmt.Errorf("reading %s: %w", path, err)
		}
		tu, err := parser.Parse(ctx, path, src, cfg.Language)
		if err != nil {
			return facts.Tables{}, err
		}
		res, err := detector.New(tu, detector.Options{QueryOnly: true}).Run()
		if err != nil {
			return facts.Tables{}, fmt.Errorf("%s: %w", path, err)
		}
		units = append(units, facts.Unit{TU: tu, Candidates: res.Candidates})
	}
	return facts.BuildTables(units), nil
}

func fileSet(list string) map[string]bool {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			set[filepath.Clean(f)] = true
		}
	}
	return set
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
