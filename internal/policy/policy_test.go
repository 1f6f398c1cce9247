package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"

	"github.com/robert-at-pretension-io/exprdetect/internal/facts"
)

func sampleTables() facts.Tables {
	return facts.Tables{
		Files: []facts.FileRow{
			{Path: "a.c", Language: "c", Supported: true, Instances: 2, SyntaxErrors: 0},
			{Path: "b.cpp", Language: "c++", Supported: false, Instances: 0, SyntaxErrors: 1},
			{Path: "c.c", Language: "c", Supported: true, Instances: 0, SyntaxErrors: 0},
		},
		Functions: []facts.FunctionRow{
			{Name: "f", File: "a.c", Line: 1, InMain: true, Candidates: 2},
			{Name: "empty", File: "a.c", Line: 5, InMain: true, Candidates: 0},
			{Name: "helper", File: "a.c", Line: 9, InMain: false, Candidates: 0},
		},
		Candidates: []facts.CandidateRow{},
		Includes:   []facts.IncludeRow{},
	}
}

func TestBuiltinRules(t *testing.T) {
	ctx := context.Background()
	engine, err := New(ctx, "")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	result, err := engine.Evaluate(ctx, sampleTables())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	want := &Result{
		Violations: []Violation{
			{Rule: "no_candidates", Severity: "info", File: "a.c", Line: 5, Message: "function empty has no candidate expressions"},
			{Rule: "syntax_errors", Severity: "warning", File: "b.cpp", Line: 1, Message: "1 syntax errors; rewrites that add more are refused"},
			{Rule: "unsupported_dialect", Severity: "error", File: "b.cpp", Line: 1, Message: "c++ is not C; every instance is out of range"},
			{Rule: "nothing_to_instrument", Severity: "warning", File: "c.c", Line: 1, Message: "no candidate expressions in the main file"},
		},
		Summary: Summary{TotalViolations: 4, Errors: 1, Warnings: 2, Info: 1},
	}
	if !reflect.DeepEqual(want, result) {
		deepequal.SideBySide(t, "result", want, result)
		t.FailNow()
	}
}

func TestCleanTablesHaveNoViolations(t *testing.T) {
	ctx := context.Background()
	engine, err := New(ctx, "")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	tables := sampleTables()
	tables.Files = tables.Files[:1]
	tables.Functions = tables.Functions[:1]

	result, err := engine.Evaluate(ctx, tables)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 0 || result.Summary.TotalViolations != 0 {
		t.Fatalf("expected no violations, got %+v", result)
	}
}

func TestPolicyDir(t *testing.T) {
	dir := t.TempDir()
	rule := `package exprdetect.rules

import rego.v1

violations contains v if {
	some c in input.candidates
	c.type == "double"
	v := {"rule": "float_candidate", "severity": "info", "file": c.file, "line": c.line, "message": c.expr}
}

all_violations := [v | some v in violations]

summary := {"total_violations": count(violations), "errors": 0, "warnings": 0, "info": count(violations)}
`
	if err := os.WriteFile(filepath.Join(dir, "float.rego"), []byte(rule), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}

	ctx := context.Background()
	engine, err := New(ctx, dir)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	tables := sampleTables()
	tables.Candidates = []facts.CandidateRow{
		{File: "a.c", Function: "f", Ordinal: 1, Line: 2, Column: 3, Expr: "x * 0.5", Kind: "binary", Type: "double", Format: "f", Stmt: "return"},
		{File: "a.c", Function: "f", Ordinal: 2, Line: 2, Column: 3, Expr: "x", Kind: "decl-ref", Type: "int", Format: "d", Stmt: "return"},
	}
	result, err := engine.Evaluate(ctx, tables)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []Violation{{Rule: "float_candidate", Severity: "info", File: "a.c", Line: 2, Message: "x * 0.5"}}
	if !reflect.DeepEqual(want, result.Violations) {
		deepequal.SideBySide(t, "violations", want, result.Violations)
		t.FailNow()
	}
}

func TestPolicyDirWithoutRules(t *testing.T) {
	if _, err := New(context.Background(), t.TempDir()); err == nil {
		t.Fatalf("expected an error for a directory without .rego files")
	}
}
