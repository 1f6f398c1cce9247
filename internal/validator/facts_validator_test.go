package validator

import (
	"testing"

	"github.com/robert-at-pretension-io/exprdetect/internal/facts"
)

func TestFactsValidatorAcceptsValidTables(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{
			Path:      "test/a.c",
			Language:  "c",
			Supported: true,
			Instances: 1,
		}},
		Functions: []facts.FunctionRow{{
			Name:       "f",
			File:       "test/a.c",
			Line:       1,
			InMain:     true,
			Candidates: 1,
		}},
		Candidates: []facts.CandidateRow{{
			File:     "test/a.c",
			Function: "f",
			Ordinal:  1,
			Line:     2,
			Column:   10,
			Expr:     "a",
			Kind:     "decl-ref",
			Type:     "int",
			Format:   "d",
			Stmt:     "return",
		}},
		Includes: []facts.IncludeRow{},
	}

	if err := v.ValidateFacts(tables); err != nil {
		t.Fatalf("expected valid tables, got error: %v", err)
	}
	if err := v.Validate(DeltaDef, facts.ComputeDelta(facts.Tables{}, tables)); err != nil {
		t.Fatalf("expected valid delta, got error: %v", err)
	}
}

func TestFactsValidatorRejectsInvalidTables(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{
			Path:     "test/a.txt",
			Language: "c",
		}},
		Functions:  []facts.FunctionRow{},
		Candidates: []facts.CandidateRow{},
		Includes:   []facts.IncludeRow{},
	}
	if err := v.ValidateFacts(tables); err == nil {
		t.Fatalf("expected validation error for non-C file path")
	}

	tables.Files[0].Path = "test/a.c"
	tables.Candidates = []facts.CandidateRow{{
		File: "test/a.c", Function: "f", Ordinal: 1, Line: 1, Column: 1,
		Expr: "s", Kind: "decl-ref", Type: "struct S", Format: "", Stmt: "expr",
	}}
	if err := v.ValidateFacts(tables); err == nil {
		t.Fatalf("expected validation error for candidate without a format")
	}
}
