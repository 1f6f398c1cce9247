package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
	"github.com/robert-at-pretension-io/exprdetect/internal/detector"
)

// Tables is the relational view of the candidates of one or more files.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files      []FileRow      `json:"files"`
	Functions  []FunctionRow  `json:"functions"`
	Candidates []CandidateRow `json:"candidates"`
	Includes   []IncludeRow   `json:"includes"`
}

type FileRow struct {
	Path         string `json:"path"`
	Language     string `json:"language"`
	Supported    bool   `json:"supported"`
	Instances    int    `json:"instances"`
	SyntaxErrors int    `json:"syntax_errors"`
}

type FunctionRow struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	InMain     bool   `json:"in_main"`
	Candidates int    `json:"candidates"`
}

type CandidateRow struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Ordinal  int    `json:"ordinal"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Expr     string `json:"expr"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	Format   string `json:"format"`
	Stmt     string `json:"stmt"`
}

type IncludeRow struct {
	File   string `json:"file"`
	Path   string `json:"path"`
	Angled bool   `json:"angled"`
	Line   int    `json:"line"`
	InMain bool   `json:"in_main"`
}

// Unit is one analyzed file: its translation unit and the candidates a
// query session accepted in it.
type Unit struct {
	TU         *cast.TranslationUnit
	Candidates []detector.Candidate
}

func emptyTables() Tables {
	return Tables{
		Files:      []FileRow{},
		Functions:  []FunctionRow{},
		Candidates: []CandidateRow{},
		Includes:   []IncludeRow{},
	}
}

// BuildTables converts analyzed units into the relational model.
func BuildTables(units []Unit) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, u := range units {
		tu := u.TU
		if tu == nil || seenFiles[tu.Path] {
			continue
		}
		seenFiles[tu.Path] = true

		tables.Files = append(tables.Files, FileRow{
			Path:         tu.Path,
			Language:     tu.Language,
			Supported:    tu.Supported,
			Instances:    len(u.Candidates),
			SyntaxErrors: tu.SyntaxErrors,
		})

		perFunc := make(map[*cast.Func]int)
		for _, c := range u.Candidates {
			perFunc[c.Func]++
			tables.Candidates = append(tables.Candidates, CandidateRow{
				File:     tu.Path,
				Function: funcName(c.Func),
				Ordinal:  c.Ordinal,
				Line:     c.Expr.Range.Line,
				Column:   c.Expr.Range.Column,
				Expr:     tu.Text(c.Expr.Range),
				Kind:     c.Expr.Kind.String(),
				Type:     c.Expr.Type.Spelling(),
				Format:   detector.FormatSpec(c.Expr.Type),
				Stmt:     c.Stmt.Kind.String(),
			})
		}

		for _, fn := range tu.Funcs {
			tables.Functions = append(tables.Functions, FunctionRow{
				Name:       fn.Name,
				File:       tu.Path,
				Line:       fn.Range.Line,
				InMain:     fn.InMain,
				Candidates: perFunc[fn],
			})
		}

		for _, inc := range tu.Includes {
			tables.Includes = append(tables.Includes, IncludeRow{
				File:   tu.Path,
				Path:   inc.Path,
				Angled: inc.Angled,
				Line:   inc.Range.Line,
				InMain: inc.InMain,
			})
		}
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func funcName(fn *cast.Func) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}
