// Package frontend parses C source with Tree-sitter and lowers the syntax
// tree into the typed AST of package cast: scopes, declarations, static
// types, literal values and side-effect flags.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

// ErrDiagnostics is returned when rewritten source has more syntax errors
// than the source it was produced from.
var ErrDiagnostics = errors.New("front end diagnostics")

// LanguageC is the only dialect the detector analyzes.
const LanguageC = "c"

// Parser uses Tree-sitter to parse C files into translation units
type Parser struct {
	parser *sitter.Parser
	lang   *sitter.Language
}

// New creates a Parser with the C grammar loaded
func New() *Parser {
	lang := c.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Parser{
		parser: parser,
		lang:   lang,
	}
}

// Tree returns the raw syntax tree. The caller must Close it.
func (p *Parser) Tree(ctx context.Context, src []byte) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return tree, nil
}

// Parse builds the translation unit for src. language overrides the dialect
// inferred from the path extension when non-empty.
func (p *Parser) Parse(ctx context.Context, path string, src []byte, language string) (*cast.TranslationUnit, error) {
	tree, err := p.Tree(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer tree.Close()

	lang, supported := DetectLanguage(path, language)
	tu := &cast.TranslationUnit{
		Path:      path,
		Source:    src,
		Language:  lang,
		Supported: supported,
	}

	root := tree.RootNode()
	tu.SyntaxErrors = countErrors(root)

	b := newBuilder(src, tu)
	b.translationUnit(root)

	return tu, nil
}

// ErrorCount returns the number of ERROR and MISSING nodes in src.
func (p *Parser) ErrorCount(ctx context.Context, src []byte) (int, error) {
	tree, err := p.Tree(ctx, src)
	if err != nil {
		return 0, err
	}
	defer tree.Close()
	return countErrors(tree.RootNode()), nil
}

// CheckRewrite parses rewritten source and fails with ErrDiagnostics when it
// is syntactically worse than the original.
func (p *Parser) CheckRewrite(ctx context.Context, original *cast.TranslationUnit, rewritten []byte) error {
	n, err := p.ErrorCount(ctx, rewritten)
	if err != nil {
		return err
	}
	if n > original.SyntaxErrors {
		return fmt.Errorf("%w: %d syntax errors after rewrite, %d before", ErrDiagnostics, n, original.SyntaxErrors)
	}
	return nil
}

func countErrors(node *sitter.Node) int {
	if node == nil || !node.HasError() && !node.IsMissing() {
		return 0
	}
	count := 0
	if node.Type() == "ERROR" || node.IsMissing() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}

// C++ and Objective-C sources are recognised so they can be refused.
var foreignExtensions = map[string]string{
	".cc":  "c++",
	".cpp": "c++",
	".cxx": "c++",
	".c++": "c++",
	".C":   "c++",
	".ii":  "c++",
	".hh":  "c++",
	".hpp": "c++",
	".hxx": "c++",
	".m":   "objective-c",
	".mm":  "objective-c++",
}

// DetectLanguage returns the dialect of path and whether the detector
// supports it. A configured language wins over the extension.
func DetectLanguage(path, configured string) (string, bool) {
	if configured != "" {
		lang := strings.ToLower(strings.TrimSpace(configured))
		return lang, lang == LanguageC
	}
	if lang, ok := foreignExtensions[filepath.Ext(path)]; ok {
		return lang, false
	}
	return LanguageC, true
}
