package detector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
	"github.com/robert-at-pretension-io/exprdetect/internal/rewrite"
)

// reportFunc describes the function the instrumentation calls and the
// header that declares it.
type reportFunc struct {
	Name   string
	Header string
	Decl   string
}

var (
	printfFunc = reportFunc{Name: "printf", Header: "stdio.h", Decl: "int printf(const char *format, ...)"}
	abortFunc  = reportFunc{Name: "abort", Header: "stdlib.h", Decl: "void abort(void)"}
)

func (s *Session) reportFunc() reportFunc {
	if s.opts.Mode == ModeCheck {
		return abortFunc
	}
	return printfFunc
}

func (s *Session) controlPrefix() string {
	if s.opts.Mode == ModeCheck {
		return CheckedPrefix
	}
	return PrintedPrefix
}

// FormatSpec returns the printf conversion for a value of type t, or "" when
// t is not a scalar candidate type.
func FormatSpec(t *cast.Type) string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case cast.TypeBool, cast.TypeUChar, cast.TypeUShort, cast.TypeUInt:
		return "u"
	case cast.TypeChar, cast.TypeSChar, cast.TypeShort, cast.TypeInt, cast.TypeEnum:
		return "d"
	case cast.TypeLong:
		return "ld"
	case cast.TypeULong:
		return "lu"
	case cast.TypeLongLong:
		return "lld"
	case cast.TypeULongLong:
		return "llu"
	case cast.TypeFloat, cast.TypeDouble:
		return "f"
	case cast.TypeLongDouble:
		return "Lf"
	}
	return ""
}

// MaxSuffix returns the largest numeric suffix of fn's variables named
// prefix<N>, or -1 when there is none.
func MaxSuffix(fn *cast.Func, prefix string) int {
	maxN := -1
	if fn == nil {
		return maxN
	}
	for _, d := range fn.Locals {
		if !strings.HasPrefix(d.Name, prefix) {
			continue
		}
		n, err := strconv.Atoi(d.Name[len(prefix):])
		if err == nil && n > maxN {
			maxN = n
		}
	}
	return maxN
}

// anchor describes what is already visible before the insertion point.
type anchor struct {
	hasFunc   bool
	funcAt    int
	hasHeader bool
	headerAt  int
}

func (s *Session) anchorInfo(rf reportFunc) anchor {
	var a anchor
	for _, d := range s.tu.FuncDecls {
		if d.Name == rf.Name {
			a.hasFunc = true
			a.funcAt = d.Range.Start
			break
		}
	}
	for _, inc := range s.tu.Includes {
		if inc.InMain && inc.Path == rf.Header {
			a.hasHeader = true
			a.headerAt = inc.Range.Start
			break
		}
	}
	return a
}

// needsDecl reports whether neither the function declaration nor its header
// precede offset.
func (a anchor) needsDecl(offset int) bool {
	return (!a.hasFunc || offset < a.funcAt) && (!a.hasHeader || offset < a.headerAt)
}

// indentAt returns the whitespace that precedes offset on its line, or ""
// when other text precedes it.
func indentAt(src []byte, offset int) string {
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	prefix := string(src[start:offset])
	if strings.TrimLeft(prefix, " \t") != "" {
		return ""
	}
	return prefix
}

// emit plans the edits for the latched candidate.
func (s *Session) emit(set *rewrite.Set) error {
	c := s.latched
	e := c.Expr
	exprText := s.tu.Text(e.Range)

	if s.opts.Replacement != "" {
		return set.Replace(e.Range.Start, e.Range.End, exprText, s.opts.Replacement)
	}

	st := c.Stmt
	rf := s.reportFunc()
	if s.anchorInfo(rf).needsDecl(st.Range.Start) {
		if err := set.Insert(0, rf.Decl+";\n"); err != nil {
			return err
		}
	}

	tmp := TmpPrefix + strconv.Itoa(MaxSuffix(c.Func, TmpPrefix)+1)
	ctl := s.controlPrefix() + strconv.Itoa(MaxSuffix(c.Func, s.controlPrefix())+1)

	var report string
	if s.opts.Mode == ModeCheck {
		report = fmt.Sprintf("  if (%s != %s) %s();", tmp, strings.TrimSpace(s.opts.Reference), rf.Name)
	} else {
		report = fmt.Sprintf("  %s(\"%s(%%%s)\\n\", %s);", rf.Name, ValueTag, FormatSpec(e.Type), tmp)
	}
	lines := []string{
		fmt.Sprintf("%s %s = %s;", e.Type.Unqualified().Spelling(), tmp, exprText),
		fmt.Sprintf("static int %s = 0;", ctl),
		fmt.Sprintf("if (%s == %d) {", ctl, s.opts.FireInstance),
		report,
		"}",
		fmt.Sprintf("++%s;", ctl),
	}

	indent := indentAt(s.tu.Source, st.Range.Start)
	wrap := st.Kind != cast.StmtDecl

	// a wrapped statement moves one level into the new block
	inner := indent
	var b strings.Builder
	if wrap {
		inner += "  "
		b.WriteString("{\n")
		b.WriteString(inner)
	}
	b.WriteString(strings.Join(lines, "\n"+inner))
	b.WriteString("\n")
	b.WriteString(inner)

	if err := set.Insert(st.Range.Start, b.String()); err != nil {
		return err
	}

	replacement := tmp
	if wrap {
		replacement = "(" + tmp + ")"
	}
	if err := set.Replace(e.Range.Start, e.Range.End, exprText, replacement); err != nil {
		return err
	}

	if wrap {
		return set.Insert(st.Range.End, "\n"+indent+"}")
	}
	return nil
}
