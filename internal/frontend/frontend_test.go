package frontend

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sirkon/deepequal"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

func parse(t *testing.T, path, src string) *cast.TranslationUnit {
	t.Helper()
	tu, err := New().Parse(context.Background(), path, []byte(src), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tu.SyntaxErrors != 0 {
		t.Fatalf("unexpected syntax errors: %d", tu.SyntaxErrors)
	}
	return tu
}

// exprTypes maps the source text of every expression in fn to the spelling of
// its type. Later occurrences of the same text win.
func exprTypes(tu *cast.TranslationUnit, fn *cast.Func) map[string]string {
	out := make(map[string]string)
	cast.InspectStmt(fn.Body, func(e *cast.Expr) bool {
		out[tu.Text(e.Range)] = e.Type.Spelling()
		return true
	})
	return out
}

func TestParseDeclarationsAndTypes(t *testing.T) {
	src := `#include <stdio.h>
#include "local.h"
typedef unsigned long size_type;
struct P { int x; double y; };
enum E { A, B = 3 };
static const int k = 1;
int f(size_type n, struct P *p, ...);
int f(size_type n, struct P *p, ...) {
  unsigned char uc = 1;
  long long ll = n;
  float fl = 1.5f;
  enum E e = B;
  return p->x + uc + ll + fl + e + k;
}
`
	tu := parse(t, "types.c", src)

	if tu.Language != LanguageC || !tu.Supported {
		t.Fatalf("unexpected language %q supported=%v", tu.Language, tu.Supported)
	}

	wantIncludes := []cast.Include{
		{Path: "stdio.h", Angled: true, InMain: true},
		{Path: "local.h", Angled: false, InMain: true},
	}
	var gotIncludes []cast.Include
	for _, inc := range tu.Includes {
		inc.Range = cast.Range{}
		gotIncludes = append(gotIncludes, inc)
	}
	if !reflect.DeepEqual(wantIncludes, gotIncludes) {
		deepequal.SideBySide(t, "includes", wantIncludes, gotIncludes)
		t.FailNow()
	}

	if len(tu.FuncDecls) != 1 || tu.FuncDecls[0].Name != "f" {
		t.Fatalf("expected one declaration of f, got %d", len(tu.FuncDecls))
	}
	ft := tu.FuncDecls[0].Type
	if ft.Kind != cast.TypeFunction || !ft.Variadic || len(ft.Params) != 2 {
		t.Fatalf("unexpected function type %+v", ft)
	}
	if ft.Params[0].Spelling() != "size_type" || ft.Params[1].Spelling() != "struct P *" {
		t.Fatalf("unexpected params %s, %s", ft.Params[0], ft.Params[1])
	}

	if len(tu.Funcs) != 1 {
		t.Fatalf("expected one function, got %d", len(tu.Funcs))
	}
	fn := tu.Funcs[0]
	if fn.Decl != tu.FuncDecls[0] {
		t.Fatalf("definition does not share the earlier declaration")
	}

	var locals []string
	for _, d := range fn.Locals {
		locals = append(locals, d.Name+":"+d.Type.Spelling())
	}
	wantLocals := []string{"uc:unsigned char", "ll:long long", "fl:float", "e:enum E"}
	if !reflect.DeepEqual(wantLocals, locals) {
		deepequal.SideBySide(t, "locals", wantLocals, locals)
		t.FailNow()
	}

	types := exprTypes(tu, fn)
	for text, want := range map[string]string{
		"p->x":                        "int",
		"p->x + uc":                   "int",
		"p->x + uc + ll":              "long long",
		"p->x + uc + ll + fl":         "float",
		"p->x + uc + ll + fl + e + k": "float",
		"n":                           "size_type",
		"B":                           "int",
		"k":                           "const int",
	} {
		if got := types[text]; got != want {
			t.Fatalf("type of %q = %q, want %q", text, got, want)
		}
	}
}

func TestParseExpressionShapes(t *testing.T) {
	src := `volatile int v;
int g(int *a, int i) {
  int x = 0;
  x += a[i];
  x = i++ + --i;
  x = (long)i;
  x = undeclared(i);
  return v;
}
`
	tu := parse(t, "shapes.c", src)
	fn := tu.Funcs[0]

	byText := make(map[string]*cast.Expr)
	cast.InspectStmt(fn.Body, func(e *cast.Expr) bool {
		byText[tu.Text(e.Range)] = e
		return true
	})

	if e := byText["x += a[i]"]; e == nil || e.Kind != cast.ExprCompoundAssign || e.Op != "+=" {
		t.Fatalf("compound assignment not lowered: %+v", e)
	}
	if e := byText["i++"]; e == nil || e.Op != cast.OpPostInc || !e.HasSideEffects() {
		t.Fatalf("post increment not lowered: %+v", e)
	}
	if e := byText["--i"]; e == nil || e.Op != cast.OpPreDec {
		t.Fatalf("pre decrement not lowered: %+v", e)
	}
	if e := byText["(long)i"]; e == nil || e.Kind != cast.ExprCast || e.TypeText != "long" || e.Type.Kind != cast.TypeLong {
		t.Fatalf("cast not lowered: %+v", e)
	}
	if e := byText["undeclared(i)"]; e == nil || e.Type.Kind != cast.TypeUnknown {
		t.Fatalf("call to undeclared function must have unknown type: %+v", e)
	}
	if e := byText["undeclared"]; e == nil || e.Decl.Kind != cast.DeclImplicit {
		t.Fatalf("undeclared callee must resolve to an implicit declaration")
	}
	if e := byText["v"]; e == nil || !e.HasSideEffects() {
		t.Fatalf("volatile read must have side effects")
	}
	if e := byText["a[i]"]; e == nil || e.HasSideEffects() || e.Type.Kind != cast.TypeInt {
		t.Fatalf("plain subscript: %+v", e)
	}

	// both references to x resolve to the same declaration
	var decls []*cast.Decl
	cast.InspectStmt(fn.Body, func(e *cast.Expr) bool {
		if e.Kind == cast.ExprDeclRef && e.Decl.Name == "x" {
			decls = append(decls, e.Decl)
		}
		return true
	})
	if len(decls) < 2 || decls[0] != decls[len(decls)-1] || decls[0] != fn.Locals[0] {
		t.Fatalf("references to x do not share a declaration")
	}
}

func TestParseStatements(t *testing.T) {
	src := `int h(int n) {
  int s = 0;
  for (int i = 0; i < n; i++) s += i;
  switch (n) {
  case 1:
    s = 1;
    break;
  default:
    s = 2;
  }
  if (s) goto out; else s = 3;
out:
  return s;
}
`
	tu := parse(t, "stmts.c", src)
	body := tu.Funcs[0].Body

	var kinds []string
	for _, st := range body.List {
		kinds = append(kinds, st.Kind.String())
	}
	want := []string{"decl", "for", "switch", "if", "label"}
	if !reflect.DeepEqual(want, kinds) {
		deepequal.SideBySide(t, "statements", want, kinds)
		t.FailNow()
	}

	loop := body.List[1]
	if loop.Init == nil || loop.Init.Kind != cast.StmtDecl || loop.X == nil || loop.Inc == nil {
		t.Fatalf("for clauses not lowered: %+v", loop)
	}

	sw := body.List[2].Body
	if len(sw.List) != 2 || sw.List[0].Kind != cast.StmtCase || sw.List[1].Kind != cast.StmtDefault {
		t.Fatalf("switch body not lowered")
	}
	if len(sw.List[0].List) != 2 || sw.List[0].X == nil {
		t.Fatalf("case statements not collected")
	}

	ifs := body.List[3]
	if ifs.Then.Kind != cast.StmtGoto || ifs.Else == nil || ifs.Else.Kind != cast.StmtExpr {
		t.Fatalf("if branches not lowered")
	}

	label := body.List[4]
	if label.Label != "out" || label.Body == nil || label.Body.Kind != cast.StmtReturn {
		t.Fatalf("label not lowered: %+v", label)
	}
}

func TestGroupDeclarationCountsTagDefinitions(t *testing.T) {
	src := `void f(void) {
  struct Q { int a; } q;
  int x, y;
  int z;
}
`
	tu := parse(t, "group.c", src)
	list := tu.Funcs[0].Body.List
	groups := []int{list[0].Group, list[1].Group, list[2].Group}
	if !reflect.DeepEqual([]int{2, 2, 1}, groups) {
		t.Fatalf("unexpected group sizes %v", groups)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path, configured string
		lang             string
		supported        bool
	}{
		{"a.c", "", "c", true},
		{"a.i", "", "c", true},
		{"a.cpp", "", "c++", false},
		{"a.mm", "", "objective-c++", false},
		{"a.cpp", "C", "c", true},
		{"a.c", "c++", "c++", false},
	}
	for _, tt := range tests {
		lang, ok := DetectLanguage(tt.path, tt.configured)
		if lang != tt.lang || ok != tt.supported {
			t.Fatalf("DetectLanguage(%q, %q) = %q/%v, want %q/%v", tt.path, tt.configured, lang, ok, tt.lang, tt.supported)
		}
	}
}

func TestCheckRewrite(t *testing.T) {
	p := New()
	tu := parse(t, "ok.c", "int f(int a) { return a; }\n")

	if err := p.CheckRewrite(context.Background(), tu, []byte("int f(int a) { { int t = a; return (t); } }\n")); err != nil {
		t.Fatalf("valid rewrite rejected: %v", err)
	}
	err := p.CheckRewrite(context.Background(), tu, []byte("int f(int a) { return (a; }\n"))
	if !errors.Is(err, ErrDiagnostics) {
		t.Fatalf("expected ErrDiagnostics, got %v", err)
	}

	n, err := p.ErrorCount(context.Background(), []byte("int x = ;\n"))
	if err != nil || n == 0 {
		t.Fatalf("expected syntax errors, got %d (%v)", n, err)
	}
}

func TestIncludedRegionsMarked(t *testing.T) {
	src := strings.Join([]string{
		`#line 1 "main.c"`,
		`#line 1 "helper.h"`,
		`#include <stdio.h>`,
		`int helper(int q) { return q; }`,
		`#line 2 "main.c"`,
		`int main(void) { return helper(1); }`,
		``,
	}, "\n")
	tu := parse(t, "main.c", src)
	if len(tu.Funcs) != 2 || tu.Funcs[0].InMain || !tu.Funcs[1].InMain {
		t.Fatalf("unexpected main-file flags")
	}
	if len(tu.Includes) != 1 || tu.Includes[0].InMain {
		t.Fatalf("include inside header must not count as main file")
	}
}

func TestConditionalGroupsLowerActiveArm(t *testing.T) {
	body := func(pre, group string) string {
		return pre + "int f(int s) {\n  int k = 0;\n" + group + "  return k;\n}\n"
	}
	const (
		fast = "  k = s * 2;\n"
		slow = "  k = s * 3;\n"
	)
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"ifdef_undefined", body("", "#ifdef FAST\n"+fast+"#else\n"+slow+"#endif\n"), []string{"s * 3"}},
		{"ifdef_defined", body("#define FAST\n", "#ifdef FAST\n"+fast+"#else\n"+slow+"#endif\n"), []string{"s * 2"}},
		{"ifndef", body("", "#ifndef FAST\n"+slow+"#endif\n"), []string{"s * 3"}},
		{"if_zero", body("", "#if 0\n"+fast+"#endif\n"), nil},
		{"elif_chain", body("#define LEVEL 2\n", "#if LEVEL == 1\n"+fast+"#elif LEVEL > 1 && !defined(FAST)\n"+slow+"#else\n  k = s * 4;\n#endif\n"), []string{"s * 3"}},
		{"undef", body("#define FAST 1\n#undef FAST\n", "#if defined FAST\n"+fast+"#else\n"+slow+"#endif\n"), []string{"s * 3"}},
		{"unknown_takes_first_arm", body("", "#if HAVE(FAST)\n"+fast+"#else\n"+slow+"#endif\n"), []string{"s * 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := parse(t, "cond.c", tt.src)
			if len(tu.Funcs) != 1 {
				t.Fatalf("expected one function, got %d", len(tu.Funcs))
			}
			var got []string
			for text := range exprTypes(tu, tu.Funcs[0]) {
				if strings.HasPrefix(text, "s * ") {
					got = append(got, text)
				}
			}
			if !reflect.DeepEqual(tt.want, got) {
				deepequal.SideBySide(t, "products", tt.want, got)
				t.FailNow()
			}
		})
	}
}

func TestDeadArmDeclarationsIgnored(t *testing.T) {
	src := `#if 0
int printf(const char *fmt, ...);
int unused(void) { return 1; }
#endif
int main(void) { return 0; }
`
	tu := parse(t, "dead.c", src)
	if len(tu.Funcs) != 1 || tu.Funcs[0].Name != "main" {
		t.Fatalf("dead function lowered: %d functions", len(tu.Funcs))
	}
	for _, d := range tu.FuncDecls {
		if d.Name == "printf" {
			t.Fatalf("printf declared in a dead arm")
		}
	}
}
