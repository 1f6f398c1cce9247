package detector

import (
	"testing"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

func ref(d *cast.Decl) *cast.Expr {
	return &cast.Expr{Kind: cast.ExprDeclRef, Decl: d, Type: d.Type}
}

func intLit(v uint64) *cast.Expr {
	return &cast.Expr{Kind: cast.ExprIntLit, Lit: cast.Literal{Int: v, Bits: 32, Valid: true}, Type: cast.Builtin(cast.TypeInt)}
}

func bin(op string, l, r *cast.Expr) *cast.Expr {
	return &cast.Expr{Kind: cast.ExprBinary, Op: op, Children: []*cast.Expr{l, r}, Type: cast.Builtin(cast.TypeInt)}
}

func paren(e *cast.Expr) *cast.Expr {
	return &cast.Expr{Kind: cast.ExprParen, Children: []*cast.Expr{e}, Type: e.Type}
}

func TestIdentical(t *testing.T) {
	x := &cast.Decl{Kind: cast.DeclVar, Name: "x", Type: cast.Builtin(cast.TypeInt)}
	y := &cast.Decl{Kind: cast.DeclVar, Name: "y", Type: cast.Builtin(cast.TypeInt)}
	call := &cast.Expr{Kind: cast.ExprCall, Effects: true, Children: []*cast.Expr{ref(y)}, Type: cast.Builtin(cast.TypeInt)}
	cast32 := func(text string, e *cast.Expr) *cast.Expr {
		return &cast.Expr{Kind: cast.ExprCast, TypeText: text, Children: []*cast.Expr{e}, Type: cast.Builtin(cast.TypeLong)}
	}

	cases := []struct {
		name string
		a, b *cast.Expr
		want bool
	}{
		{"same decl", ref(x), ref(x), true},
		{"different decl", ref(x), ref(y), false},
		{"parens ignored", paren(bin("+", ref(x), intLit(1))), bin("+", ref(x), paren(intLit(1))), true},
		{"operator differs", bin("+", ref(x), intLit(1)), bin("-", ref(x), intLit(1)), false},
		{"literal differs", bin("+", ref(x), intLit(1)), bin("+", ref(x), intLit(2)), false},
		{"invalid literal", &cast.Expr{Kind: cast.ExprIntLit}, &cast.Expr{Kind: cast.ExprIntLit}, false},
		{"operand order", bin("+", ref(x), ref(y)), bin("+", ref(y), ref(x)), false},
		{"explicit cast kept", cast32("long", ref(x)), ref(x), false},
		{"cast type text", cast32("long", ref(x)), cast32("long", ref(x)), true},
		{"side effects", call, call, false},
		{"nested side effects", bin("+", call, intLit(1)), bin("+", call, intLit(1)), false},
		{"nil pair", nil, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Identical(tc.a, tc.b); got != tc.want {
				t.Fatalf("Identical = %v, want %v", got, tc.want)
			}
			if got := Identical(tc.b, tc.a); got != tc.want {
				t.Fatalf("Identical (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIdenticalReflexive(t *testing.T) {
	x := &cast.Decl{Kind: cast.DeclVar, Name: "x", Type: cast.Builtin(cast.TypeInt)}
	e := bin("*", paren(bin("+", ref(x), intLit(3))), ref(x))
	if !Identical(e, e) {
		t.Fatalf("expression without side effects must be identical to itself")
	}
}
