package detector

import "github.com/robert-at-pretension-io/exprdetect/internal/cast"

// Identical reports whether a and b are structurally the same expression.
// Parentheses are ignored. An expression with side effects is never
// identical to anything, itself included.
func Identical(a, b *cast.Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	a, b = a.IgnoreParens(), b.IgnoreParens()
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.HasSideEffects() || b.HasSideEffects() {
		return false
	}
	if a == b {
		return true
	}

	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Identical(a.Children[i], b.Children[i]) {
			return false
		}
	}

	switch a.Kind {
	case cast.ExprSubscript, cast.ExprCall:
		return true
	case cast.ExprCast:
		return a.TypeText == b.TypeText
	case cast.ExprMember:
		if a.Field == nil || b.Field == nil {
			return a.Field == nil && b.Field == nil && a.FieldName == b.FieldName
		}
		return a.Field == b.Field
	case cast.ExprDeclRef:
		return a.Decl == b.Decl
	case cast.ExprBinary, cast.ExprCompoundAssign, cast.ExprUnary:
		return a.Op == b.Op
	case cast.ExprCharLit:
		return a.Lit.Char == b.Lit.Char
	case cast.ExprStringLit:
		return a.Lit.Bytes == b.Lit.Bytes
	case cast.ExprIntLit:
		return a.Lit.Valid && b.Lit.Valid && a.Lit.Bits == b.Lit.Bits && a.Lit.Int == b.Lit.Int
	case cast.ExprFloatLit:
		return a.Lit.Valid && b.Lit.Valid && a.Lit.Bits == b.Lit.Bits && a.Lit.Float == b.Lit.Float
	}
	return false
}
