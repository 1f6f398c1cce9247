package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

func (b *builder) resolve(name string) *cast.Decl {
	if d := b.cur.lookup(name); d != nil {
		return d
	}
	if d, ok := b.implicit[name]; ok {
		return d
	}
	d := &cast.Decl{Kind: cast.DeclImplicit, Name: name, Type: cast.Unknown()}
	b.implicit[name] = d
	return d
}

func (b *builder) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	return ""
}

// expr lowers an expression node and computes its static type.
func (b *builder) expr(n *sitter.Node) *cast.Expr {
	if n == nil {
		return nil
	}
	e := &cast.Expr{Range: b.rng(n), Type: cast.Unknown()}

	switch n.Type() {
	case "identifier":
		d := b.resolve(b.text(n))
		e.Kind = cast.ExprDeclRef
		e.Decl = d
		if d.Type != nil {
			e.Type = d.Type
		}
		if d.Kind == cast.DeclTypedef {
			e.Kind = cast.ExprOther
		}
		e.Effects = e.Type.Volatile

	case "number_literal":
		text := b.text(n)
		if len(text) > 1 && (text[0] == '-' || text[0] == '+') {
			sign := text[:1]
			// the grammar folds a leading sign into the token; C applies
			// it as a unary operator to the unsigned literal
			lit := numberLiteral(text[1:], cast.Range{
				Start:  e.Range.Start + 1,
				End:    e.Range.End,
				Line:   e.Range.Line,
				Column: e.Range.Column + 1,
			})
			e.Kind = cast.ExprUnary
			e.Op = sign
			e.Children = []*cast.Expr{lit}
			e.Type = unaryType(e.Op, lit.Type)
			break
		}
		lit := numberLiteral(text, e.Range)
		e.Kind, e.Lit, e.Type = lit.Kind, lit.Lit, lit.Type

	case "char_literal":
		e.Kind = cast.ExprCharLit
		e.Lit.Char = charValue(b.text(n))
		e.Type = cast.Builtin(cast.TypeInt)

	case "string_literal":
		e.Kind = cast.ExprStringLit
		e.Lit.Bytes = unquote(b.text(n))
		e.Type = cast.ArrayOf(cast.Builtin(cast.TypeChar))

	case "concatenated_string":
		var sb strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "string_literal" {
				sb.WriteString(unquote(b.text(c)))
			}
		}
		e.Kind = cast.ExprStringLit
		e.Lit.Bytes = sb.String()
		e.Type = cast.ArrayOf(cast.Builtin(cast.TypeChar))

	case "true", "false":
		e.Kind = cast.ExprIntLit
		e.Type = cast.Builtin(cast.TypeInt)
		e.Lit = cast.Literal{Bits: 32, Valid: true}
		if n.Type() == "true" {
			e.Lit.Int = 1
		}

	case "null":
		e.Kind = cast.ExprOther
		e.Type = cast.PointerTo(cast.Builtin(cast.TypeVoid))

	case "parenthesized_expression":
		inner := b.expr(firstNamed(n))
		e.Kind = cast.ExprParen
		e.Children = []*cast.Expr{inner}
		if inner != nil {
			e.Type = inner.Type
		}

	case "binary_expression":
		l := b.expr(n.ChildByFieldName("left"))
		r := b.expr(n.ChildByFieldName("right"))
		e.Kind = cast.ExprBinary
		e.Op = b.operator(n)
		e.Children = []*cast.Expr{l, r}
		e.Type = binaryType(e.Op, typeOf(l), typeOf(r))

	case "comma_expression":
		l := b.expr(n.ChildByFieldName("left"))
		r := b.expr(n.ChildByFieldName("right"))
		e.Kind = cast.ExprBinary
		e.Op = ","
		e.Children = []*cast.Expr{l, r}
		e.Type = decay(typeOf(r))

	case "assignment_expression":
		l := b.expr(n.ChildByFieldName("left"))
		r := b.expr(n.ChildByFieldName("right"))
		e.Op = b.operator(n)
		e.Kind = cast.ExprCompoundAssign
		if e.Op == "=" {
			e.Kind = cast.ExprBinary
		}
		e.Children = []*cast.Expr{l, r}
		e.Type = typeOf(l).Unqualified()
		e.Effects = true

	case "unary_expression":
		x := b.expr(n.ChildByFieldName("argument"))
		e.Kind = cast.ExprUnary
		e.Op = b.operator(n)
		e.Children = []*cast.Expr{x}
		e.Type = unaryType(e.Op, typeOf(x))

	case "pointer_expression":
		x := b.expr(n.ChildByFieldName("argument"))
		e.Kind = cast.ExprUnary
		e.Children = []*cast.Expr{x}
		if b.operator(n) == "&" {
			e.Op = cast.OpAddrOf
			e.Type = cast.PointerTo(typeOf(x))
		} else {
			e.Op = cast.OpDeref
			t := typeOf(x)
			if t.Kind == cast.TypeFunction {
				e.Type = t
			} else {
				e.Type = t.Pointee()
			}
			e.Effects = e.Type.Volatile
		}

	case "update_expression":
		arg := n.ChildByFieldName("argument")
		op := n.ChildByFieldName("operator")
		x := b.expr(arg)
		e.Kind = cast.ExprUnary
		e.Children = []*cast.Expr{x}
		e.Type = typeOf(x).Unqualified()
		e.Effects = true
		prefix := op != nil && arg != nil && op.StartByte() < arg.StartByte()
		inc := op != nil && op.Type() == "++"
		switch {
		case prefix && inc:
			e.Op = cast.OpPreInc
		case prefix:
			e.Op = cast.OpPreDec
		case inc:
			e.Op = cast.OpPostInc
		default:
			e.Op = cast.OpPostDec
		}

	case "conditional_expression":
		cond := b.expr(n.ChildByFieldName("condition"))
		then := b.expr(n.ChildByFieldName("consequence"))
		els := b.expr(n.ChildByFieldName("alternative"))
		e.Kind = cast.ExprConditional
		e.Children = []*cast.Expr{cond, then, els}
		if then == nil {
			then = cond
		}
		e.Type = conditionalType(typeOf(then), typeOf(els))

	case "call_expression":
		callee := b.expr(n.ChildByFieldName("function"))
		e.Kind = cast.ExprCall
		e.Children = []*cast.Expr{callee}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				if a := args.NamedChild(i); a.Type() != "comment" {
					e.Children = append(e.Children, b.expr(a))
				}
			}
		}
		e.Type = returnType(callee)
		e.Effects = true

	case "subscript_expression":
		base := b.expr(n.ChildByFieldName("argument"))
		idxNode := n.ChildByFieldName("index")
		if idxNode == nil {
			idxNode = firstNamed(n.ChildByFieldName("indices"))
		}
		idx := b.expr(idxNode)
		e.Kind = cast.ExprSubscript
		e.Children = []*cast.Expr{base, idx}
		switch bt, it := typeOf(base), typeOf(idx); {
		case bt.IsPointer():
			e.Type = bt.Pointee()
		case it.IsPointer():
			e.Type = it.Pointee()
		}
		e.Effects = e.Type.Volatile

	case "field_expression":
		base := b.expr(n.ChildByFieldName("argument"))
		e.Kind = cast.ExprMember
		e.Children = []*cast.Expr{base}
		e.FieldName = b.text(n.ChildByFieldName("field"))
		e.Arrow = b.operator(n) == "->"
		rt := typeOf(base)
		if e.Arrow {
			rt = rt.Pointee()
		}
		if rt.Kind == cast.TypeRecord {
			if f := rt.Record.Lookup(e.FieldName); f != nil {
				e.Field = f
				e.Type = f.Type
				if rt.Volatile && !e.Type.Volatile {
					v := *e.Type
					v.Volatile = true
					e.Type = &v
				}
			}
		}
		e.Effects = e.Type.Volatile

	case "cast_expression":
		t, text := b.typeName(n.ChildByFieldName("type"))
		x := b.expr(n.ChildByFieldName("value"))
		e.Kind = cast.ExprCast
		e.TypeText = text
		e.Type = t
		e.Children = []*cast.Expr{x}

	case "sizeof_expression", "alignof_expression":
		e.Kind = cast.ExprSizeof
		e.Type = cast.Builtin(cast.TypeULong)
		if td := n.ChildByFieldName("type"); td != nil {
			_, e.TypeText = b.typeName(td)
		} else if v := n.ChildByFieldName("value"); v != nil {
			e.Children = []*cast.Expr{b.expr(v)}
		}

	case "offsetof_expression":
		e.Kind = cast.ExprOther
		e.Type = cast.Builtin(cast.TypeULong)

	case "compound_literal_expression":
		t, text := b.typeName(n.ChildByFieldName("type"))
		e.Kind = cast.ExprCompoundLiteral
		e.TypeText = text
		e.Type = t
		e.Children = []*cast.Expr{b.expr(n.ChildByFieldName("value"))}

	case "initializer_list":
		e.Kind = cast.ExprInitList
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "comment" {
				e.Children = append(e.Children, b.expr(c))
			}
		}

	case "initializer_pair":
		return b.expr(n.ChildByFieldName("value"))

	default:
		// asm, _Generic, statement expressions and anything unrecognised
		e.Kind = cast.ExprOther
		e.Effects = true
	}
	return e
}

func typeOf(e *cast.Expr) *cast.Type {
	if e == nil || e.Type == nil {
		return cast.Unknown()
	}
	return e.Type
}

// decay converts arrays and functions to pointers and drops qualifiers.
func decay(t *cast.Type) *cast.Type {
	if t == nil {
		return cast.Unknown()
	}
	switch t.Kind {
	case cast.TypeArray:
		return cast.PointerTo(t.Pointee())
	case cast.TypeFunction:
		return cast.PointerTo(t)
	}
	return t.Unqualified()
}

func returnType(callee *cast.Expr) *cast.Type {
	if callee == nil {
		return cast.Unknown()
	}
	if d := callee.IgnoreParenCasts(); d != nil && d.Kind == cast.ExprDeclRef && d.Decl.Kind == cast.DeclImplicit {
		return cast.Unknown()
	}
	t := typeOf(callee)
	if t.Kind == cast.TypePointer && t.Elem != nil {
		t = t.Elem
	}
	if t.Kind != cast.TypeFunction || t.Elem == nil {
		return cast.Unknown()
	}
	return t.Elem.Unqualified()
}

// promote applies the integer promotions.
func promote(t *cast.Type) *cast.Type {
	if t.Kind == cast.TypeEnum || (t.IsInteger() && t.Kind < cast.TypeInt) {
		return cast.Builtin(cast.TypeInt)
	}
	return t.Unqualified().Desugared()
}

func rank(k cast.TypeKind) int {
	switch k {
	case cast.TypeLong, cast.TypeULong:
		return 4
	case cast.TypeLongLong, cast.TypeULongLong:
		return 5
	}
	return 3
}

func unsignedOf(k cast.TypeKind) cast.TypeKind {
	switch k {
	case cast.TypeInt:
		return cast.TypeUInt
	case cast.TypeLong:
		return cast.TypeULong
	case cast.TypeLongLong:
		return cast.TypeULongLong
	}
	return k
}

// usual applies the usual arithmetic conversions on an LP64 target.
func usual(a, b *cast.Type) *cast.Type {
	for _, k := range []cast.TypeKind{cast.TypeLongDouble, cast.TypeDouble, cast.TypeFloat} {
		if a.Kind == k || b.Kind == k {
			return cast.Builtin(k)
		}
	}
	pa, pb := promote(a), promote(b)
	if pa.Kind == pb.Kind {
		return cast.Builtin(pa.Kind)
	}
	if pa.IsUnsigned() == pb.IsUnsigned() {
		if rank(pa.Kind) >= rank(pb.Kind) {
			return cast.Builtin(pa.Kind)
		}
		return cast.Builtin(pb.Kind)
	}
	u, s := pa, pb
	if !u.IsUnsigned() {
		u, s = pb, pa
	}
	switch {
	case rank(u.Kind) >= rank(s.Kind):
		return cast.Builtin(u.Kind)
	case s.Bits() > u.Bits():
		return cast.Builtin(s.Kind)
	}
	return cast.Builtin(unsignedOf(s.Kind))
}

func binaryType(op string, l, r *cast.Type) *cast.Type {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return cast.Builtin(cast.TypeInt)
	case "<<", ">>":
		if l.IsInteger() && r.IsInteger() {
			return promote(l)
		}
		return cast.Unknown()
	case "+":
		if l.IsPointer() && r.IsInteger() {
			return decay(l)
		}
		if l.IsInteger() && r.IsPointer() {
			return decay(r)
		}
	case "-":
		if l.IsPointer() && r.IsPointer() {
			return cast.Builtin(cast.TypeLong)
		}
		if l.IsPointer() && r.IsInteger() {
			return decay(l)
		}
	case "%", "&", "|", "^":
		if !l.IsInteger() || !r.IsInteger() {
			return cast.Unknown()
		}
	}
	if l.IsArithmetic() && r.IsArithmetic() {
		return usual(l, r)
	}
	return cast.Unknown()
}

func numberLiteral(text string, r cast.Range) *cast.Expr {
	e := &cast.Expr{Range: r}
	if isFloatSpelling(text) {
		e.Kind = cast.ExprFloatLit
		e.Lit, e.Type = floatLiteral(text)
	} else {
		e.Kind = cast.ExprIntLit
		e.Lit, e.Type = intLiteral(text)
	}
	return e
}

func unaryType(op string, t *cast.Type) *cast.Type {
	switch op {
	case cast.OpLNot:
		return cast.Builtin(cast.TypeInt)
	case cast.OpNot:
		if t.IsInteger() {
			return promote(t)
		}
	case cast.OpMinus, cast.OpPlus:
		if t.IsArithmetic() {
			return promote(t)
		}
	}
	return cast.Unknown()
}

func conditionalType(a, b *cast.Type) *cast.Type {
	if a.IsArithmetic() && b.IsArithmetic() {
		return usual(a, b)
	}
	if a.Kind != cast.TypeUnknown {
		return decay(a)
	}
	return decay(b)
}
