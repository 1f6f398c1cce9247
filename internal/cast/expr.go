// Package cast is the typed C syntax tree the expression detector works on.
//
// The front end (internal/frontend) produces it; everything else only reads
// it. Expressions are a closed tagged variant: one struct whose Kind selects
// which payload fields are meaningful.
package cast

// ExprKind is the syntactic class of an expression.
type ExprKind int

const (
	ExprOther ExprKind = iota
	ExprDeclRef
	ExprIntLit
	ExprFloatLit
	ExprCharLit
	ExprStringLit
	ExprParen
	ExprCast
	ExprUnary
	ExprBinary
	ExprCompoundAssign
	ExprSubscript
	ExprMember
	ExprCall
	ExprConditional
	ExprSizeof
	ExprInitList
	ExprCompoundLiteral
)

var exprKindNames = [...]string{
	ExprOther:           "other",
	ExprDeclRef:         "decl-ref",
	ExprIntLit:          "integer-literal",
	ExprFloatLit:        "floating-literal",
	ExprCharLit:         "char-literal",
	ExprStringLit:       "string-literal",
	ExprParen:           "paren",
	ExprCast:            "cast",
	ExprUnary:           "unary",
	ExprBinary:          "binary",
	ExprCompoundAssign:  "compound-assign",
	ExprSubscript:       "subscript",
	ExprMember:          "member",
	ExprCall:            "call",
	ExprConditional:     "conditional",
	ExprSizeof:          "sizeof",
	ExprInitList:        "init-list",
	ExprCompoundLiteral: "compound-literal",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "invalid"
}

// Unary operator codes. Increment and decrement carry their fixity.
const (
	OpPreInc  = "pre++"
	OpPreDec  = "pre--"
	OpPostInc = "post++"
	OpPostDec = "post--"
	OpAddrOf  = "&"
	OpDeref   = "*"
	OpLNot    = "!"
	OpNot     = "~"
	OpMinus   = "-"
	OpPlus    = "+"
)

// Range is a half-open byte range into the translation unit source plus the
// 1-based line and column of its start.
type Range struct {
	Start  int
	End    int
	Line   int
	Column int
}

// Literal is the payload of literal expressions.
type Literal struct {
	// Int and Bits describe integer literals; Valid is false when the
	// spelling could not be evaluated.
	Int   uint64
	Bits  int
	Valid bool

	// Float holds the IEEE bits of a floating literal converted to its type.
	Float uint64

	// Char is the value of a character literal.
	Char int64

	// Bytes is the decoded content of a string literal.
	Bytes string
}

// Expr is one expression node.
type Expr struct {
	Kind ExprKind

	// Op is the operator spelling for unary, binary and compound-assign
	// expressions (unary increments use the Op* fixity codes).
	Op string

	Type *Type

	// Decl is the referenced declaration of a decl-ref.
	Decl *Decl

	// Field is the resolved member of a member access; FieldName is always set.
	Field     *Field
	FieldName string
	Arrow     bool

	// TypeText is the written type of casts, compound literals and sizeof(type).
	TypeText string

	Lit Literal

	Children []*Expr
	Range    Range

	// Effects marks an expression that has side effects of its own,
	// independent of its children.
	Effects bool

	effectsDone bool
	effectsAll  bool
}

// HasSideEffects reports whether evaluating e has observable side effects.
func (e *Expr) HasSideEffects() bool {
	if e == nil {
		return false
	}
	if e.effectsDone {
		return e.effectsAll
	}
	all := e.Effects
	for _, c := range e.Children {
		if all {
			break
		}
		all = c.HasSideEffects()
	}
	e.effectsDone = true
	e.effectsAll = all
	return all
}

// IgnoreParens strips parenthesized expressions.
func (e *Expr) IgnoreParens() *Expr {
	for e != nil && e.Kind == ExprParen && len(e.Children) == 1 {
		e = e.Children[0]
	}
	return e
}

// IgnoreParenCasts strips parentheses and explicit casts.
func (e *Expr) IgnoreParenCasts() *Expr {
	for e != nil && (e.Kind == ExprParen || e.Kind == ExprCast) && len(e.Children) == 1 {
		e = e.Children[0]
	}
	return e
}

// Sub returns the i-th child or nil.
func (e *Expr) Sub(i int) *Expr {
	if e == nil || i < 0 || i >= len(e.Children) {
		return nil
	}
	return e.Children[i]
}

// LHS is the left operand of a binary or compound-assign expression.
func (e *Expr) LHS() *Expr { return e.Sub(0) }

// RHS is the right operand of a binary or compound-assign expression.
func (e *Expr) RHS() *Expr { return e.Sub(1) }

// IsIncDec reports a ++ or -- of either fixity.
func (e *Expr) IsIncDec() bool {
	if e == nil || e.Kind != ExprUnary {
		return false
	}
	switch e.Op {
	case OpPreInc, OpPreDec, OpPostInc, OpPostDec:
		return true
	}
	return false
}

// IsAssignment reports simple and compound assignments.
func (e *Expr) IsAssignment() bool {
	if e == nil {
		return false
	}
	return e.Kind == ExprCompoundAssign || (e.Kind == ExprBinary && e.Op == "=")
}

// IsNumericLiteral reports integer and floating literals.
func (e *Expr) IsNumericLiteral() bool {
	return e != nil && (e.Kind == ExprIntLit || e.Kind == ExprFloatLit)
}

// Name returns the referenced name of a decl-ref, or "".
func (e *Expr) Name() string {
	if e == nil || e.Kind != ExprDeclRef || e.Decl == nil {
		return ""
	}
	return e.Decl.Name
}

// Callee returns the called declaration of a direct call, or nil.
func (e *Expr) Callee() *Decl {
	if e == nil || e.Kind != ExprCall {
		return nil
	}
	fn := e.Sub(0).IgnoreParenCasts()
	if fn == nil || fn.Kind != ExprDeclRef {
		return nil
	}
	return fn.Decl
}
