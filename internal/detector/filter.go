package detector

import (
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

// reportFuncs are the functions generated code calls.
var reportFuncs = map[string]bool{
	"printf": true,
	"abort":  true,
}

func isReserved(name string) bool {
	return strings.HasPrefix(name, TmpPrefix) ||
		strings.HasPrefix(name, PrintedPrefix) ||
		strings.HasPrefix(name, CheckedPrefix)
}

func isControlVar(name string) bool {
	return strings.HasPrefix(name, PrintedPrefix) || strings.HasPrefix(name, CheckedPrefix)
}

func refersTo(e *cast.Expr, match func(string) bool) bool {
	e = e.IgnoreParenCasts()
	return e != nil && e.Kind == cast.ExprDeclRef && match(e.Name())
}

// isLiteral accepts numeric literals and their negations.
func isLiteral(e *cast.Expr) bool {
	e = e.IgnoreParenCasts()
	if e != nil && e.Kind == cast.ExprUnary && (e.Op == cast.OpMinus || e.Op == cast.OpPlus) {
		e = e.Sub(0).IgnoreParenCasts()
	}
	return e.IsNumericLiteral()
}

// isTmpGuard matches "__creduce_expr_tmp_N != literal".
func isTmpGuard(e *cast.Expr) bool {
	return e != nil && e.Kind == cast.ExprBinary && e.Op == "!=" &&
		refersTo(e.LHS(), func(n string) bool { return strings.HasPrefix(n, TmpPrefix) }) &&
		isLiteral(e.RHS())
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// candidateKind reports the expression kinds that may be captured.
func candidateKind(k cast.ExprKind) bool {
	switch k {
	case cast.ExprSubscript, cast.ExprBinary, cast.ExprCall,
		cast.ExprDeclRef, cast.ExprMember, cast.ExprUnary:
		return true
	}
	return false
}

// isValid applies the acceptance rules to e inside the current statement st.
// Rejections are silent.
func (s *Session) isValid(st *cast.Stmt, e *cast.Expr) bool {
	if !e.Type.IsScalarCandidate() || !candidateKind(e.Kind) {
		return false
	}

	// loop clauses and case labels
	if st.Kind.IsLoop() || st.Kind == cast.StmtCase {
		return false
	}

	// no self-replacement of an expression statement
	if st.Kind == cast.StmtExpr && st.X.IgnoreParenCasts() == e {
		return false
	}

	if st.Kind == cast.StmtDecl {
		d, single := st.SingleDecl()
		if !single {
			return false
		}
		if d != nil && isReserved(d.Name) {
			return false
		}
	}

	switch e.Kind {
	case cast.ExprUnary:
		// !__creduce_printed_N
		if e.Op == cast.OpLNot && refersTo(e.Sub(0), isControlVar) {
			return false
		}
		// the signed literal of a temporary guard
		if st.Kind == cast.StmtIf && isLiteral(e) {
			if cond := st.X.IgnoreParenCasts(); isTmpGuard(cond) && cond.RHS().IgnoreParenCasts() == e {
				return false
			}
		}
	case cast.ExprBinary:
		// __creduce_printed_N == K
		if isComparison(e.Op) && (refersTo(e.LHS(), isControlVar) || refersTo(e.RHS(), isControlVar)) {
			return false
		}
		// if (__creduce_expr_tmp_N != literal)
		if st.Kind == cast.StmtIf && isTmpGuard(e) {
			return false
		}
	case cast.ExprDeclRef:
		if isReserved(e.Name()) {
			return false
		}
		if isReportCall(st) {
			return false
		}
	}

	if s.invalidExprs(st)[e] {
		return false
	}

	for _, seen := range s.unique[st] {
		if Identical(seen, e) {
			return false
		}
	}
	s.unique[st] = append(s.unique[st], e)

	for _, d := range s.tmpVarsIn(st) {
		if init, ok := s.processed[d]; ok && Identical(init, e) {
			return false
		}
	}
	return true
}

// isReportCall reports an expression statement calling printf or abort.
func isReportCall(st *cast.Stmt) bool {
	if st.Kind != cast.StmtExpr {
		return false
	}
	call := st.X.IgnoreParenCasts()
	if call == nil || call.Kind != cast.ExprCall {
		return false
	}
	callee := call.Callee()
	return callee != nil && reportFuncs[callee.Name]
}

// invalidExprs returns, computing it on first use, the set of expressions in
// st that name storage being modified or whose address is taken.
func (s *Session) invalidExprs(st *cast.Stmt) map[*cast.Expr]bool {
	if set, ok := s.invalid[st]; ok {
		return set
	}
	set := make(map[*cast.Expr]bool)
	cast.InspectStmt(st, func(e *cast.Expr) bool {
		switch {
		case e.IsIncDec(), e.Kind == cast.ExprUnary && e.Op == cast.OpAddrOf:
			if x := e.Sub(0).IgnoreParens(); x != nil {
				set[x] = true
			}
		case e.IsAssignment():
			if x := e.LHS().IgnoreParens(); x != nil {
				set[x] = true
			}
		}
		return true
	})
	s.invalid[st] = set
	return set
}

// tmpVarsIn returns, computing it on first use, the capture temporaries
// referenced in st.
func (s *Session) tmpVarsIn(st *cast.Stmt) []*cast.Decl {
	if vars, ok := s.tmpVars[st]; ok {
		return vars
	}
	var vars []*cast.Decl
	cast.InspectStmt(st, func(e *cast.Expr) bool {
		if e.Kind == cast.ExprDeclRef && e.Decl != nil && e.Decl.Kind == cast.DeclVar &&
			strings.HasPrefix(e.Decl.Name, TmpPrefix) {
			vars = append(vars, e.Decl)
		}
		return true
	})
	s.tmpVars[st] = vars
	return vars
}
