package cast

// InspectExpr visits e and its children in pre-order. Children are skipped
// when fn returns false.
func InspectExpr(e *Expr, fn func(*Expr) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		InspectExpr(c, fn)
	}
}

// InspectStmt visits every expression inside s, including the expressions of
// nested statements and declaration initializers, in source order.
func InspectStmt(s *Stmt, fn func(*Expr) bool) {
	if s == nil {
		return
	}
	switch s.Kind {
	case StmtDecl:
		for _, d := range s.Decls {
			InspectExpr(d.Init, fn)
		}
	case StmtFor:
		InspectStmt(s.Init, fn)
		InspectExpr(s.X, fn)
		InspectExpr(s.Inc, fn)
		InspectStmt(s.Body, fn)
	case StmtDo:
		InspectStmt(s.Body, fn)
		InspectExpr(s.X, fn)
	default:
		InspectExpr(s.X, fn)
		InspectStmt(s.Then, fn)
		InspectStmt(s.Else, fn)
		InspectStmt(s.Body, fn)
		for _, c := range s.List {
			InspectStmt(c, fn)
		}
	}
}

// InspectDecls visits every declaration statement nested in s.
func InspectDecls(s *Stmt, fn func(*Decl)) {
	if s == nil {
		return
	}
	for _, d := range s.Decls {
		fn(d)
	}
	InspectDecls(s.Init, fn)
	InspectDecls(s.Then, fn)
	InspectDecls(s.Else, fn)
	InspectDecls(s.Body, fn)
	for _, c := range s.List {
		InspectDecls(c, fn)
	}
}
