package detector

import (
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

// walk visits every main-file function definition in source order.
func (s *Session) walk() {
	if !s.tu.Supported {
		return
	}
	for _, fn := range s.tu.Funcs {
		if !fn.InMain || fn.Body == nil {
			continue
		}
		s.enterFunc(fn)
		s.stmt(fn.Body)
	}
	s.fn = nil
}

// enterFunc resets the per-statement caches and indexes the capture
// temporaries the function already declares.
func (s *Session) enterFunc(fn *cast.Func) {
	s.fn = fn
	s.invalid = make(map[*cast.Stmt]map[*cast.Expr]bool)
	s.unique = make(map[*cast.Stmt][]*cast.Expr)
	s.tmpVars = make(map[*cast.Stmt][]*cast.Decl)
	s.processed = make(map[*cast.Decl]*cast.Expr)
	for _, d := range fn.Locals {
		if strings.HasPrefix(d.Name, TmpPrefix) && d.Init != nil {
			s.processed[d] = d.Init.IgnoreParens()
		}
	}
}

// stmt visits st as the current statement for its own expressions. Items of
// compound blocks and non-compound sub-statements each become the current
// statement in turn.
func (s *Session) stmt(st *cast.Stmt) {
	if st == nil {
		return
	}
	switch st.Kind {
	case cast.StmtCompound:
		for _, item := range st.List {
			s.stmt(item)
		}
	case cast.StmtIf:
		s.exprs(st, st.X)
		s.stmt(st.Then)
		s.stmt(st.Else)
	case cast.StmtFor:
		if init := st.Init; init != nil {
			s.exprs(st, init.X)
			for _, d := range init.Decls {
				s.exprs(st, d.Init)
			}
		}
		s.exprs(st, st.X)
		s.exprs(st, st.Inc)
		s.stmt(st.Body)
	case cast.StmtWhile, cast.StmtSwitch:
		s.exprs(st, st.X)
		s.stmt(st.Body)
	case cast.StmtDo:
		s.stmt(st.Body)
		s.exprs(st, st.X)
	case cast.StmtCase, cast.StmtDefault:
		s.exprs(st, st.X)
		for _, sub := range st.List {
			s.stmt(sub)
		}
	case cast.StmtLabel:
		s.stmt(st.Body)
	case cast.StmtDecl:
		for _, d := range st.Decls {
			if d.Kind == cast.DeclVar {
				s.exprs(st, d.Init)
			}
		}
	default:
		s.exprs(st, st.X)
	}
}

// exprs visits e and its sub-expressions in pre-order.
func (s *Session) exprs(st *cast.Stmt, e *cast.Expr) {
	cast.InspectExpr(e, func(x *cast.Expr) bool {
		if s.isValid(st, x) {
			s.accept(st, x)
		}
		return true
	})
}
