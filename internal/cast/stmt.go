package cast

// StmtKind is the syntactic class of a statement.
type StmtKind int

const (
	StmtOther StmtKind = iota
	StmtNull
	StmtCompound
	StmtExpr
	StmtDecl
	StmtIf
	StmtFor
	StmtWhile
	StmtDo
	StmtSwitch
	StmtCase
	StmtDefault
	StmtLabel
	StmtReturn
	StmtGoto
	StmtBreak
	StmtContinue
)

var stmtKindNames = [...]string{
	StmtOther:    "other",
	StmtNull:     "null",
	StmtCompound: "compound",
	StmtExpr:     "expr",
	StmtDecl:     "decl",
	StmtIf:       "if",
	StmtFor:      "for",
	StmtWhile:    "while",
	StmtDo:       "do",
	StmtSwitch:   "switch",
	StmtCase:     "case",
	StmtDefault:  "default",
	StmtLabel:    "label",
	StmtReturn:   "return",
	StmtGoto:     "goto",
	StmtBreak:    "break",
	StmtContinue: "continue",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return "invalid"
}

// IsLoop reports for, while and do statements.
func (k StmtKind) IsLoop() bool {
	return k == StmtFor || k == StmtWhile || k == StmtDo
}

// Stmt is one statement node. Which fields are used depends on Kind:
//
//	StmtExpr, StmtReturn       X
//	StmtIf                     X, Then, Else
//	StmtFor                    Init, X, Inc, Body
//	StmtWhile, StmtDo          X, Body
//	StmtSwitch                 X, Body
//	StmtCase                   X, List
//	StmtDefault                List
//	StmtLabel                  Label, Body
//	StmtCompound               List
//	StmtDecl                   Decls, Group
type Stmt struct {
	Kind  StmtKind
	Range Range

	X    *Expr
	Init *Stmt
	Inc  *Expr

	Then *Stmt
	Else *Stmt
	Body *Stmt
	List []*Stmt

	Decls []*Decl
	// Group counts every entity a declaration statement introduces,
	// including struct/union/enum definitions written inline.
	Group int

	Label string
}

// SingleDecl returns the only declaration of a non-group declaration
// statement.
func (s *Stmt) SingleDecl() (*Decl, bool) {
	if s == nil || s.Kind != StmtDecl || s.Group != 1 {
		return nil, false
	}
	if len(s.Decls) != 1 {
		return nil, true
	}
	return s.Decls[0], true
}

// DeclKind classifies declarations.
type DeclKind int

const (
	DeclVar DeclKind = iota
	DeclParam
	DeclFunc
	DeclEnumConst
	DeclTypedef
	// DeclImplicit stands in for an identifier with no visible declaration.
	DeclImplicit
)

// Decl is a named declaration. Pointer identity is declaration identity.
type Decl struct {
	Kind   DeclKind
	Name   string
	Type   *Type
	Init   *Expr
	Range  Range
	Static bool
	InMain bool
}

// Func is a function definition.
type Func struct {
	Name   string
	Decl   *Decl
	Body   *Stmt
	Range  Range
	InMain bool

	// Locals lists every variable declared in the body, in source order.
	Locals []*Decl
}

// Include is an #include directive.
type Include struct {
	Path   string
	Angled bool
	Range  Range
	InMain bool
}

// TranslationUnit is one parsed source file.
type TranslationUnit struct {
	Path   string
	Source []byte

	// Language is the detected dialect; Supported is false for dialects the
	// detector does not analyze.
	Language  string
	Supported bool

	// Funcs are the function definitions in source order.
	Funcs []*Func

	// FuncDecls are all function declarations and definitions in source
	// order.
	FuncDecls []*Decl

	Includes []Include

	// SyntaxErrors counts ERROR and MISSING nodes reported by the parser.
	SyntaxErrors int
}

// Text returns the source text covered by r.
func (tu *TranslationUnit) Text(r Range) string {
	if tu == nil || r.Start < 0 || r.End > len(tu.Source) || r.Start > r.End {
		return ""
	}
	return string(tu.Source[r.Start:r.End])
}
