package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

type scope struct {
	parent *scope
	names  map[string]*cast.Decl
	tags   map[string]*cast.Type
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		names:  make(map[string]*cast.Decl),
		tags:   make(map[string]*cast.Type),
	}
}

func (s *scope) lookup(name string) *cast.Decl {
	for sc := s; sc != nil; sc = sc.parent {
		if d, ok := sc.names[name]; ok {
			return d
		}
	}
	return nil
}

func (s *scope) lookupTag(tag string) *cast.Type {
	for sc := s; sc != nil; sc = sc.parent {
		if t, ok := sc.tags[tag]; ok {
			return t
		}
	}
	return nil
}

// builder lowers one Tree-sitter tree into a cast.TranslationUnit
type builder struct {
	src     []byte
	tu      *cast.TranslationUnit
	file    *scope
	cur     *scope
	regions regions

	// implicit holds one synthetic declaration per undeclared identifier
	implicit map[string]*cast.Decl

	// fn is the function whose body is being lowered
	fn *cast.Func

	// macros maps the names #defined so far to their bodies
	macros map[string]string
}

func newBuilder(src []byte, tu *cast.TranslationUnit) *builder {
	file := newScope(nil)
	return &builder{
		src:      src,
		tu:       tu,
		file:     file,
		cur:      file,
		regions:  scanRegions(src),
		implicit: make(map[string]*cast.Decl),
		macros:   make(map[string]string),
	}
}

func (b *builder) push() {
	b.cur = newScope(b.cur)
}

func (b *builder) pop() {
	if b.cur.parent != nil {
		b.cur = b.cur.parent
	}
}

func (b *builder) rng(n *sitter.Node) cast.Range {
	p := n.StartPoint()
	return cast.Range{
		Start:  int(n.StartByte()),
		End:    int(n.EndByte()),
		Line:   int(p.Row) + 1,
		Column: int(p.Column) + 1,
	}
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(b.src)
}

func (b *builder) inMain(n *sitter.Node) bool {
	return b.regions.inMain(int(n.StartByte()))
}

// firstNamed returns the first named child that is not a comment
func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// fieldChildren returns every child stored under field name
func fieldChildren(n *sitter.Node, field string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			out = append(out, n.Child(i))
		}
	}
	return out
}

// items calls fn for every item of a block-like node. Of each
// conditional-compilation group only the active arm is lowered.
func (b *builder) items(n *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() || c.Type() == "comment" {
			continue
		}
		switch n.FieldNameForChild(i) {
		case "condition", "name", "alternative":
			continue
		}
		switch c.Type() {
		case "preproc_if", "preproc_ifdef":
			if arm := b.activeArm(c); arm != nil {
				b.items(arm, fn)
			}
		case "preproc_def", "preproc_function_def":
			b.define(c)
			fn(c)
		case "preproc_call":
			b.undef(c)
			fn(c)
		default:
			fn(c)
		}
	}
}

func (b *builder) translationUnit(root *sitter.Node) {
	b.items(root, b.topLevel)
}

func (b *builder) topLevel(n *sitter.Node) {
	switch n.Type() {
	case "function_definition":
		b.functionDefinition(n)
	case "declaration":
		b.declaration(n)
	case "type_definition":
		b.typeDefinition(n)
	case "struct_specifier", "union_specifier", "enum_specifier":
		var s specs
		b.typeSpec(n, &s)
	case "preproc_include":
		b.include(n)
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			b.items(body, b.topLevel)
		}
	}
}

func (b *builder) include(n *sitter.Node) {
	m := matchInclude(b.text(n))
	if m == nil {
		return
	}
	b.tu.Includes = append(b.tu.Includes, cast.Include{
		Path:   strings.TrimSpace(m[1]),
		Angled: m[0] == "<",
		Range:  b.rng(n),
		InMain: b.inMain(n),
	})
}

func (b *builder) functionDefinition(n *sitter.Node) {
	spec := b.specifiers(n)
	name, t, params := b.declarator(n.ChildByFieldName("declarator"), spec.typ)
	if name == "" {
		return
	}
	if t.Kind != cast.TypeFunction {
		t = &cast.Type{Kind: cast.TypeFunction, Elem: t}
	}
	decl := b.declareFunc(name, t, n, spec.static)

	fn := &cast.Func{
		Name:   name,
		Decl:   decl,
		Range:  b.rng(n),
		InMain: b.inMain(n),
	}
	outer := b.fn
	b.fn = fn
	b.push()
	b.parameters(params)
	// K&R parameter declarations sit between the declarator and the body
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "declaration" {
			for _, d := range b.declaration(c).Decls {
				d.Kind = cast.DeclParam
			}
		}
	}
	fn.Body = b.compound(n.ChildByFieldName("body"))
	b.pop()
	b.fn = outer

	b.tu.Funcs = append(b.tu.Funcs, fn)
}

// declareFunc returns the file-level declaration for a function, reusing
// an earlier declaration of the same name.
func (b *builder) declareFunc(name string, t *cast.Type, n *sitter.Node, static bool) *cast.Decl {
	if d, ok := b.file.names[name]; ok && d.Kind == cast.DeclFunc {
		if len(t.Params) > len(d.Type.Params) || d.Type.Elem == nil {
			d.Type = t
		}
		b.cur.names[name] = d
		return d
	}
	d := &cast.Decl{
		Kind:   cast.DeclFunc,
		Name:   name,
		Type:   t,
		Range:  b.rng(n),
		Static: static,
		InMain: b.inMain(n),
	}
	b.file.names[name] = d
	b.cur.names[name] = d
	b.tu.FuncDecls = append(b.tu.FuncDecls, d)
	return d
}

func (b *builder) parameters(params *sitter.Node) {
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		c := params.NamedChild(i)
		var name string
		var t *cast.Type
		switch c.Type() {
		case "parameter_declaration":
			spec := b.specifiers(c)
			name, t, _ = b.declarator(c.ChildByFieldName("declarator"), spec.typ)
		case "identifier":
			name, t = b.text(c), cast.Builtin(cast.TypeInt)
		}
		if name == "" {
			continue
		}
		d := &cast.Decl{
			Kind:   cast.DeclParam,
			Name:   name,
			Type:   decay(t),
			Range:  b.rng(c),
			InMain: b.inMain(c),
		}
		b.cur.names[name] = d
	}
}

// specs is the result of reading a declaration's specifier list
type specs struct {
	typ    *cast.Type
	static bool
	extern bool

	// tagDefs counts struct, union and enum bodies defined inline
	tagDefs int
}

func (b *builder) specifiers(n *sitter.Node) specs {
	var s specs
	var isConst, isVolatile bool
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "storage_class_specifier":
			switch b.text(c) {
			case "static":
				s.static = true
			case "extern":
				s.extern = true
			}
		case "type_qualifier":
			switch b.text(c) {
			case "const":
				isConst = true
			case "volatile":
				isVolatile = true
			}
		}
	}

	t := b.typeSpec(n.ChildByFieldName("type"), &s)
	if isConst || isVolatile {
		q := *t
		q.Const = q.Const || isConst
		q.Volatile = q.Volatile || isVolatile
		t = &q
	}
	s.typ = t
	return s
}

var primitiveTypes = map[string]*cast.Type{
	"void":      {Kind: cast.TypeVoid},
	"_Bool":     {Kind: cast.TypeBool},
	"bool":      {Kind: cast.TypeBool},
	"char":      {Kind: cast.TypeChar},
	"short":     {Kind: cast.TypeShort},
	"int":       {Kind: cast.TypeInt},
	"long":      {Kind: cast.TypeLong},
	"float":     {Kind: cast.TypeFloat},
	"double":    {Kind: cast.TypeDouble},
	"size_t":    {Kind: cast.TypeULong, Name: "size_t"},
	"ssize_t":   {Kind: cast.TypeLong, Name: "ssize_t"},
	"ptrdiff_t": {Kind: cast.TypeLong, Name: "ptrdiff_t"},
	"intptr_t":  {Kind: cast.TypeLong, Name: "intptr_t"},
	"uintptr_t": {Kind: cast.TypeULong, Name: "uintptr_t"},
	"int8_t":    {Kind: cast.TypeSChar, Name: "int8_t"},
	"uint8_t":   {Kind: cast.TypeUChar, Name: "uint8_t"},
	"int16_t":   {Kind: cast.TypeShort, Name: "int16_t"},
	"uint16_t":  {Kind: cast.TypeUShort, Name: "uint16_t"},
	"int32_t":   {Kind: cast.TypeInt, Name: "int32_t"},
	"uint32_t":  {Kind: cast.TypeUInt, Name: "uint32_t"},
	"int64_t":   {Kind: cast.TypeLong, Name: "int64_t"},
	"uint64_t":  {Kind: cast.TypeULong, Name: "uint64_t"},
	"char16_t":  {Kind: cast.TypeUShort, Name: "char16_t"},
	"char32_t":  {Kind: cast.TypeUInt, Name: "char32_t"},
}

func primitive(name string) *cast.Type {
	if t, ok := primitiveTypes[name]; ok {
		c := *t
		return &c
	}
	return cast.Unknown()
}

func (b *builder) typeSpec(n *sitter.Node, s *specs) *cast.Type {
	if n == nil {
		// implicit int
		return cast.Builtin(cast.TypeInt)
	}
	switch n.Type() {
	case "primitive_type":
		return primitive(b.text(n))
	case "sized_type_specifier":
		return b.sizedType(n)
	case "type_identifier":
		name := b.text(n)
		if d := b.cur.lookup(name); d != nil && d.Kind == cast.DeclTypedef {
			t := *d.Type
			return &t
		}
		return &cast.Type{Kind: cast.TypeUnknown, Name: name}
	case "struct_specifier", "union_specifier":
		return b.recordSpec(n, s)
	case "enum_specifier":
		return b.enumSpec(n, s)
	}
	return cast.Unknown()
}

// sizedType resolves combinations such as "unsigned long long" and "short int".
func (b *builder) sizedType(n *sitter.Node) *cast.Type {
	unsigned, signed, short, longs := false, false, false, 0
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "unsigned":
			unsigned = true
		case "signed":
			signed = true
		case "short":
			short = true
		case "long":
			longs++
		}
	}
	base := ""
	if t := n.ChildByFieldName("type"); t != nil {
		base = b.text(t)
	}

	var k cast.TypeKind
	switch {
	case base == "double" && longs > 0:
		k = cast.TypeLongDouble
	case base == "double":
		k = cast.TypeDouble
	case base == "char" && unsigned:
		k = cast.TypeUChar
	case base == "char" && signed:
		k = cast.TypeSChar
	case base == "char":
		k = cast.TypeChar
	case short:
		k = cast.TypeShort
	case longs == 1:
		k = cast.TypeLong
	case longs >= 2:
		k = cast.TypeLongLong
	default:
		k = cast.TypeInt
	}
	if unsigned {
		switch k {
		case cast.TypeShort:
			k = cast.TypeUShort
		case cast.TypeInt:
			k = cast.TypeUInt
		case cast.TypeLong:
			k = cast.TypeULong
		case cast.TypeLongLong:
			k = cast.TypeULongLong
		}
	}
	return cast.Builtin(k)
}

func (b *builder) recordSpec(n *sitter.Node, s *specs) *cast.Type {
	union := n.Type() == "union_specifier"
	tag := b.text(n.ChildByFieldName("name"))
	body := n.ChildByFieldName("body")

	if body == nil {
		if tag == "" {
			return cast.Unknown()
		}
		if t := b.cur.lookupTag(tag); t != nil {
			return t
		}
		t := &cast.Type{Kind: cast.TypeRecord, Tag: tag, Record: &cast.Record{Tag: tag, Union: union}}
		b.cur.tags[tag] = t
		return t
	}

	var t *cast.Type
	if tag != "" {
		if prev, ok := b.cur.tags[tag]; ok && prev.Record != nil && !prev.Record.Complete {
			t = prev
		}
	}
	if t == nil {
		t = &cast.Type{Kind: cast.TypeRecord, Tag: tag, Record: &cast.Record{Tag: tag, Union: union}}
		if tag != "" {
			b.cur.tags[tag] = t
		}
	}
	s.tagDefs++

	rec := t.Record
	b.items(body, func(fd *sitter.Node) {
		if fd.Type() != "field_declaration" {
			return
		}
		spec := b.specifiers(fd)
		decls := fieldChildren(fd, "declarator")
		if len(decls) == 0 {
			rec.Fields = append(rec.Fields, &cast.Field{Type: spec.typ, Parent: rec})
			return
		}
		for _, d := range decls {
			name, ft, _ := b.declarator(d, spec.typ)
			rec.Fields = append(rec.Fields, &cast.Field{Name: name, Type: ft, Parent: rec})
		}
	})
	rec.Complete = true
	return t
}

func (b *builder) enumSpec(n *sitter.Node, s *specs) *cast.Type {
	tag := b.text(n.ChildByFieldName("name"))
	body := n.ChildByFieldName("body")

	if body == nil && tag != "" {
		if t := b.cur.lookupTag(tag); t != nil {
			return t
		}
	}
	t := &cast.Type{Kind: cast.TypeEnum, Tag: tag}
	if tag != "" {
		b.cur.tags[tag] = t
	}
	if body == nil {
		return t
	}
	s.tagDefs++

	for i := 0; i < int(body.NamedChildCount()); i++ {
		e := body.NamedChild(i)
		if e.Type() != "enumerator" {
			continue
		}
		name := b.text(e.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		b.cur.names[name] = &cast.Decl{
			Kind:   cast.DeclEnumConst,
			Name:   name,
			Type:   cast.Builtin(cast.TypeInt),
			Range:  b.rng(e),
			InMain: b.inMain(e),
		}
	}
	return t
}

// declarator applies a declarator chain to base and returns the declared
// name, its type and the parameter list of the innermost function
// declarator. Array sizes are type context and are not lowered.
func (b *builder) declarator(n *sitter.Node, base *cast.Type) (string, *cast.Type, *sitter.Node) {
	var params *sitter.Node
	t := base
	for n != nil {
		switch n.Type() {
		case "identifier", "type_identifier", "field_identifier":
			return b.text(n), t, params
		case "pointer_declarator", "abstract_pointer_declarator":
			p := cast.PointerTo(t)
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if q := n.NamedChild(i); q.Type() == "type_qualifier" {
					switch b.text(q) {
					case "const":
						p.Const = true
					case "volatile":
						p.Volatile = true
					}
				}
			}
			t = p
			n = n.ChildByFieldName("declarator")
		case "array_declarator", "abstract_array_declarator":
			t = cast.ArrayOf(t)
			n = n.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			params = n.ChildByFieldName("parameters")
			t = b.functionType(t, params)
			n = n.ChildByFieldName("declarator")
		case "init_declarator":
			n = n.ChildByFieldName("declarator")
		case "parenthesized_declarator", "abstract_parenthesized_declarator", "attributed_declarator":
			n = firstNamed(n)
		default:
			return "", t, params
		}
	}
	return "", t, params
}

func (b *builder) functionType(ret *cast.Type, params *sitter.Node) *cast.Type {
	ft := &cast.Type{Kind: cast.TypeFunction, Elem: ret}
	if params == nil {
		return ft
	}
	for i := 0; i < int(params.ChildCount()); i++ {
		c := params.Child(i)
		switch c.Type() {
		case "parameter_declaration":
			spec := b.specifiers(c)
			d := c.ChildByFieldName("declarator")
			_, pt, _ := b.declarator(d, spec.typ)
			if d == nil && pt.Kind == cast.TypeVoid && !pt.IsPointer() {
				continue
			}
			ft.Params = append(ft.Params, decay(pt))
		case "identifier":
			ft.Params = append(ft.Params, cast.Builtin(cast.TypeInt))
		case "variadic_parameter", "...":
			ft.Variadic = true
		}
	}
	return ft
}

// typeName reads a type_descriptor as written in casts, sizeof and compound
// literals.
func (b *builder) typeName(td *sitter.Node) (*cast.Type, string) {
	if td == nil {
		return cast.Unknown(), ""
	}
	var s specs
	if td.Type() == "type_descriptor" {
		s = b.specifiers(td)
	} else {
		s.typ = b.typeSpec(td, &s)
	}
	_, t, _ := b.declarator(td.ChildByFieldName("declarator"), s.typ)
	return t, strings.Join(strings.Fields(b.text(td)), " ")
}

func (b *builder) declaration(n *sitter.Node) *cast.Stmt {
	spec := b.specifiers(n)
	st := &cast.Stmt{Kind: cast.StmtDecl, Range: b.rng(n)}

	for _, d := range fieldChildren(n, "declarator") {
		name, t, _ := b.declarator(d, spec.typ)
		if name == "" {
			continue
		}
		if t.Kind == cast.TypeFunction {
			st.Decls = append(st.Decls, b.declareFunc(name, t, d, spec.static))
			continue
		}

		decl := b.declareVar(name, t, d, spec)
		if d.Type() == "init_declarator" {
			if v := d.ChildByFieldName("value"); v != nil {
				decl.Init = b.expr(v)
			}
		}
		st.Decls = append(st.Decls, decl)
	}
	st.Group = len(st.Decls) + spec.tagDefs
	return st
}

func (b *builder) declareVar(name string, t *cast.Type, n *sitter.Node, spec specs) *cast.Decl {
	// tentative definitions and extern redeclarations share one declaration
	if b.cur == b.file || spec.extern {
		if d, ok := b.file.names[name]; ok && d.Kind == cast.DeclVar {
			b.cur.names[name] = d
			return d
		}
	}
	d := &cast.Decl{
		Kind:   cast.DeclVar,
		Name:   name,
		Type:   t,
		Range:  b.rng(n),
		Static: spec.static,
		InMain: b.inMain(n),
	}
	b.cur.names[name] = d
	if b.fn != nil {
		b.fn.Locals = append(b.fn.Locals, d)
	}
	return d
}

func (b *builder) typeDefinition(n *sitter.Node) *cast.Stmt {
	spec := b.specifiers(n)
	st := &cast.Stmt{Kind: cast.StmtDecl, Range: b.rng(n)}
	for _, d := range fieldChildren(n, "declarator") {
		name, t, _ := b.declarator(d, spec.typ)
		if name == "" {
			continue
		}
		named := *t
		named.Name = name
		decl := &cast.Decl{
			Kind:   cast.DeclTypedef,
			Name:   name,
			Type:   &named,
			Range:  b.rng(d),
			InMain: b.inMain(d),
		}
		b.cur.names[name] = decl
		st.Decls = append(st.Decls, decl)
	}
	st.Group = len(st.Decls) + spec.tagDefs
	return st
}

func (b *builder) compound(n *sitter.Node) *cast.Stmt {
	if n == nil {
		return nil
	}
	st := &cast.Stmt{Kind: cast.StmtCompound, Range: b.rng(n)}
	b.push()
	b.items(n, func(c *sitter.Node) {
		if s := b.blockItem(c); s != nil {
			st.List = append(st.List, s)
		}
	})
	b.pop()
	return st
}

func (b *builder) blockItem(n *sitter.Node) *cast.Stmt {
	switch n.Type() {
	case "preproc_include", "preproc_def", "preproc_function_def", "preproc_call", "function_definition":
		return nil
	case "struct_specifier", "union_specifier", "enum_specifier":
		var s specs
		b.typeSpec(n, &s)
		return &cast.Stmt{Kind: cast.StmtDecl, Range: b.rng(n), Group: s.tagDefs}
	}
	return b.stmt(n)
}

// condition lowers the parenthesized condition of if, while, do and switch.
func (b *builder) condition(n *sitter.Node) *cast.Expr {
	if n != nil && n.Type() == "parenthesized_expression" {
		if inner := firstNamed(n); inner != nil {
			return b.expr(inner)
		}
	}
	return b.expr(n)
}

func (b *builder) stmt(n *sitter.Node) *cast.Stmt {
	if n == nil {
		return nil
	}
	s := &cast.Stmt{Range: b.rng(n)}

	switch n.Type() {
	case "compound_statement":
		return b.compound(n)
	case "declaration":
		return b.declaration(n)
	case "type_definition":
		return b.typeDefinition(n)
	case "attributed_statement":
		var last *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() != "attribute_declaration" {
				last = c
			}
		}
		return b.stmt(last)

	case "expression_statement":
		if x := firstNamed(n); x != nil {
			s.Kind = cast.StmtExpr
			s.X = b.expr(x)
		} else {
			s.Kind = cast.StmtNull
		}

	case "if_statement":
		s.Kind = cast.StmtIf
		s.X = b.condition(n.ChildByFieldName("condition"))
		s.Then = b.stmt(n.ChildByFieldName("consequence"))
		alt := n.ChildByFieldName("alternative")
		if alt != nil && alt.Type() == "else_clause" {
			alt = firstNamed(alt)
		}
		s.Else = b.stmt(alt)

	case "while_statement":
		s.Kind = cast.StmtWhile
		s.X = b.condition(n.ChildByFieldName("condition"))
		s.Body = b.stmt(n.ChildByFieldName("body"))

	case "do_statement":
		s.Kind = cast.StmtDo
		s.Body = b.stmt(n.ChildByFieldName("body"))
		s.X = b.condition(n.ChildByFieldName("condition"))

	case "for_statement":
		s.Kind = cast.StmtFor
		b.push()
		if init := n.ChildByFieldName("initializer"); init != nil {
			if init.Type() == "declaration" {
				s.Init = b.declaration(init)
			} else {
				s.Init = &cast.Stmt{Kind: cast.StmtExpr, Range: b.rng(init), X: b.expr(init)}
			}
		}
		s.X = b.expr(n.ChildByFieldName("condition"))
		s.Inc = b.expr(n.ChildByFieldName("update"))
		s.Body = b.stmt(n.ChildByFieldName("body"))
		b.pop()

	case "switch_statement":
		s.Kind = cast.StmtSwitch
		s.X = b.condition(n.ChildByFieldName("condition"))
		s.Body = b.stmt(n.ChildByFieldName("body"))

	case "case_statement":
		s.Kind = cast.StmtDefault
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if !c.IsNamed() || c.Type() == "comment" {
				continue
			}
			if n.FieldNameForChild(i) == "value" {
				s.Kind = cast.StmtCase
				s.X = b.expr(c)
				continue
			}
			if sub := b.blockItem(c); sub != nil {
				s.List = append(s.List, sub)
			}
		}

	case "labeled_statement":
		s.Kind = cast.StmtLabel
		s.Label = b.text(n.ChildByFieldName("label"))
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.IsNamed() && c.Type() != "comment" && n.FieldNameForChild(i) != "label" {
				s.Body = b.stmt(c)
			}
		}

	case "return_statement":
		s.Kind = cast.StmtReturn
		s.X = b.expr(firstNamed(n))

	case "goto_statement":
		s.Kind = cast.StmtGoto
		s.Label = b.text(n.ChildByFieldName("label"))

	case "break_statement":
		s.Kind = cast.StmtBreak

	case "continue_statement":
		s.Kind = cast.StmtContinue

	default:
		s.Kind = cast.StmtOther
	}
	return s
}
