package cast

import "strings"

// TypeKind classifies a C type. Arithmetic kinds are ordered by conversion rank.
type TypeKind int

const (
	TypeUnknown TypeKind = iota
	TypeVoid
	TypeBool
	TypeChar
	TypeSChar
	TypeUChar
	TypeShort
	TypeUShort
	TypeInt
	TypeUInt
	TypeLong
	TypeULong
	TypeLongLong
	TypeULongLong
	TypeFloat
	TypeDouble
	TypeLongDouble
	TypeEnum
	TypePointer
	TypeArray
	TypeFunction
	TypeRecord
)

var typeKindNames = map[TypeKind]string{
	TypeUnknown:    "<unknown>",
	TypeVoid:       "void",
	TypeBool:       "_Bool",
	TypeChar:       "char",
	TypeSChar:      "signed char",
	TypeUChar:      "unsigned char",
	TypeShort:      "short",
	TypeUShort:     "unsigned short",
	TypeInt:        "int",
	TypeUInt:       "unsigned int",
	TypeLong:       "long",
	TypeULong:      "unsigned long",
	TypeLongLong:   "long long",
	TypeULongLong:  "unsigned long long",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeLongDouble: "long double",
}

func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}
	switch k {
	case TypeEnum:
		return "enum"
	case TypePointer:
		return "pointer"
	case TypeArray:
		return "array"
	case TypeFunction:
		return "function"
	case TypeRecord:
		return "record"
	}
	return "<invalid>"
}

// Record is a struct or union definition. Fields are shared by every type
// that names the record, so *Field pointers give member identity.
type Record struct {
	Tag      string
	Union    bool
	Fields   []*Field
	Complete bool
}

// Field is one member of a Record.
type Field struct {
	Name   string
	Type   *Type
	Parent *Record
}

// Lookup returns the named field, descending into anonymous members.
func (r *Record) Lookup(name string) *Field {
	if r == nil {
		return nil
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	for _, f := range r.Fields {
		if f.Name == "" && f.Type != nil && f.Type.Kind == TypeRecord {
			if nested := f.Type.Record.Lookup(name); nested != nil {
				return nested
			}
		}
	}
	return nil
}

// Type is a C type. Name carries typedef sugar (uint32_t, size_t) and is
// preferred when the type is spelled back into source.
type Type struct {
	Kind     TypeKind
	Name     string
	Tag      string
	Elem     *Type
	Params   []*Type
	Variadic bool
	Record   *Record
	Const    bool
	Volatile bool
}

// Builtin returns an unqualified builtin type of kind k.
func Builtin(k TypeKind) *Type {
	return &Type{Kind: k}
}

// Unknown is the type of anything the front end could not resolve.
func Unknown() *Type {
	return &Type{Kind: TypeUnknown}
}

// PointerTo returns a pointer type to t.
func PointerTo(t *Type) *Type {
	return &Type{Kind: TypePointer, Elem: t}
}

// ArrayOf returns an array type of t.
func ArrayOf(t *Type) *Type {
	return &Type{Kind: TypeArray, Elem: t}
}

// Unqualified returns t without const/volatile qualifiers.
func (t *Type) Unqualified() *Type {
	if t == nil || (!t.Const && !t.Volatile) {
		return t
	}
	c := *t
	c.Const = false
	c.Volatile = false
	return &c
}

// Desugared returns t with typedef names stripped.
func (t *Type) Desugared() *Type {
	if t == nil || t.Name == "" {
		return t
	}
	c := *t
	c.Name = ""
	return &c
}

func (t *Type) IsInteger() bool {
	if t == nil {
		return false
	}
	return (t.Kind >= TypeBool && t.Kind <= TypeULongLong) || t.Kind == TypeEnum
}

func (t *Type) IsFloating() bool {
	return t != nil && t.Kind >= TypeFloat && t.Kind <= TypeLongDouble
}

func (t *Type) IsArithmetic() bool {
	return t.IsInteger() || t.IsFloating()
}

// IsScalarCandidate reports whether expressions of this type may be captured.
func (t *Type) IsScalarCandidate() bool {
	return t.IsArithmetic()
}

func (t *Type) IsPointer() bool {
	return t != nil && (t.Kind == TypePointer || t.Kind == TypeArray)
}

func (t *Type) IsUnsigned() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeBool, TypeUChar, TypeUShort, TypeUInt, TypeULong, TypeULongLong:
		return true
	}
	return false
}

// Pointee returns the element type of a pointer or array, or unknown.
func (t *Type) Pointee() *Type {
	if t.IsPointer() && t.Elem != nil {
		return t.Elem
	}
	return Unknown()
}

// Bits returns the storage width of arithmetic types on an LP64 target.
func (t *Type) Bits() int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case TypeBool, TypeChar, TypeSChar, TypeUChar:
		return 8
	case TypeShort, TypeUShort:
		return 16
	case TypeInt, TypeUInt, TypeEnum, TypeFloat:
		return 32
	case TypeLong, TypeULong, TypeLongLong, TypeULongLong, TypeDouble, TypePointer:
		return 64
	case TypeLongDouble:
		return 128
	}
	return 0
}

// Spelling renders the type as it would be written in a declaration of a
// scalar variable.
func (t *Type) Spelling() string {
	if t == nil {
		return typeKindNames[TypeUnknown]
	}
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	if t.Volatile {
		b.WriteString("volatile ")
	}
	b.WriteString(t.base())
	return b.String()
}

func (t *Type) String() string {
	return t.Spelling()
}

func (t *Type) base() string {
	if t.Name != "" {
		return t.Name
	}
	switch t.Kind {
	case TypePointer:
		return t.Pointee().Spelling() + " *"
	case TypeArray:
		return t.Pointee().Spelling() + " []"
	case TypeFunction:
		if t.Elem == nil {
			return "int ()"
		}
		return t.Elem.Spelling() + " ()"
	case TypeEnum:
		if t.Tag == "" {
			return "int"
		}
		return "enum " + t.Tag
	case TypeRecord:
		kw := "struct "
		if t.Record != nil && t.Record.Union {
			kw = "union "
		}
		if t.Tag == "" {
			return kw + "<anonymous>"
		}
		return kw + t.Tag
	}
	return t.Kind.String()
}
