package frontend

import (
	"math"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/exprdetect/internal/cast"
)

// intLiteral evaluates a C integer constant and picks its type from the
// suffix and radix the way C11 6.4.4.1 does on an LP64 target.
func intLiteral(text string) (cast.Literal, *cast.Type) {
	body := strings.ReplaceAll(text, "'", "")
	lower := strings.ToLower(body)

	end := len(lower)
	for end > 0 && strings.ContainsRune("ul", rune(lower[end-1])) {
		end--
	}
	suffix := lower[end:]
	digits := body[:end]

	base := 10
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, digits = 16, digits[2:]
	case strings.HasPrefix(lower, "0b"):
		base, digits = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}

	unsigned := strings.Contains(suffix, "u")
	longs := strings.Count(suffix, "l")

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return cast.Literal{}, cast.Builtin(cast.TypeInt)
	}

	var candidates []cast.TypeKind
	switch {
	case unsigned && longs == 0:
		candidates = []cast.TypeKind{cast.TypeUInt, cast.TypeULong, cast.TypeULongLong}
	case unsigned && longs == 1:
		candidates = []cast.TypeKind{cast.TypeULong, cast.TypeULongLong}
	case unsigned:
		candidates = []cast.TypeKind{cast.TypeULongLong}
	case longs == 0 && base == 10:
		candidates = []cast.TypeKind{cast.TypeInt, cast.TypeLong, cast.TypeLongLong, cast.TypeULongLong}
	case longs == 0:
		candidates = []cast.TypeKind{cast.TypeInt, cast.TypeUInt, cast.TypeLong, cast.TypeULong, cast.TypeLongLong, cast.TypeULongLong}
	case longs == 1 && base == 10:
		candidates = []cast.TypeKind{cast.TypeLong, cast.TypeLongLong, cast.TypeULongLong}
	case longs == 1:
		candidates = []cast.TypeKind{cast.TypeLong, cast.TypeULong, cast.TypeLongLong, cast.TypeULongLong}
	case base == 10:
		candidates = []cast.TypeKind{cast.TypeLongLong, cast.TypeULongLong}
	default:
		candidates = []cast.TypeKind{cast.TypeLongLong, cast.TypeULongLong}
	}

	kind := candidates[len(candidates)-1]
	for _, k := range candidates {
		if fits(v, cast.Builtin(k)) {
			kind = k
			break
		}
	}
	t := cast.Builtin(kind)
	return cast.Literal{Int: v, Bits: t.Bits(), Valid: true}, t
}

func fits(v uint64, t *cast.Type) bool {
	bits := t.Bits()
	if t.IsUnsigned() {
		return bits >= 64 || v < 1<<uint(bits)
	}
	return v < 1<<uint(bits-1)
}

// floatLiteral evaluates a C floating constant. The stored bits are those of
// the value rounded to the literal's own type.
func floatLiteral(text string) (cast.Literal, *cast.Type) {
	body := strings.ReplaceAll(text, "'", "")
	kind := cast.TypeDouble
	switch {
	case strings.HasSuffix(body, "f"), strings.HasSuffix(body, "F"):
		kind = cast.TypeFloat
		body = body[:len(body)-1]
	case strings.HasSuffix(body, "l"), strings.HasSuffix(body, "L"):
		kind = cast.TypeLongDouble
		body = body[:len(body)-1]
	}
	lower := strings.ToLower(body)
	if strings.HasPrefix(lower, "0x") && !strings.Contains(lower, "p") {
		lower += "p0"
	}

	t := cast.Builtin(kind)
	v, err := strconv.ParseFloat(lower, 64)
	if err != nil && !isRangeErr(err) {
		return cast.Literal{}, t
	}
	if kind == cast.TypeFloat {
		return cast.Literal{Float: uint64(math.Float32bits(float32(v))), Bits: 32, Valid: true}, t
	}
	return cast.Literal{Float: math.Float64bits(v), Bits: t.Bits(), Valid: true}, t
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// isFloatSpelling distinguishes floating from integer number literals.
func isFloatSpelling(text string) bool {
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "0x") {
		return strings.ContainsAny(lower, ".p")
	}
	return strings.ContainsAny(lower, ".e")
}

// stripEncodingPrefix removes L, u, U and u8 prefixes from char and string
// literals.
func stripEncodingPrefix(text string) string {
	for _, p := range []string{"u8", "L", "u", "U"} {
		if strings.HasPrefix(text, p) && len(text) > len(p) && (text[len(p)] == '\'' || text[len(p)] == '"') {
			return text[len(p):]
		}
	}
	return text
}

// unquote decodes the body of a C char or string literal.
func unquote(text string) string {
	text = stripEncodingPrefix(text)
	if len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '\\' || i+1 >= len(text) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch esc := text[i]; esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'e':
			b.WriteByte(0x1b)
		case 'x':
			j := i + 1
			for j < len(text) && isHex(text[j]) {
				j++
			}
			v, _ := strconv.ParseUint(text[i+1:j], 16, 64)
			b.WriteByte(byte(v))
			i = j - 1
		case 'u', 'U':
			n := 4
			if esc == 'U' {
				n = 8
			}
			if i+n < len(text) {
				v, _ := strconv.ParseUint(text[i+1:i+1+n], 16, 32)
				b.WriteRune(rune(v))
				i += n
			}
		default:
			if esc >= '0' && esc <= '7' {
				j := i
				for j < len(text) && j < i+3 && text[j] >= '0' && text[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(text[i:j], 8, 32)
				b.WriteByte(byte(v))
				i = j - 1
				continue
			}
			b.WriteByte(esc)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// charValue computes the int value of a char literal; multi-character
// constants pack bytes big-endian like GCC and Clang.
func charValue(text string) int64 {
	body := unquote(text)
	if len(body) == 0 {
		return 0
	}
	if len(body) == 1 {
		return int64(int8(body[0]))
	}
	if r := []rune(body); len(r) == 1 && !strings.HasPrefix(text, "'") {
		return int64(r[0])
	}
	var v int64
	for i := 0; i < len(body); i++ {
		v = v<<8 | int64(body[i])
	}
	return int64(int32(v))
}
