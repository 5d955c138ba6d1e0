package resolve

import "strings"

// TypeExpr is a parsed qualified type name. The concrete types form a closed
// set; switches over TypeExpr must handle every one of them.
type TypeExpr interface {
	typeExpr()
	// Text returns the qualified name the expression was parsed from.
	Text() string
}

// ArrayType is T[]...[] with Dims pairs of brackets. Element never ends in [].
type ArrayType struct {
	Name    string
	Element string
	Dims    int
}

// WildcardType is <?>, <?+T> or <?-T>. Bound is empty for the unbounded form.
type WildcardType struct {
	Name  string
	Bound string
	Lower bool
}

// TypeVariable is <X+B1&B2...>.
type TypeVariable struct {
	Name     string
	Variable string
	Bounds   []string
}

// ParameterizedType is Base<A1,A2...>. Nested instantiations such as
// Outer<A>.Inner<B> contribute the arguments of every group in order.
type ParameterizedType struct {
	Name string
	Base string
	Args []string
}

// NamedType is any name that is not a composite type expression.
type NamedType struct {
	Name string
}

func (ArrayType) typeExpr()         {}
func (WildcardType) typeExpr()      {}
func (TypeVariable) typeExpr()      {}
func (ParameterizedType) typeExpr() {}
func (NamedType) typeExpr()         {}

func (t ArrayType) Text() string         { return t.Name }
func (t WildcardType) Text() string      { return t.Name }
func (t TypeVariable) Text() string      { return t.Name }
func (t ParameterizedType) Text() string { return t.Name }
func (t NamedType) Text() string         { return t.Name }

// ParseTypeExpr classifies a qualified name. Member names (containing a
// parameter list) are always NamedType.
func ParseTypeExpr(name string) TypeExpr {
	if name == "" || strings.ContainsRune(name, '(') {
		return NamedType{Name: name}
	}
	switch {
	case strings.HasSuffix(name, "[]"):
		elem, dims := name, 0
		for strings.HasSuffix(elem, "[]") {
			elem = elem[:len(elem)-2]
			dims++
		}
		return ArrayType{Name: name, Element: elem, Dims: dims}

	case !balanced(name):
		return NamedType{Name: name}

	case strings.HasPrefix(name, "<?"):
		if name == "<?>" {
			return WildcardType{Name: name}
		}
		if len(name) < 5 || (name[2] != '+' && name[2] != '-') || name[len(name)-1] != '>' {
			return NamedType{Name: name}
		}
		return WildcardType{Name: name, Bound: name[3 : len(name)-1], Lower: name[2] == '-'}

	case name[0] == '<' && name[len(name)-1] == '>':
		inner := name[1 : len(name)-1]
		plus := indexAtDepth(inner, '+', 0)
		if plus < 0 {
			return TypeVariable{Name: name, Variable: inner}
		}
		return TypeVariable{
			Name:     name,
			Variable: inner[:plus],
			Bounds:   splitAtDepth(inner[plus+1:], '&', 0),
		}

	case strings.IndexByte(name, '<') > 0 && name[len(name)-1] == '>':
		base, args := splitParameterized(name)
		return ParameterizedType{Name: name, Base: base, Args: args}
	}
	return NamedType{Name: name}
}

// balanced reports whether every '<' in s is closed by a later '>'.
func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// IsComposite reports whether name is an array, wildcard, type variable or
// parameterized type.
func IsComposite(name string) bool {
	return !isNamed(ParseTypeExpr(name))
}

func isNamed(t TypeExpr) bool {
	_, ok := t.(NamedType)
	return ok
}

// splitParameterized separates the depth-0 characters of name (the base)
// from the comma-separated arguments found at depth 1.
func splitParameterized(name string) (string, []string) {
	var base, arg strings.Builder
	var args []string
	depth := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '<':
			depth++
			if depth == 1 {
				arg.Reset()
				continue
			}
		case c == '>':
			depth--
			if depth == 0 {
				args = append(args, arg.String())
				continue
			}
		case c == ',' && depth == 1:
			args = append(args, arg.String())
			arg.Reset()
			continue
		}
		if depth == 0 {
			base.WriteByte(c)
		} else {
			arg.WriteByte(c)
		}
	}
	return base.String(), args
}

// indexAtDepth returns the index of the first sep in s that is not nested
// inside angle brackets deeper than depth, or -1.
func indexAtDepth(s string, sep byte, depth int) int {
	d := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			d++
		case '>':
			d--
		case sep:
			if d == depth {
				return i
			}
		}
	}
	return -1
}

func splitAtDepth(s string, sep byte, depth int) []string {
	var parts []string
	d, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			d++
		case '>':
			d--
		case sep:
			if d == depth {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// Erase strips generic information from a type name.
func Erase(name string) string {
	switch t := ParseTypeExpr(name).(type) {
	case ArrayType:
		return Erase(t.Element) + strings.Repeat("[]", t.Dims)
	case WildcardType:
		if t.Bound == "" || t.Lower {
			return ObjectType
		}
		return Erase(t.Bound)
	case TypeVariable:
		if len(t.Bounds) == 0 {
			return ObjectType
		}
		return Erase(t.Bounds[0])
	case ParameterizedType:
		return t.Base
	case NamedType:
		return t.Name
	}
	return name
}

// SplitParams splits a parenthesized parameter list into its parameter type
// names. "()" and "" yield nil.
func SplitParams(sig string) []string {
	if len(sig) < 2 || sig[0] != '(' || sig[len(sig)-1] != ')' {
		return nil
	}
	inner := sig[1 : len(sig)-1]
	if inner == "" {
		return nil
	}
	return splitAtDepth(inner, ',', 0)
}

// EraseSignature returns sig with every parameter type erased.
func EraseSignature(sig string) string {
	if sig == "" {
		return ""
	}
	params := SplitParams(sig)
	for i, p := range params {
		params[i] = Erase(p)
	}
	return "(" + strings.Join(params, ",") + ")"
}
