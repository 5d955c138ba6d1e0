package resolve

import "strings"

const (
	ObjectType = "java.lang.Object"

	constructorName = "<init>"
	initializerName = "<clinit>"
)

// SplitMember splits a member name at its parameter list. Names without a
// parameter list return an empty signature.
func SplitMember(name string) (fqn, sig string) {
	if i := strings.IndexByte(name, '('); i >= 0 {
		return name[:i], name[i:]
	}
	return name, ""
}

// SplitReceiver splits a member fqn into its declaring type and simple
// member name. Dots inside type arguments are not separators.
func SplitReceiver(fqn string) (receiver, member string) {
	depth := 0
	for i := len(fqn) - 1; i >= 0; i-- {
		switch fqn[i] {
		case '>':
			depth++
		case '<':
			depth--
		case '.':
			if depth == 0 {
				return fqn[:i], fqn[i+1:]
			}
		}
	}
	return "", fqn
}

// ErasedName returns name with its signature erased, or "" if erasure
// does not change it.
func ErasedName(name string) string {
	fqn, sig := SplitMember(name)
	if sig == "" {
		return ""
	}
	erased := EraseSignature(sig)
	if erased == sig {
		return ""
	}
	return fqn + erased
}
