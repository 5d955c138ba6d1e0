package store

import (
	"crypto/sha256"
	"fmt"
)

// ComputeProjectHash derives a deterministic identity hash for a project
// whose bundle manifest does not carry one. Covers: kind, name, version,
// group and path. The same unit extracted twice maps to the same project.
func ComputeProjectHash(kind ProjectKind, name, version, group, path string) string {
	h := sha256.New()
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "version:%s\n", version)
	fmt.Fprintf(h, "group:%s\n", group)
	fmt.Fprintf(h, "path:%s\n", path)
	return fmt.Sprintf("%x", h.Sum(nil))
}
