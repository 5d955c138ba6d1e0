package linkage

import "github.com/jward/linkage/internal/resolve"

// importReferential buffers calls, reads and writes. Targets resolve in
// virtual mode so inherited members are found through supertypes.
func (imp *Importer) importReferential(pr *projectRun, shared *resolve.Shared) (resolve.Stats, error) {
	r, err := imp.newResolver(pr, shared)
	if err != nil {
		return nil, err
	}
	for _, rec := range pr.bundle.Relations {
		if !rec.Kind.IsReferential() {
			continue
		}
		if err := relate(pr, r, rec.Kind, rec.LHS, rec.RHS, rec.Path, rec.Offset, rec.Length, r.ResolveVirtual); err != nil {
			return nil, err
		}
	}
	return r.Stats(), nil
}
