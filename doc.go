// Package linkage imports per-project fact bundles extracted from compiled
// libraries and source projects into one cross-project symbol graph stored
// in SQLite.
//
// # Pipeline
//
// Every import runs three stages over the selected projects, with a full
// barrier between them:
//
//  1. Entity: files, declared entities, file and project metrics, problems
//     and the project's declared dependencies.
//
//  2. Structural: parameters and local variables, type relations (extends,
//     implements, holds, returns, ...), imports, comments and entity
//     metrics. Names are resolved against the project itself, its declared
//     dependencies, the platform libraries and finally a shared table of
//     unknown stubs. Composite type expressions (arrays, wildcards, type
//     variables, parameterized types) get synthesized entities.
//
//  3. Referential: calls, reads and writes. Member names that no dependency
//     declares are looked up through the receiver's supertypes.
//
// Each project's stage is buffered in memory and committed in one
// transaction together with the project's END marker. A run that dies
// mid-stage leaves a BEGIN marker behind; the next run purges that stage
// and redoes it. See [Plan].
//
// # Usage
//
//	imp, err := linkage.New("linkage.db", linkage.WithThreadCount(8))
//	if err != nil { ... }
//	defer imp.Close()
//
//	err = imp.InitializeStore()
//	src := linkage.DirSource{Root: "corpus"}
//	rep, err := imp.Import(ctx, src, linkage.PlatformLibraries)
//	rep, err = imp.Import(ctx, src, linkage.Archives)
//	rep, err = imp.Import(ctx, src, linkage.SourceProjects)
//
//	q := imp.Query()
//	calls, err := q.RelationsByKind("calls")
package linkage
