package linkage

import (
	"github.com/jward/linkage/internal/bundle"
	"github.com/jward/linkage/internal/store"
)

// Public type aliases for internal types used in the Importer and
// QueryBuilder APIs.

type Store = store.Store
type Project = store.Project
type ProjectKind = store.ProjectKind
type Entity = store.Entity
type Relation = store.Relation
type RelationKind = store.RelationKind
type Import = store.Import
type Comment = store.Comment
type Metric = store.Metric
type Marker = store.Marker
type Provenance = store.Provenance
type Dangling = store.Dangling

type Source = bundle.Source
type DirSource = bundle.DirSource

// Project kinds accepted by Import.
const (
	PlatformLibraries = store.ProjectPlatform
	Archives          = store.ProjectArchive
	SourceProjects    = store.ProjectSource
)
