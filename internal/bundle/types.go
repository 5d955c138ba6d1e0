// Package bundle reads and writes fact bundles: the per-project manifest and
// JSON-lines record files an extraction front end produces.
package bundle

import (
	"fmt"

	"github.com/jward/linkage/internal/store"
)

// Record file names within a bundle.
const (
	ManifestFile  = "manifest.yaml"
	FilesFile     = "files.jsonl"
	EntitiesFile  = "entities.jsonl"
	RelationsFile = "relations.jsonl"
	ImportsFile   = "imports.jsonl"
	CommentsFile  = "comments.jsonl"
	LocalsFile    = "locals.jsonl"
	ProblemsFile  = "problems.jsonl"
)

// Manifest identifies the project a bundle describes.
type Manifest struct {
	Name        string            `yaml:"name"`
	Kind        store.ProjectKind `yaml:"kind"`
	Hash        string            `yaml:"hash,omitempty"`
	Path        string            `yaml:"path,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Version     string            `yaml:"version,omitempty"`
	Group       string            `yaml:"group,omitempty"`
	// DependsOn lists the identity hashes of the projects this one was
	// compiled against.
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Validate checks required fields and fills in a missing hash.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: missing name")
	}
	switch m.Kind {
	case store.ProjectPlatform, store.ProjectArchive, store.ProjectSource:
	default:
		return fmt.Errorf("manifest %s: unsupported kind %q", m.Name, m.Kind)
	}
	if m.Hash == "" {
		m.Hash = store.ComputeProjectHash(m.Kind, m.Name, m.Version, m.Group, m.Path)
	}
	return nil
}

// Project returns the store row for the manifest with an absent marker.
func (m *Manifest) Project() *store.Project {
	return &store.Project{
		Name:        m.Name,
		Kind:        m.Kind,
		Hash:        m.Hash,
		Path:        m.Path,
		Description: m.Description,
		Version:     m.Version,
		Group:       m.Group,
	}
}

type FileRecord struct {
	Path    string             `json:"path"`
	Kind    string             `json:"kind"`
	Hash    string             `json:"hash,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

type EntityRecord struct {
	Kind      store.EntityKind   `json:"kind"`
	FQN       string             `json:"fqn"`
	Signature string             `json:"signature,omitempty"`
	Modifiers []string           `json:"modifiers,omitempty"`
	Path      string             `json:"path,omitempty"`
	Offset    *int               `json:"offset,omitempty"`
	Length    *int               `json:"length,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Name returns the record's fqn with its signature appended.
func (r EntityRecord) Name() string { return r.FQN + r.Signature }

type RelationRecord struct {
	Kind   store.RelationKind `json:"kind"`
	LHS    string             `json:"lhs"`
	RHS    string             `json:"rhs"`
	Path   string             `json:"path,omitempty"`
	Offset *int               `json:"offset,omitempty"`
	Length *int               `json:"length,omitempty"`
}

type ImportRecord struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	OnDemand bool   `json:"on_demand,omitempty"`
	Static   bool   `json:"static,omitempty"`
	Offset   *int   `json:"offset,omitempty"`
	Length   *int   `json:"length,omitempty"`
}

type CommentRecord struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	// Owner is the name of the entity a documentation comment belongs to.
	Owner  string `json:"owner,omitempty"`
	Offset *int   `json:"offset,omitempty"`
	Length *int   `json:"length,omitempty"`
}

// LocalRecord is a parameter or local variable declared inside Parent.
type LocalRecord struct {
	Kind      store.EntityKind `json:"kind"`
	Name      string           `json:"name"`
	Type      string           `json:"type"`
	Parent    string           `json:"parent"`
	Position  *int             `json:"position,omitempty"`
	Modifiers []string         `json:"modifiers,omitempty"`
	Path      string           `json:"path,omitempty"`
	Offset    *int             `json:"offset,omitempty"`
	Length    *int             `json:"length,omitempty"`
}

type ProblemRecord struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	ErrorCode int    `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Bundle is a fully loaded fact bundle.
type Bundle struct {
	Ref       string
	Manifest  Manifest
	Files     []FileRecord
	Entities  []EntityRecord
	Relations []RelationRecord
	Imports   []ImportRecord
	Comments  []CommentRecord
	Locals    []LocalRecord
	Problems  []ProblemRecord

	// Dropped counts malformed record lines skipped while loading.
	Dropped int
}
