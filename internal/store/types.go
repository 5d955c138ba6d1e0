package store

import (
	"fmt"
	"strings"
	"time"
)

// ProjectKind classifies an independently extracted unit.
type ProjectKind string

const (
	ProjectPrimitive ProjectKind = "primitive"
	ProjectPlatform  ProjectKind = "platform"
	ProjectArchive   ProjectKind = "archive"
	ProjectSource    ProjectKind = "source"
	ProjectUnknown   ProjectKind = "unknown"
	ProjectSynthetic ProjectKind = "synthetic"
)

// Names of the sentinel projects seeded by Seed.
const (
	PrimitivesProject    = "primitives"
	UnknownsProject      = "unknowns"
	NotApplicableProject = "not-applicable"
)

// Stage is the pipeline stage a project has reached.
type Stage int

const (
	StageNone Stage = iota
	StageEntity
	StageStructural
	StageReferential
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageEntity:
		return "entity"
	case StageStructural:
		return "structural"
	case StageReferential:
		return "referential"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Marker is the persisted per-project progress record. Dirty means the stage
// was begun but its rows were never committed with an END marker.
type Marker struct {
	Stage Stage
	Dirty bool
}

// Begin returns the BEGIN marker for stage s.
func Begin(s Stage) Marker { return Marker{Stage: s, Dirty: true} }

// End returns the END marker for stage s.
func End(s Stage) Marker { return Marker{Stage: s, Dirty: false} }

func (m Marker) String() string {
	switch {
	case m.Stage == StageNone:
		return "ABSENT"
	case m.Stage == StageDone:
		return "DONE"
	case m.Dirty:
		return "BEGIN_" + strings.ToUpper(m.Stage.String())
	default:
		return "END_" + strings.ToUpper(m.Stage.String())
	}
}

// EntityKind is the kind of a symbol graph node.
type EntityKind string

const (
	KindPackage           EntityKind = "package"
	KindClass             EntityKind = "class"
	KindInterface         EntityKind = "interface"
	KindEnum              EntityKind = "enum"
	KindAnnotation        EntityKind = "annotation"
	KindInitializer       EntityKind = "initializer"
	KindMethod            EntityKind = "method"
	KindConstructor       EntityKind = "constructor"
	KindField             EntityKind = "field"
	KindEnumConstant      EntityKind = "enum_constant"
	KindAnnotationElement EntityKind = "annotation_element"
	KindParameter         EntityKind = "parameter"
	KindLocalVariable     EntityKind = "local_variable"
	KindPrimitive         EntityKind = "primitive"
	KindArray             EntityKind = "array"
	KindWildcard          EntityKind = "wildcard"
	KindTypeVariable      EntityKind = "type_variable"
	KindParameterizedType EntityKind = "parameterized_type"
	KindDuplicate         EntityKind = "duplicate"
	KindUnknown           EntityKind = "unknown"
)

// IsDeclaredType reports whether k is a class-like type declaration.
func (k EntityKind) IsDeclaredType() bool {
	return k == KindClass || k == KindInterface || k == KindEnum || k == KindAnnotation
}

// IsSynthesized reports whether entities of kind k are created by the
// importer rather than declared in a fact bundle.
func (k EntityKind) IsSynthesized() bool {
	switch k {
	case KindArray, KindWildcard, KindTypeVariable, KindParameterizedType, KindDuplicate, KindUnknown:
		return true
	}
	return false
}

// RelationKind is the kind of a directed edge.
type RelationKind string

const (
	RelContains        RelationKind = "contains"
	RelExtends         RelationKind = "extends"
	RelImplements      RelationKind = "implements"
	RelHolds           RelationKind = "holds"
	RelReturns         RelationKind = "returns"
	RelCalls           RelationKind = "calls"
	RelReads           RelationKind = "reads"
	RelWrites          RelationKind = "writes"
	RelInstantiates    RelationKind = "instantiates"
	RelThrows          RelationKind = "throws"
	RelCasts           RelationKind = "casts"
	RelChecks          RelationKind = "checks"
	RelUses            RelationKind = "uses"
	RelAnnotatedBy     RelationKind = "annotated_by"
	RelParametrizedBy  RelationKind = "parametrized_by"
	RelOverrides       RelationKind = "overrides"
	RelHasBaseType     RelationKind = "has_base_type"
	RelHasTypeArgument RelationKind = "has_type_argument"
	RelHasUpperBound   RelationKind = "has_upper_bound"
	RelHasLowerBound   RelationKind = "has_lower_bound"
	RelHasElementsOf   RelationKind = "has_elements_of"
	RelMatches         RelationKind = "matches"
)

// IsReferential reports whether relations of kind k belong to the
// referential stage.
func (k RelationKind) IsReferential() bool {
	return k == RelCalls || k == RelReads || k == RelWrites
}

// Provenance classifies where a resolved entity lives relative to the
// project that referenced it.
type Provenance string

const (
	Internal        Provenance = "INTERNAL"
	External        Provenance = "EXTERNAL"
	PlatformLibrary Provenance = "PLATFORM_LIBRARY"
	MixedExternal   Provenance = "MIXED_EXTERNAL"
	Unknown         Provenance = "UNKNOWN"
	NotApplicable   Provenance = "NOT_APPLICABLE"
)

// Symbol graph domain types

type Project struct {
	ID          int64
	Name        string
	Kind        ProjectKind
	Hash        string
	Path        string
	Description string
	Version     string
	Group       string
	Marker      Marker
}

type File struct {
	ID        int64
	ProjectID int64
	Path      string
	Kind      string
	Hash      string
}

type Entity struct {
	ID              int64
	Kind            EntityKind
	FQN             string
	Signature       string
	ErasedSignature string
	Modifiers       []string
	Multi           int
	Position        *int
	Provenance      *Provenance
	ProjectID       int64
	OriginProjectID *int64
	FileID          *int64
	Offset          *int
	Length          *int
	Stage           Stage
}

// Name returns the entity's fqn with its signature appended.
func (e *Entity) Name() string {
	return e.FQN + e.Signature
}

type Relation struct {
	ID         int64
	Kind       RelationKind
	LHS        int64
	RHS        int64
	Provenance Provenance
	ProjectID  int64
	FileID     *int64
	Offset     *int
	Length     *int
	Position   *int
	Stage      Stage
}

type Import struct {
	ID         int64
	ProjectID  int64
	FileID     int64
	EntityID   int64
	Provenance Provenance
	OnDemand   bool
	Static     bool
	Offset     *int
	Length     *int
}

type Comment struct {
	ID        int64
	Kind      string
	ProjectID int64
	FileID    *int64
	EntityID  *int64
	Offset    *int
	Length    *int
}

type Problem struct {
	ID        int64
	ProjectID int64
	FileID    int64
	Kind      string
	ErrorCode int
	Message   string
}

type Metric struct {
	ID        int64
	ProjectID int64
	FileID    *int64
	EntityID  *int64
	Kind      string
	Value     float64
	Stage     Stage
}

type Dependency struct {
	ProjectID   int64
	DependsOnID int64
}

// Run is one invocation of an import command.
type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Report     string
}
