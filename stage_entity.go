package linkage

import (
	"sort"

	"go.uber.org/zap"

	"github.com/jward/linkage/internal/resolve"
	"github.com/jward/linkage/internal/store"
)

// Metric kinds the entity stage derives from per-file counts.
const (
	metricCommentLOC          = "comment_loc"
	metricClassCommentLOC     = "class_comment_loc"
	metricNonWhitespaceLOC    = "non_whitespace_loc"
	metricCommentDensity      = "comment_density"
	metricClassCommentDensity = "class_comment_density"
)

// importEntities buffers a project's files, metrics, problems, declared
// dependencies and declared entities.
func (imp *Importer) importEntities(pr *projectRun) error {
	if err := imp.entityFiles(pr); err != nil {
		return err
	}
	if err := imp.entityProblems(pr); err != nil {
		return err
	}
	if err := imp.entityDependencies(pr); err != nil {
		return err
	}
	return imp.entityDeclarations(pr)
}

func (imp *Importer) entityFiles(pr *projectRun) error {
	pid := pr.project.ID
	pr.files = make(map[string]int64, len(pr.bundle.Files))
	totals := make(map[string]float64)
	for _, rec := range pr.bundle.Files {
		if rec.Path == "" {
			pr.drop("missing_path", "file")
			continue
		}
		if _, ok := pr.files[rec.Path]; ok {
			pr.drop("duplicate", "file", zap.String("path", rec.Path))
			continue
		}
		id, err := pr.batch.InsertFile(&store.File{ProjectID: pid, Path: rec.Path, Kind: rec.Kind, Hash: rec.Hash})
		if err != nil {
			return err
		}
		pr.files[rec.Path] = id
		for _, kind := range sortedKeys(rec.Metrics) {
			v := rec.Metrics[kind]
			if _, err := pr.batch.InsertMetric(&store.Metric{
				ProjectID: pid, FileID: &id, Kind: kind, Value: v, Stage: store.StageEntity,
			}); err != nil {
				return err
			}
			totals[kind] += v
		}
	}

	if loc := totals[metricNonWhitespaceLOC]; loc > 0 {
		if c, ok := totals[metricCommentLOC]; ok {
			totals[metricCommentDensity] = c / loc
		}
		if c, ok := totals[metricClassCommentLOC]; ok {
			totals[metricClassCommentDensity] = c / loc
		}
	}
	for _, kind := range sortedKeys(totals) {
		if _, err := pr.batch.InsertMetric(&store.Metric{
			ProjectID: pid, Kind: kind, Value: totals[kind], Stage: store.StageEntity,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) entityProblems(pr *projectRun) error {
	for _, rec := range pr.bundle.Problems {
		fid, ok := pr.files[rec.Path]
		if !ok {
			pr.drop("unmapped_path", "problem", zap.String("path", rec.Path))
			continue
		}
		if _, err := pr.batch.InsertProblem(&store.Problem{
			ProjectID: pr.project.ID,
			FileID:    fid,
			Kind:      rec.Kind,
			ErrorCode: rec.ErrorCode,
			Message:   rec.Message,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) entityDependencies(pr *projectRun) error {
	seen := make(map[int64]bool)
	for _, hash := range pr.bundle.Manifest.DependsOn {
		dep, err := imp.store.ProjectByHash(hash)
		if err != nil {
			return err
		}
		if dep == nil {
			pr.drop("unknown_dependency", "dependency", zap.String("hash", hash))
			continue
		}
		if dep.ID == pr.project.ID || seen[dep.ID] {
			continue
		}
		seen[dep.ID] = true
		if err := pr.batch.AddDependency(store.Dependency{ProjectID: pr.project.ID, DependsOnID: dep.ID}); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) entityDeclarations(pr *projectRun) error {
	declared := make(map[string]bool, len(pr.bundle.Entities))
	for _, rec := range pr.bundle.Entities {
		if !declarable(rec.Kind) {
			pr.drop("bad_kind", "entity", zap.String("name", rec.Name()), zap.String("kind", string(rec.Kind)))
			continue
		}
		name := rec.Name()
		if declared[name] {
			if rec.Kind != store.KindPackage {
				pr.dropped["duplicate"]++
				pr.log.Error("duplicate declaration", zap.String("name", name), zap.String("kind", string(rec.Kind)))
			}
			continue
		}
		fid, ok := pr.fileID(rec.Path)
		if !ok {
			pr.drop("unmapped_path", "entity", zap.String("name", name), zap.String("path", rec.Path))
			continue
		}
		declared[name] = true
		if _, err := pr.batch.InsertEntity(&store.Entity{
			Kind:            rec.Kind,
			FQN:             rec.FQN,
			Signature:       rec.Signature,
			ErasedSignature: resolve.EraseSignature(rec.Signature),
			Modifiers:       rec.Modifiers,
			ProjectID:       pr.project.ID,
			FileID:          fid,
			Offset:          rec.Offset,
			Length:          rec.Length,
			Stage:           store.StageEntity,
		}); err != nil {
			return err
		}
	}
	return nil
}

// declarable reports whether a bundle may declare an entity of kind k in
// its entity records.
func declarable(k store.EntityKind) bool {
	switch k {
	case store.KindPackage, store.KindClass, store.KindInterface, store.KindEnum, store.KindAnnotation,
		store.KindInitializer, store.KindMethod, store.KindConstructor, store.KindField,
		store.KindEnumConstant, store.KindAnnotationElement:
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
