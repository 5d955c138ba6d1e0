package linkage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jward/linkage/internal/bundle"
	"github.com/jward/linkage/internal/metrics"
	"github.com/jward/linkage/internal/resolve"
	"github.com/jward/linkage/internal/store"
)

// Commands recorded in import_runs for each project kind.
var commands = map[store.ProjectKind]string{
	store.ProjectPlatform: "import-platform-libraries",
	store.ProjectArchive:  "import-archives",
	store.ProjectSource:   "import-source-projects",
}

// Import runs the staged pipeline over every bundle of the given kind in
// src:
//
//	Entity:      files, entities, metrics, problems, dependencies.
//	Structural:  locals, type relations, imports, comments.
//	Referential: calls, reads and writes.
//
// Stages run in order over all selected projects with a barrier between
// them. Projects interrupted by an earlier run are purged back to their
// last completed stage first. The returned report is populated even when
// the import fails.
func (imp *Importer) Import(ctx context.Context, src bundle.Source, kind store.ProjectKind) (*Report, error) {
	command, ok := commands[kind]
	if !ok {
		return nil, fmt.Errorf("linkage: cannot import projects of kind %q", kind)
	}
	sentinels, err := imp.store.SentinelProjects()
	if err != nil {
		return nil, fmt.Errorf("linkage: %w", err)
	}
	run, err := imp.store.StartRun(command)
	if err != nil {
		return nil, err
	}
	rep := &Report{RunID: run.ID, Command: command, Kind: kind}

	err = imp.runPipeline(ctx, src, kind, sentinels, rep)
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	if ferr := imp.store.FinishRun(run, status, rep.JSON()); ferr != nil && err == nil {
		err = ferr
	}
	return rep, err
}

func (imp *Importer) runPipeline(ctx context.Context, src bundle.Source, kind store.ProjectKind, sentinels store.Sentinels, rep *Report) error {
	loader := bundle.NewLoader(src, imp.log)
	jobs, err := imp.register(ctx, loader, kind)
	if err != nil {
		return err
	}
	rep.Projects = len(jobs)
	imp.log.Info("import started",
		zap.String("command", rep.Command), zap.Int("projects", len(jobs)), zap.Int("threads", imp.threads))
	if len(jobs) == 0 {
		return nil
	}
	if err := imp.recover(jobs, rep); err != nil {
		return err
	}

	unknowns, err := resolve.NewUnknownCache(imp.store, sentinels.Unknowns)
	if err != nil {
		return err
	}
	defer func() { rep.UnknownStubs = unknowns.Created() }()

	stages := []store.Stage{store.StageEntity, store.StageStructural, store.StageReferential}
	if imp.structuralOnly {
		stages = stages[:2]
	}
	for _, stage := range stages {
		shared := &resolve.Shared{
			Store:     imp.store,
			Sentinels: sentinels,
			Unknowns:  unknowns,
			Logger:    imp.log,
		}
		if stage > store.StageEntity {
			lib, err := resolve.BuildLibraryIndex(imp.store)
			if err != nil {
				return err
			}
			shared.Library = lib
		}
		if err := imp.runStage(ctx, stage, jobs, loader, shared, rep); err != nil {
			return err
		}
		if err := imp.scan(stage); err != nil {
			return err
		}
	}
	imp.log.Info("import finished", zap.String("command", rep.Command), zap.Int("unknown_stubs", unknowns.Created()))
	failed := 0
	for _, st := range rep.Stages {
		failed += len(st.Failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d project(s) could not be loaded", failed)
	}
	return nil
}

// register discovers the bundles of kind and makes sure each selected one
// has a project row.
func (imp *Importer) register(ctx context.Context, loader *bundle.Loader, kind store.ProjectKind) ([]*job, error) {
	entries, err := loader.Discover(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("discover bundles: %w", err)
	}
	var jobs []*job
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.Manifest.Hash] {
			imp.log.Error("duplicate bundle for project",
				zap.String("bundle", e.Ref), zap.String("hash", e.Manifest.Hash))
			continue
		}
		seen[e.Manifest.Hash] = true

		p, err := imp.store.ProjectByHash(e.Manifest.Hash)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = e.Manifest.Project()
			if !imp.selected(p) {
				continue
			}
			if _, err := imp.store.InsertProject(p); err != nil {
				return nil, fmt.Errorf("register %s: %w", e.Ref, err)
			}
		} else if !imp.selected(p) {
			continue
		}
		jobs = append(jobs, &job{ref: e.Ref, project: p})
	}
	return jobs, nil
}

// runStage processes every job that is ready for stage with a pool of
// workers pulling from a shared queue. A worker error cancels the pool:
// in-flight projects finish, nothing new is started.
func (imp *Importer) runStage(ctx context.Context, stage store.Stage, jobs []*job, loader *bundle.Loader, shared *resolve.Shared, rep *Report) error {
	start := time.Now()
	sr := newStageReport(stage)
	rep.Stages = append(rep.Stages, sr)
	log := imp.log.With(zap.String("stage", stage.String()))

	ready, err := imp.ready(stage, jobs, sr, log)
	if err != nil {
		return err
	}
	log.Info("stage started", zap.Int("projects", len(ready)))

	queue := newWorkQueue(ready)
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for range min(imp.threads, max(len(ready), 1)) {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				j, ok := queue.Next()
				if !ok {
					return nil
				}
				err := imp.runProject(gctx, stage, j, loader, shared, sr)
				if err == nil {
					continue
				}
				sr.failed(j.project.Name)
				imp.metrics.Projects.WithLabelValues(stage.String(), metrics.OutcomeFailed).Inc()
				var lerr *loadError
				if errors.As(err, &lerr) {
					log.Error("skipping unreadable bundle", zap.String("project", j.project.Name), zap.Error(err))
					continue
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", j.project.Name, err))
				mu.Unlock()
				return err
			}
		})
	}
	werr := g.Wait()

	sr.finish(time.Since(start))
	imp.metrics.ObserveStage(stage.String(), start)
	log.Info("stage finished",
		zap.Int("committed", len(sr.Committed)),
		zap.Int("skipped", len(sr.Skipped)),
		zap.Int("failed", len(sr.Failed)),
		zap.Duration("elapsed", sr.Duration))

	if len(errs) > 0 {
		return fmt.Errorf("%s stage had %d error(s): %w", stage, len(errs), errs[0])
	}
	if werr != nil {
		return fmt.Errorf("%s stage: %w", stage, werr)
	}
	return nil
}

// ready returns the jobs due for stage, reporting those whose dependencies
// have not finished the previous stage.
func (imp *Importer) ready(stage store.Stage, jobs []*job, sr *StageReport, log *zap.Logger) ([]*job, error) {
	var out []*job
	for _, j := range jobs {
		if j.project.Marker != store.End(stage-1) {
			continue
		}
		if stage > store.StageEntity {
			ok, err := imp.dependenciesReady(j.project, stage-1)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Warn("skipping project, dependencies not ready", zap.String("project", j.project.Name))
				sr.skipped(j.project.Name)
				imp.metrics.Projects.WithLabelValues(stage.String(), metrics.OutcomeSkipped).Inc()
				continue
			}
		}
		out = append(out, j)
	}
	return out, nil
}

func (imp *Importer) dependenciesReady(p *store.Project, required store.Stage) (bool, error) {
	deps, err := imp.store.Dependencies(p.ID)
	if err != nil {
		return false, err
	}
	for _, id := range deps {
		m, err := imp.store.Marker(id)
		if err != nil {
			return false, err
		}
		if !reached(m, required) {
			return false, nil
		}
	}
	return true, nil
}

// runProject runs one stage for one project and commits its batch together
// with the stage's END marker.
func (imp *Importer) runProject(ctx context.Context, stage store.Stage, j *job, loader *bundle.Loader, shared *resolve.Shared, sr *StageReport) error {
	b, err := loader.Load(ctx, j.ref)
	if err != nil {
		return &loadError{ref: j.ref, err: err}
	}
	if err := imp.store.SetMarker(j.project.ID, store.Begin(stage)); err != nil {
		return err
	}
	j.project.Marker = store.Begin(stage)

	pr := &projectRun{
		stage:   stage,
		project: j.project,
		bundle:  b,
		batch:   store.NewBatchedStore(),
		dropped: make(map[string]int),
		log:     imp.log.With(zap.String("project", j.project.Name), zap.String("stage", stage.String())),
	}
	if b.Dropped > 0 && stage == store.StageEntity {
		pr.dropped["malformed"] += b.Dropped
	}

	var stats resolve.Stats
	end := store.End(stage)
	switch stage {
	case store.StageEntity:
		err = imp.importEntities(pr)
	case store.StageStructural:
		stats, err = imp.importStructural(pr, shared)
	case store.StageReferential:
		stats, err = imp.importReferential(pr, shared)
		end = store.End(store.StageDone)
	default:
		err = fmt.Errorf("unknown stage %s", stage)
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := pr.batch.Counts()
	if err := imp.store.CommitBatch(pr.batch, j.project.ID, end); err != nil {
		return err
	}
	j.project.Marker = end

	sr.committed(j.project.Name, rows, pr.dropped, stats)
	imp.metrics.Projects.WithLabelValues(stage.String(), metrics.OutcomeCommitted).Inc()
	imp.metrics.AddRows(stage.String(), rows)
	for reason, n := range pr.dropped {
		imp.metrics.RecordsDropped.WithLabelValues(stage.String(), reason).Add(float64(n))
	}
	for prov, n := range stats {
		imp.metrics.Resolutions.WithLabelValues(stage.String(), string(prov)).Add(float64(n))
	}
	pr.log.Debug("project committed", zap.Any("rows", rows))
	return nil
}

// scan verifies that no committed row points at a missing entity.
func (imp *Importer) scan(stage store.Stage) error {
	d, err := imp.store.DanglingRows()
	if err != nil {
		return err
	}
	if n := d.Total(); n > 0 {
		imp.log.Error("consistency scan found dangling rows",
			zap.String("stage", stage.String()),
			zap.Int("relations", d.Relations),
			zap.Int("imports", d.Imports),
			zap.Int("comments", d.Comments),
			zap.Int("metrics", d.Metrics))
		return fmt.Errorf("%s stage: %w (%d rows)", stage, ErrInconsistent, n)
	}
	return nil
}

// ErrInconsistent is returned when the consistency scan after a stage finds
// rows referencing missing entities.
var ErrInconsistent = errors.New("store is inconsistent")

// loadError marks a bundle that could not be read. It fails only its own
// project; the rest of the stage continues.
type loadError struct {
	ref string
	err error
}

func (e *loadError) Error() string { return fmt.Sprintf("load bundle %s: %v", e.ref, e.err) }
func (e *loadError) Unwrap() error { return e.err }

// projectRun is the state of one project's stage owned by one worker.
type projectRun struct {
	stage   store.Stage
	project *store.Project
	bundle  *bundle.Bundle
	batch   *store.BatchedStore
	files   map[string]int64
	dropped map[string]int
	log     *zap.Logger
}

// drop logs and counts a record that cannot be imported.
func (pr *projectRun) drop(reason, what string, fields ...zap.Field) {
	pr.dropped[reason]++
	pr.log.Warn("dropping "+what, append(fields, zap.String("reason", reason))...)
}

// fileID maps a bundle path to its file row. An empty path has no file.
func (pr *projectRun) fileID(path string) (*int64, bool) {
	if path == "" {
		return nil, true
	}
	id, ok := pr.files[path]
	if !ok {
		return nil, false
	}
	return &id, true
}
