package linkage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/linkage/internal/metrics"
	"github.com/jward/linkage/internal/store"
)

// Action is what the controller does with a project found at some marker
// on startup.
type Action struct {
	// Purge is the first stage whose rows must be deleted, or StageNone
	// when the project is clean.
	Purge store.Stage
	// Reset is the marker written by the purge.
	Reset store.Marker
	// Next is the first stage still to run, StageDone when none is left.
	Next store.Stage
}

// Plan maps a persisted marker to its recovery action. A dirty marker
// purges its stage and everything after it and rewinds to the previous END
// marker.
func Plan(m store.Marker) Action {
	if m.Dirty {
		reset := store.End(m.Stage - 1)
		if m.Stage <= store.StageEntity {
			reset = store.Marker{}
		}
		return Action{Purge: m.Stage, Reset: reset, Next: m.Stage}
	}
	switch m.Stage {
	case store.StageNone:
		return Action{Next: store.StageEntity}
	case store.StageDone:
		return Action{Next: store.StageDone}
	}
	return Action{Next: m.Stage + 1}
}

// reached reports whether a project at marker m has finished stage s.
func reached(m store.Marker, s store.Stage) bool {
	if s == store.StageNone {
		return true
	}
	return m.Stage > s || (m.Stage == s && !m.Dirty)
}

// recover purges every dirty project in jobs and refreshes their markers.
func (imp *Importer) recover(jobs []*job, rep *Report) error {
	for _, j := range jobs {
		m, err := imp.store.Marker(j.project.ID)
		if err != nil {
			return fmt.Errorf("read marker of %s: %w", j.project.Name, err)
		}
		act := Plan(m)
		if act.Purge != store.StageNone {
			imp.log.Warn("recovering interrupted stage",
				zap.String("project", j.project.Name),
				zap.Stringer("marker", m),
				zap.Stringer("reset", act.Reset))
			if err := imp.store.PurgeStage(j.project.ID, act.Purge, act.Reset); err != nil {
				return err
			}
			m = act.Reset
			rep.Recovered = append(rep.Recovered, j.project.Name)
			imp.metrics.Projects.WithLabelValues(act.Purge.String(), metrics.OutcomeRecovered).Inc()
		}
		j.project.Marker = m
	}
	return nil
}
