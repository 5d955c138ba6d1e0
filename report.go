package linkage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jward/linkage/internal/resolve"
	"github.com/jward/linkage/internal/store"
)

// Report summarises one import run.
type Report struct {
	RunID     string            `json:"run_id"`
	Command   string            `json:"command"`
	Kind      store.ProjectKind `json:"kind"`
	Projects  int               `json:"projects"`
	Recovered []string          `json:"recovered,omitempty"`
	Stages    []*StageReport    `json:"stages"`
	// UnknownStubs counts the unknown entities this run created.
	UnknownStubs int `json:"unknown_stubs"`
}

// StageReport holds the per-stage counts of a run. Workers update it
// concurrently through its methods.
type StageReport struct {
	mu          sync.Mutex
	Stage       string                   `json:"stage"`
	Committed   []string                 `json:"committed,omitempty"`
	Skipped     []string                 `json:"skipped,omitempty"`
	Failed      []string                 `json:"failed,omitempty"`
	Rows        map[string]int           `json:"rows"`
	Dropped     map[string]int           `json:"dropped"`
	Resolutions map[store.Provenance]int `json:"resolutions"`
	Duration    time.Duration            `json:"duration_ns"`
}

func newStageReport(s store.Stage) *StageReport {
	return &StageReport{
		Stage:       s.String(),
		Rows:        make(map[string]int),
		Dropped:     make(map[string]int),
		Resolutions: make(map[store.Provenance]int),
	}
}

func (r *StageReport) committed(project string, rows map[string]int, dropped map[string]int, stats resolve.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Committed = append(r.Committed, project)
	for k, n := range rows {
		r.Rows[k] += n
	}
	for k, n := range dropped {
		r.Dropped[k] += n
	}
	for k, n := range stats {
		r.Resolutions[k] += n
	}
}

func (r *StageReport) skipped(project string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, project)
}

func (r *StageReport) failed(project string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, project)
}

// finish sorts the project lists so reports do not depend on scheduling.
func (r *StageReport) finish(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Strings(r.Committed)
	sort.Strings(r.Skipped)
	sort.Strings(r.Failed)
	r.Duration = d
}

// Stage returns the report of the named stage, or nil if it did not run.
func (r *Report) Stage(s store.Stage) *StageReport {
	for _, st := range r.Stages {
		if st.Stage == s.String() {
			return st
		}
	}
	return nil
}

// JSON renders the report for the import_runs table.
func (r *Report) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

// WriteText prints the per-stage counts in a human readable form.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%s: %d project(s)", r.Command, r.Projects)
	if len(r.Recovered) > 0 {
		fmt.Fprintf(w, ", recovered %s", strings.Join(r.Recovered, ", "))
	}
	fmt.Fprintln(w)
	for _, st := range r.Stages {
		fmt.Fprintf(w, "  %-12s committed=%d skipped=%d failed=%d rows=%d dropped=%d (%s)\n",
			st.Stage, len(st.Committed), len(st.Skipped), len(st.Failed),
			sum(st.Rows), sum(st.Dropped), st.Duration.Round(time.Millisecond))
		for _, name := range st.Skipped {
			fmt.Fprintf(w, "    skipped %s: dependencies not ready\n", name)
		}
	}
	fmt.Fprintf(w, "  unknown stubs created: %d\n", r.UnknownStubs)
}

func sum[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
