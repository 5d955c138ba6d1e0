package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jward/linkage"
	"github.com/jward/linkage/internal/store"
)

// CLIResult is the top-level JSON envelope for query commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
}

type CLIProject struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Hash    string `json:"hash"`
	Version string `json:"version,omitempty"`
	Marker  string `json:"marker"`
}

type CLIEntity struct {
	ID         int64    `json:"id"`
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	Project    string   `json:"project"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Position   string   `json:"position,omitempty"`
	Provenance string   `json:"provenance,omitempty"`
	Stage      string   `json:"stage"`
}

type CLIRelation struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	From       string `json:"from"`
	FromID     int64  `json:"from_id"`
	To         string `json:"to"`
	ToID       int64  `json:"to_id"`
	Provenance string `json:"provenance"`
	Project    string `json:"project"`
	Stage      string `json:"stage"`
}

// outputResult writes a result in the selected format.
func outputResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIProject:
		formatProjectsText(w, v)
	case []CLIEntity:
		formatEntitiesText(w, v)
	case []CLIRelation:
		formatRelationsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatProjectsText(w io.Writer, projects []CLIProject) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tMARKER\tHASH")
	for _, p := range projects {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Kind, p.Marker, p.Hash)
	}
	tw.Flush()
}

func formatEntitiesText(w io.Writer, entities []CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tNAME\tPROJECT\tSTAGE")
	for _, e := range entities {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Name, e.Project, e.Stage)
	}
	tw.Flush()
}

func formatRelationsText(w io.Writer, rels []CLIRelation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFROM\tTO\tPROVENANCE\tPROJECT")
	for _, r := range rels {
		from := fmt.Sprintf("%s (#%d)", r.From, r.FromID)
		to := fmt.Sprintf("%s (#%d)", r.To, r.ToID)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Kind, from, to, r.Provenance, r.Project)
	}
	tw.Flush()
}

// outputReport prints an import report: per-stage counts in text mode, the
// report itself in JSON mode.
func outputReport(w io.Writer, rep *linkage.Report) error {
	if flagFormat == "text" {
		rep.WriteText(w)
		return nil
	}
	_, err := fmt.Fprintln(w, rep.JSON())
	return err
}

func outputDangling(w io.Writer, d store.Dangling) error {
	if flagFormat != "text" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResult{Command: "check", Results: d})
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tDANGLING")
	fmt.Fprintf(tw, "relations\t%d\n", d.Relations)
	fmt.Fprintf(tw, "imports\t%d\n", d.Imports)
	fmt.Fprintf(tw, "comments\t%d\n", d.Comments)
	fmt.Fprintf(tw, "metrics\t%d\n", d.Metrics)
	tw.Flush()
	if len(d.RelationIDs) > 0 {
		ids := make([]string, len(d.RelationIDs))
		for i, id := range d.RelationIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(w, "sample relation ids: %s\n", strings.Join(ids, ", "))
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
