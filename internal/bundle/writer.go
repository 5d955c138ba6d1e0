package bundle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Writer lays bundles out as subdirectories of Root, the format DirSource
// reads.
type Writer struct {
	Root string
}

// Write stores b under Root/ref. Empty record sets produce no file.
func (w Writer) Write(ref string, b *Bundle) error {
	dir := filepath.Join(w.Root, ref)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	data, err := yaml.Marshal(&b.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return firstErr(
		writeRecords(dir, FilesFile, b.Files),
		writeRecords(dir, EntitiesFile, b.Entities),
		writeRecords(dir, RelationsFile, b.Relations),
		writeRecords(dir, ImportsFile, b.Imports),
		writeRecords(dir, CommentsFile, b.Comments),
		writeRecords(dir, LocalsFile, b.Locals),
		writeRecords(dir, ProblemsFile, b.Problems),
	)
}

func writeRecords[T any](dir, name string, records []T) error {
	if len(records) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encode %s: %w", name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return f.Close()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
