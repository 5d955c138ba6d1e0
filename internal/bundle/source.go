package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Source enumerates bundles and opens their files. Open returns an error
// wrapping fs.ErrNotExist for a missing file.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, ref, name string) (io.ReadCloser, error)
}

// DirSource serves bundles stored as subdirectories of Root.
type DirSource struct {
	Root string
}

var _ Source = DirSource{}

// List returns the subdirectories of Root that contain a manifest.
func (d DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("list bundles in %s: %w", d.Root, err)
	}
	var refs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(d.Root, e.Name(), ManifestFile)); err == nil {
			refs = append(refs, e.Name())
		}
	}
	sort.Strings(refs)
	return refs, nil
}

func (d DirSource) Open(ctx context.Context, ref, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Root, ref, name))
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", ref, name, err)
	}
	return f, nil
}
