package bundle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jward/linkage/internal/store"
)

const maxLineBytes = 16 << 20

// Entry is a discovered bundle: where it lives and what it describes.
type Entry struct {
	Ref      string
	Manifest Manifest
}

// Loader reads bundles from a Source.
type Loader struct {
	src Source
	log *zap.Logger
}

// NewLoader returns a Loader over src. A nil log discards output.
func NewLoader(src Source, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{src: src, log: log}
}

// Discover returns the manifests of every bundle in the source whose kind
// is one of kinds (all kinds when none are given). Bundles with invalid
// manifests are logged and skipped.
func (l *Loader) Discover(ctx context.Context, kinds ...store.ProjectKind) ([]Entry, error) {
	refs, err := l.src.List(ctx)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, ref := range refs {
		m, err := l.Manifest(ctx, ref)
		if err != nil {
			l.log.Warn("skipping bundle", zap.String("bundle", ref), zap.Error(err))
			continue
		}
		if !kindIn(m.Kind, kinds) {
			continue
		}
		entries = append(entries, Entry{Ref: ref, Manifest: m})
	}
	return entries, nil
}

func kindIn(k store.ProjectKind, kinds []store.ProjectKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// Manifest reads and validates the manifest of one bundle.
func (l *Loader) Manifest(ctx context.Context, ref string) (Manifest, error) {
	var m Manifest
	rc, err := l.src.Open(ctx, ref, ManifestFile)
	if err != nil {
		return m, err
	}
	defer rc.Close()
	if err := yaml.NewDecoder(rc).Decode(&m); err != nil {
		return m, fmt.Errorf("decode %s/%s: %w", ref, ManifestFile, err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

// Load reads a whole bundle. Missing record files are treated as empty;
// malformed lines are logged, skipped and counted in Bundle.Dropped.
func (l *Loader) Load(ctx context.Context, ref string) (*Bundle, error) {
	m, err := l.Manifest(ctx, ref)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Ref: ref, Manifest: m}
	steps := []error{
		readRecords(ctx, l, b, FilesFile, &b.Files),
		readRecords(ctx, l, b, EntitiesFile, &b.Entities),
		readRecords(ctx, l, b, RelationsFile, &b.Relations),
		readRecords(ctx, l, b, ImportsFile, &b.Imports),
		readRecords(ctx, l, b, CommentsFile, &b.Comments),
		readRecords(ctx, l, b, LocalsFile, &b.Locals),
		readRecords(ctx, l, b, ProblemsFile, &b.Problems),
	}
	if err := errors.Join(steps...); err != nil {
		return nil, err
	}
	return b, nil
}

func readRecords[T any](ctx context.Context, l *Loader, b *Bundle, name string, dst *[]T) error {
	rc, err := l.src.Open(ctx, b.Ref, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	dropped, err := decodeLines(rc, func(line int, data []byte) error {
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			l.log.Warn("dropping malformed record",
				zap.String("bundle", b.Ref), zap.String("file", name), zap.Int("line", line), zap.Error(err))
			return err
		}
		*dst = append(*dst, rec)
		return nil
	})
	b.Dropped += dropped
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", b.Ref, name, err)
	}
	return nil
}

// decodeLines calls fn for every non-blank line of r. Errors from fn count
// as dropped lines; only read errors are returned.
func decodeLines(r io.Reader, fn func(line int, data []byte) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	dropped, line := 0, 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			dropped++
		}
	}
	return dropped, sc.Err()
}
