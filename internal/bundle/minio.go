package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jward/linkage/internal/config"
)

// MinioSource serves bundles stored under a prefix of an object-store
// bucket, one key prefix per bundle.
type MinioSource struct {
	mc     *minio.Client
	bucket string
	prefix string
}

var _ Source = (*MinioSource)(nil)

// NewMinioSource connects to the configured endpoint. No request is made
// until the first List or Open.
func NewMinioSource(cfg config.MinIOConfig) (*MinioSource, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioSource{mc: mc, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (m *MinioSource) key(parts ...string) string {
	if m.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{m.prefix}, parts...)...)
}

// List returns every bundle prefix that holds a manifest object.
func (m *MinioSource) List(ctx context.Context) ([]string, error) {
	// Cancelling stops the listing goroutine when we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts := minio.ListObjectsOptions{Recursive: true}
	if m.prefix != "" {
		opts.Prefix = m.prefix + "/"
	}
	var refs []string
	for obj := range m.mc.ListObjects(ctx, m.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bundles in %s/%s: %w", m.bucket, m.prefix, obj.Err)
		}
		if path.Base(obj.Key) != ManifestFile {
			continue
		}
		ref := strings.TrimPrefix(path.Dir(obj.Key), opts.Prefix)
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

func (m *MinioSource) Open(ctx context.Context, ref, name string) (io.ReadCloser, error) {
	key := m.key(ref, name)
	obj, err := m.mc.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return obj, nil
}
