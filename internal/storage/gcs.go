package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/zpx01/video-scraper/internal/domain"
)

// GCSStorage stores objects in a Google Cloud Storage bucket (§4.5, §13 —
// the original implementation stubs this backend with
// "GCS storage not yet implemented"; this project completes it since the
// rest of the pack carries cloud.google.com/go/storage as a real
// dependency).
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSStorage builds a GCSStorage from cfg, using application-default
// credentials.
func NewGCSStorage(ctx context.Context, cfg domain.StorageConfig) (*GCSStorage, error) {
	if cfg.GCSBucket == "" {
		return nil, domain.NewScraperError(domain.KindConfig, "NewGCSStorage", errors.New("gcs bucket name required"))
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, domain.NewScraperError(domain.KindConfig, "NewGCSStorage", err)
	}
	return &GCSStorage{client: client, bucket: cfg.GCSBucket}, nil
}

// fullKey returns key unchanged: the caller (the pipeline's storage_key
// construction, §4.4 step 6) already owns prefixing with KeyPrefix, the
// same way LocalStorage treats its incoming key as authoritative.
func (s *GCSStorage) fullKey(key string) string {
	return key
}

func (s *GCSStorage) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.fullKey(key))
}

// Put uploads r to key.
func (s *GCSStorage) Put(ctx context.Context, key string, r io.Reader) (domain.ObjectMetadata, error) {
	w := s.object(key).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	if err := w.Close(); err != nil {
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	now := time.Now()
	return domain.ObjectMetadata{Key: s.fullKey(key), SizeBytes: n, LastModified: &now}, nil
}

// PutFile opens localPath and uploads it via Put.
func (s *GCSStorage) PutFile(ctx context.Context, key, localPath string) (domain.ObjectMetadata, error) {
	f, err := openFile(localPath)
	if err != nil {
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "PutFile", err)
	}
	defer f.Close()
	return s.Put(ctx, key, f)
}

// Get opens key for reading. Callers must Close the returned reader.
func (s *GCSStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.NewScraperError(domain.KindNotFound, "Get", domain.ErrNotFound)
		}
		return nil, domain.NewScraperError(domain.KindIO, "Get", err)
	}
	return r, nil
}

// GetFile downloads key to localPath.
func (s *GCSStorage) GetFile(ctx context.Context, key, localPath string) error {
	r, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	return writeFile(localPath, r)
}

// Exists reports whether key is present.
func (s *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, domain.NewScraperError(domain.KindIO, "Exists", err)
	}
	return true, nil
}

// Delete removes key.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return domain.NewScraperError(domain.KindIO, "Delete", err)
	}
	return nil
}

// List enumerates every object under prefix.
func (s *GCSStorage) List(ctx context.Context, prefix string) ([]domain.ObjectMetadata, error) {
	var results []domain.ObjectMetadata
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.fullKey(prefix)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, domain.NewScraperError(domain.KindIO, "List", err)
		}
		updated := attrs.Updated
		results = append(results, domain.ObjectMetadata{
			Key:          attrs.Name,
			SizeBytes:    attrs.Size,
			ContentType:  attrs.ContentType,
			ETag:         attrs.Etag,
			LastModified: &updated,
		})
	}
	return results, nil
}

// Metadata returns the object's attributes.
func (s *GCSStorage) Metadata(ctx context.Context, key string) (domain.ObjectMetadata, error) {
	attrs, err := s.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindNotFound, "Metadata", domain.ErrNotFound)
		}
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Metadata", err)
	}
	updated := attrs.Updated
	return domain.ObjectMetadata{
		Key:          attrs.Name,
		SizeBytes:    attrs.Size,
		ContentType:  attrs.ContentType,
		ETag:         attrs.Etag,
		LastModified: &updated,
	}, nil
}

// BackendType identifies this backend for logging and diagnostics.
func (s *GCSStorage) BackendType() string { return "gcs" }
