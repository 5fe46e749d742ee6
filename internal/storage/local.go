package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zpx01/video-scraper/internal/domain"
)

// LocalStorage stores objects under a base directory, writing via a
// temp-file-then-rename so a reader never observes a partially written
// object (§4.5).
type LocalStorage struct {
	basePath string
}

// NewLocalStorage builds a LocalStorage rooted at basePath.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) fullPath(key string) string {
	return filepath.Join(s.basePath, key)
}

// Put writes r's contents atomically to key.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader) (domain.ObjectMetadata, error) {
	path := s.fullPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Put", err)
	}

	now := time.Now()
	return domain.ObjectMetadata{Key: key, SizeBytes: n, LastModified: &now}, nil
}

// PutFile copies a local file's contents to key via Put.
func (s *LocalStorage) PutFile(ctx context.Context, key, localPath string) (domain.ObjectMetadata, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "PutFile", err)
	}
	defer f.Close()
	return s.Put(ctx, key, f)
}

// Get opens key for reading. Callers must Close the returned reader.
func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewScraperError(domain.KindNotFound, "Get", domain.ErrNotFound)
		}
		return nil, domain.NewScraperError(domain.KindIO, "Get", err)
	}
	return f, nil
}

// GetFile copies key to localPath.
func (s *LocalStorage) GetFile(ctx context.Context, key, localPath string) error {
	r, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return domain.NewScraperError(domain.KindIO, "GetFile", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return domain.NewScraperError(domain.KindIO, "GetFile", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return domain.NewScraperError(domain.KindIO, "GetFile", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, domain.NewScraperError(domain.KindIO, "Exists", err)
}

// Delete removes key if present; deleting an absent key is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return domain.NewScraperError(domain.KindIO, "Delete", err)
	}
	return nil
}

// List walks every file under prefix recursively. Unlike the original
// implementation's single-level read_dir, a video-scraper deployment may
// key objects under date/host-partitioned subdirectories, so an operator
// listing a prefix expects every object beneath it, not just the immediate
// children (§9).
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]domain.ObjectMetadata, error) {
	root := s.fullPath(prefix)
	var results []domain.ObjectMetadata

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return results, nil
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		modTime := info.ModTime()
		results = append(results, domain.ObjectMetadata{
			Key:          filepath.ToSlash(rel),
			SizeBytes:    info.Size(),
			LastModified: &modTime,
		})
		return nil
	})
	if err != nil {
		return nil, domain.NewScraperError(domain.KindIO, "List", err)
	}
	return results, nil
}

// Metadata returns size and modification time for key.
func (s *LocalStorage) Metadata(ctx context.Context, key string) (domain.ObjectMetadata, error) {
	info, err := os.Stat(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindNotFound, "Metadata", domain.ErrNotFound)
		}
		return domain.ObjectMetadata{}, domain.NewScraperError(domain.KindIO, "Metadata", err)
	}
	modTime := info.ModTime()
	return domain.ObjectMetadata{Key: key, SizeBytes: info.Size(), LastModified: &modTime}, nil
}

// BackendType identifies this backend for logging and diagnostics.
func (s *LocalStorage) BackendType() string { return "local" }
