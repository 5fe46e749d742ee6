package storage

import (
	"context"
	"fmt"

	"github.com/zpx01/video-scraper/internal/domain"
)

// New dispatches on cfg.Backend to build the configured domain.StorageBackend
// (§4.5). Grounded on original_source/src/storage.rs's StorageManager::new
// match arm.
func New(ctx context.Context, cfg domain.StorageConfig) (domain.StorageBackend, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath), nil
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "gcs":
		return NewGCSStorage(ctx, cfg)
	default:
		return nil, domain.NewScraperError(domain.KindConfig, "New",
			fmt.Errorf("%w: %s", domain.ErrUnknownBackend, cfg.Backend))
	}
}
