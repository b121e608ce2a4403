// internal/adapters/storage/factory.go
package storage

import (
	"context"
	"log/slog"

	"github.com/ammerola/storefront-be/internal/core/ports"
	"github.com/ammerola/storefront-be/internal/pkg/config"
)

// New builds the object storage selected by cfg.Provider
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.ObjectStorage, error) {
	if cfg.Provider == "s3" {
		return NewS3Storage(ctx, &S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
			UsePathStyle:    cfg.UsePathStyle,
		}, logger)
	}

	logger.Info("using local object storage", slog.String("path", cfg.LocalPath))
	return NewLocalStorage(cfg.LocalPath, cfg.PublicBaseURL, logger), nil
}
