package storage

import (
	"context"

	"github.com/spherical/pdf2jpeg/internal/config"
	"github.com/spherical/pdf2jpeg/internal/domain"
)

// New returns the sink for the configured destination.
func New(ctx context.Context, cfg config.OutputConfig) (domain.Sink, error) {
	c := config.Config{Output: cfg}
	if c.IsS3Destination() {
		return NewS3Sink(ctx, cfg.Destination, S3Options{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Insecure:  cfg.S3.Insecure,
		})
	}
	return NewLocalSink(cfg.Destination)
}
