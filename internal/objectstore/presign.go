// Package objectstore issues presigned URLs for document preview and
// download. The object store itself is external; this service never reads or
// writes object contents.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPresignExpiry = 15 * time.Minute

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration
}

// Presigner produces time-limited GET URLs for stored documents.
type Presigner struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func New(cfg Config) (*Presigner, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}

	return &Presigner{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
	}, nil
}

// PresignGet returns a presigned download URL for the named object.
func (p *Presigner) PresignGet(ctx context.Context, object string) (string, error) {
	if object == "" {
		return "", fmt.Errorf("object name is required")
	}

	u, err := p.client.PresignedGetObject(ctx, p.bucket, object, p.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object url: %w", err)
	}
	return u.String(), nil
}
