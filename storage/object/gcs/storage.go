package gcsstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/vocsite/chuo/core"
)

// Storage serves the gateway's binary side from a GCS bucket.
type Storage struct {
	client *storage.Client
	bucket string
}

var _ core.ObjectStorage = (*Storage)(nil)

func New(ctx context.Context, conf *core.Config) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS client")
	}
	return &Storage{client: client, bucket: conf.Storage.Bucket}, nil
}

func (s *Storage) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.CloseWithError(err)
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(w.Close(), "closing %s", path)
}

func (s *Storage) PublicURL(path string) string {
	return "https://storage.googleapis.com/" + s.bucket + "/" + path
}

func (s *Storage) Remove(ctx context.Context, path string) error {
	return errors.Wrapf(s.client.Bucket(s.bucket).Object(path).Delete(ctx), "deleting %s", path)
}

func (s *Storage) Close() error {
	return s.client.Close()
}
