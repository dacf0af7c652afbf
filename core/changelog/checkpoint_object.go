package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"provisioner/core/provision"
	"provisioner/core/storage"

	"github.com/minio/minio-go/v7"
)

// ObjectStore keeps one checkpoint as a JSON object in the object store.
type ObjectStore struct {
	client storage.Client
	bucket string
	key    string
}

// NewObjectStore creates a store writing to key in bucket.
func NewObjectStore(client storage.Client, bucket, key string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, key: key}
}

func (s *ObjectStore) Load(ctx context.Context, name string) (provision.Checkpoint, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		if storage.IsNoSuchKey(err) {
			return provision.Checkpoint{Name: name}, nil
		}
		return provision.Checkpoint{}, fmt.Errorf("failed to read checkpoint %s: %w", s.key, err)
	}
	defer obj.Close()

	// minio reports a missing key on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			return provision.Checkpoint{Name: name}, nil
		}
		return provision.Checkpoint{}, fmt.Errorf("failed to read checkpoint %s: %w", s.key, err)
	}

	var cp provision.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return provision.Checkpoint{}, fmt.Errorf("failed to decode checkpoint %s: %w", s.key, err)
	}
	if cp.Name != name {
		return provision.Checkpoint{}, fmt.Errorf("checkpoint %s belongs to %q, not %q", s.key, cp.Name, name)
	}
	return cp, nil
}

func (s *ObjectStore) Save(ctx context.Context, cp provision.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", s.key, err)
	}
	return nil
}
