// Package storage provides an abstraction layer over S3-compatible object storage.
//
// It wraps the MinIO Go client behind the Client interface so that components
// storing data as objects (the object directory target and the object
// checkpoint store) can be tested against core/storage/mocks.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	created, err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
