package objectdir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"provisioner/core/naming"
	"provisioner/core/provision"
	"provisioner/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const entryFile = "_entry.json"

// Directory is a provision.TargetAdapter backed by object storage.
// Writes are serialized within one process; concurrent writers in other
// processes are not detected.
type Directory struct {
	client   storage.Client
	bucket   string
	prefix   string
	targetID string
	base     string
	logger   *zap.Logger

	mu sync.Mutex
}

// New creates a directory storing entries under prefix in bucket.
// Entries must lie below base; base itself is implicit.
func New(client storage.Client, bucket, prefix, targetID, base string, logger *zap.Logger) *Directory {
	return &Directory{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		targetID: targetID,
		base:     base,
		logger:   logger,
	}
}

// TargetID implements provision.TargetAdapter.
func (d *Directory) TargetID() string { return d.targetID }

// Canonical implements provision.TargetAdapter.
func (d *Directory) Canonical(objectID string) string { return naming.Canonical(objectID) }

// Lookup implements provision.TargetAdapter.
func (d *Directory) Lookup(ctx context.Context, id provision.Identifier) (*provision.ProvisionedObject, error) {
	key, err := d.entryKey(id.ObjectID)
	if err != nil {
		return nil, err
	}
	return d.read(ctx, key)
}

// Search implements provision.TargetAdapter. Results are ordered by canonical DN.
func (d *Directory) Search(ctx context.Context, filter provision.SearchFilter) ([]provision.Identifier, error) {
	base := filter.Base
	if base == "" {
		base = d.base
	}
	dir, err := d.dir(base)
	if err != nil {
		return nil, err
	}
	depth := naming.Depth(base)

	var ids []provision.Identifier
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: dir + "/", Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("search %s: %w", base, obj.Err)
		}
		if path.Base(obj.Key) != entryFile {
			continue
		}
		rel := strings.TrimPrefix(path.Dir(obj.Key), dir+"/")
		if filter.Scope == provision.ScopeOne && strings.Contains(rel, "/") {
			continue
		}

		po, err := d.read(ctx, obj.Key)
		if provision.IsNotFound(err) {
			// Removed between list and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		if naming.Depth(po.Identifier.ObjectID) <= depth {
			continue
		}
		if filter.Attribute != "" && !hasValue(po.Attribute(filter.Attribute), filter.Value) {
			continue
		}
		ids = append(ids, po.Identifier)
	}
	slices.SortFunc(ids, func(a, b provision.Identifier) int {
		return strings.Compare(naming.Canonical(a.ObjectID), naming.Canonical(b.ObjectID))
	})
	return ids, nil
}

// Create implements provision.TargetAdapter. The parent must be the base or
// an existing entry. Creating an existing entry overwrites it.
func (d *Directory) Create(ctx context.Context, po *provision.ProvisionedObject) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, err := d.entryKey(po.Identifier.ObjectID)
	if err != nil {
		return err
	}
	parent := naming.Parent(po.Identifier.ObjectID)
	if parent != "" && naming.Canonical(parent) != naming.Canonical(d.base) {
		parentKey, err := d.entryKey(parent)
		if err != nil {
			return err
		}
		if _, err := d.read(ctx, parentKey); err != nil {
			if provision.IsNotFound(err) {
				return fmt.Errorf("create %s: parent %s does not exist", po.Identifier.ObjectID, parent)
			}
			return err
		}
	}
	return d.write(ctx, key, po)
}

// Modify implements provision.TargetAdapter.
func (d *Directory) Modify(ctx context.Context, id provision.Identifier, attrs []provision.AttributeDelta, refs []provision.ReferenceDelta) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, err := d.entryKey(id.ObjectID)
	if err != nil {
		return err
	}
	po, err := d.read(ctx, key)
	if err != nil {
		return err
	}
	po.Apply(attrs, refs, provision.CanonicalFunc(naming.Canonical))
	return d.write(ctx, key, po)
}

// Delete implements provision.TargetAdapter. Deleting an absent entry succeeds.
func (d *Directory) Delete(ctx context.Context, id provision.Identifier, recursive bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir, err := d.dir(id.ObjectID)
	if err != nil {
		return err
	}
	own := dir + "/" + entryFile

	var keys []string
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: dir + "/", Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("delete %s: %w", id.ObjectID, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	if !recursive && (len(keys) > 1 || keys[0] != own) {
		return fmt.Errorf("delete %s: entry has descendants", id.ObjectID)
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var failed []string
	for rerr := range d.client.RemoveObjects(ctx, d.bucket, objects, minio.RemoveObjectsOptions{}) {
		failed = append(failed, fmt.Sprintf("%s: %v", rerr.ObjectName, rerr.Err))
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete %s: %d objects not removed: %s", id.ObjectID, len(failed), strings.Join(failed, "; "))
	}
	d.logger.Debug("Removed directory entries",
		zap.String("target", d.targetID),
		zap.String("identifier", id.ObjectID),
		zap.Int("objects", len(keys)),
	)
	return nil
}

// Bucket returns the bucket holding the entries.
func (d *Directory) Bucket() string { return d.bucket }

// Dangling returns the entries below the base whose parent entry is missing.
// Such entries are left behind by interrupted deletes or manual edits.
func (d *Directory) Dangling(ctx context.Context) ([]provision.Identifier, error) {
	ids, err := d.Search(ctx, provision.SearchFilter{Base: d.base, Scope: provision.ScopeSubtree})
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[naming.Canonical(id.ObjectID)] = true
	}

	base := naming.Canonical(d.base)
	var dangling []provision.Identifier
	for _, id := range ids {
		parent := naming.Canonical(naming.Parent(id.ObjectID))
		if parent == "" || parent == base || present[parent] {
			continue
		}
		dangling = append(dangling, id)
	}
	return dangling, nil
}

func (d *Directory) read(ctx context.Context, key string) (*provision.ProvisionedObject, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, d.readError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, d.readError(key, err)
	}
	var po provision.ProvisionedObject
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &po, nil
}

func (d *Directory) readError(key string, err error) error {
	if storage.IsNoSuchKey(err) {
		return fmt.Errorf("read %s: %w", key, provision.ErrNotFound)
	}
	return fmt.Errorf("read %s: %w", key, err)
}

func (d *Directory) write(ctx context.Context, key string, po *provision.ProvisionedObject) error {
	data, err := json.Marshal(po)
	if err != nil {
		return fmt.Errorf("encode %s: %w", po.Identifier.ObjectID, err)
	}
	_, err = d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (d *Directory) entryKey(dn string) (string, error) {
	dir, err := d.dir(dn)
	if err != nil {
		return "", err
	}
	return dir + "/" + entryFile, nil
}

// dir maps a DN to its key prefix, top RDN first.
func (d *Directory) dir(dn string) (string, error) {
	parsed, err := naming.Parse(naming.Canonical(dn))
	if err != nil {
		return "", fmt.Errorf("object id %q: %w", dn, err)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("object id %q: %w", dn, naming.ErrInvalidDN)
	}
	segments := make([]string, 0, len(parsed)+1)
	if d.prefix != "" {
		segments = append(segments, d.prefix)
	}
	for i := len(parsed) - 1; i >= 0; i-- {
		segments = append(segments, url.PathEscape(parsed[i].String()))
	}
	return strings.Join(segments, "/"), nil
}

func hasValue(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
