package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"provisioner/core/database"
	"provisioner/core/provision"
	"provisioner/core/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cp, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, provision.Checkpoint{Name: "a"}, cp)

	require.NoError(t, s.Save(ctx, provision.Checkpoint{Name: "a", LastSequence: 3}))
	cp, err = s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cp.LastSequence)
}

func TestDBStore_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	s := NewDBStore(db)
	require.NoError(t, s.Migrate())

	cp, err := s.Load(ctx, "provisioner")
	require.NoError(t, err)
	assert.Equal(t, provision.Checkpoint{Name: "provisioner"}, cp)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, provision.Checkpoint{Name: "provisioner", LastSequence: 10, Token: "change_log:10", UpdatedAt: at}))
	require.NoError(t, s.Save(ctx, provision.Checkpoint{Name: "provisioner", LastSequence: 12, Token: "change_log:12", UpdatedAt: at.Add(time.Minute)}))
	require.NoError(t, s.Save(ctx, provision.Checkpoint{Name: "other", LastSequence: 1}))

	cp, err = s.Load(ctx, "provisioner")
	require.NoError(t, err)
	assert.Equal(t, int64(12), cp.LastSequence)
	assert.Equal(t, "change_log:12", cp.Token)
	assert.True(t, at.Add(time.Minute).Equal(cp.UpdatedAt))

	var rows int64
	require.NoError(t, db.Model(&CheckpointRecord{}).Count(&rows).Error)
	assert.Equal(t, int64(2), rows, "save upserts by name")
}

func TestDBStore_MySQLUpsert(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `consumer_checkpoints`") + ".*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = NewDBStore(db).Save(context.Background(), provision.Checkpoint{Name: "provisioner", LastSequence: 5})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()
	key := "checkpoints/provisioner.json"

	t.Run("MissingKey", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "directory", key, minio.GetObjectOptions{}).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

		cp, err := NewObjectStore(client, "directory", key).Load(ctx, "provisioner")
		require.NoError(t, err)
		assert.Equal(t, provision.Checkpoint{Name: "provisioner"}, cp)
	})

	t.Run("MissingKeyOnRead", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "directory", key, minio.GetObjectOptions{}).
			Return(io.NopCloser(failingReader{minio.ErrorResponse{Code: "NoSuchKey"}}), nil)

		cp, err := NewObjectStore(client, "directory", key).Load(ctx, "provisioner")
		require.NoError(t, err)
		assert.Zero(t, cp.LastSequence)
	})

	t.Run("Existing", func(t *testing.T) {
		body, _ := json.Marshal(provision.Checkpoint{Name: "provisioner", LastSequence: 41, Token: "change_log:41"})
		client := new(mocks.Client)
		client.On("GetObject", ctx, "directory", key, minio.GetObjectOptions{}).
			Return(io.NopCloser(bytes.NewReader(body)), nil)

		cp, err := NewObjectStore(client, "directory", key).Load(ctx, "provisioner")
		require.NoError(t, err)
		assert.Equal(t, int64(41), cp.LastSequence)
		assert.Equal(t, "change_log:41", cp.Token)
	})

	t.Run("ForeignCheckpoint", func(t *testing.T) {
		body, _ := json.Marshal(provision.Checkpoint{Name: "someone-else", LastSequence: 2})
		client := new(mocks.Client)
		client.On("GetObject", ctx, "directory", key, minio.GetObjectOptions{}).
			Return(io.NopCloser(bytes.NewReader(body)), nil)

		_, err := NewObjectStore(client, "directory", key).Load(ctx, "provisioner")
		assert.ErrorContains(t, err, "someone-else")
	})

	t.Run("Save", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", ctx, "directory", key,
			mock.MatchedBy(func(r *bytes.Reader) bool {
				body := make([]byte, r.Len())
				_, _ = r.ReadAt(body, 0)
				var cp provision.Checkpoint
				return json.Unmarshal(body, &cp) == nil && cp.LastSequence == 7
			}),
			mock.AnythingOfType("int64"),
			minio.PutObjectOptions{ContentType: "application/json"},
		).Return(minio.UploadInfo{}, nil)

		err := NewObjectStore(client, "directory", key).Save(ctx, provision.Checkpoint{Name: "provisioner", LastSequence: 7})
		assert.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("SaveFails", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", ctx, "directory", key, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errors.New("bucket is read-only"))

		err := NewObjectStore(client, "directory", key).Save(ctx, provision.Checkpoint{Name: "provisioner"})
		assert.ErrorContains(t, err, "bucket is read-only")
	})
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }
