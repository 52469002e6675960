package store

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/tbox/mem"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) IStore {
	s, err := New(mem.New(), 32*1024*1024)
	assert.NoError(t, err)
	return s
}

func TestGetItemRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it, err := s.GetItem(ctx, "/")
	assert.NoError(t, err)
	assert.True(t, it.IsDir)
	assert.Equal(t, int64(0), it.Size)
	assert.Equal(t, davkit.MimeTypeDirectory, it.MimeType)
	assert.NotEmpty(t, it.ETag)
	assert.NotEmpty(t, it.UniqueKey)
}

func TestUploadAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("hello tbox")
	st, err := s.UploadFromStream(ctx, "/docs/a.txt", bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, st)

	it, err := s.GetItem(ctx, "/docs/a.txt")
	assert.NoError(t, err)
	assert.False(t, it.IsDir)
	assert.Equal(t, int64(len(data)), it.Size)
	assert.Equal(t, "a.txt", it.Name)
	assert.Contains(t, it.MimeType, "text/plain")

	rc, err := s.OpenRead(ctx, "/docs/a.txt", 0, 0)
	assert.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, data, got)

	// 覆盖写返回204
	st, err = s.UploadFromStream(ctx, "/docs/a.txt", bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, st)
}

func TestCreateCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st, err := s.CreateCollection(ctx, "/docs", false)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, st)
	// 已存在且不允许覆盖
	st, _ = s.CreateCollection(ctx, "/docs", false)
	assert.Equal(t, http.StatusMethodNotAllowed, st)
	// 父目录缺失
	st, _ = s.CreateCollection(ctx, "/missing/sub", false)
	assert.Equal(t, http.StatusConflict, st)
}

func TestGetChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateCollection(ctx, "/docs", false)
	assert.NoError(t, err)
	_, err = s.UploadFromStream(ctx, "/docs/a.txt", bytes.NewReader([]byte("a")), 1)
	assert.NoError(t, err)
	_, err = s.UploadFromStream(ctx, "/docs/b.txt", bytes.NewReader([]byte("b")), 1)
	assert.NoError(t, err)

	children, err := s.GetChildren(ctx, "/docs")
	assert.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Equal(t, "/docs/a.txt", children[0].FullPath)
}

func TestMoveOverwriteDenied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UploadFromStream(ctx, "/a.txt", bytes.NewReader([]byte("a")), 1)
	assert.NoError(t, err)
	_, err = s.UploadFromStream(ctx, "/b.txt", bytes.NewReader([]byte("b")), 1)
	assert.NoError(t, err)

	st, err := s.MoveItem(ctx, "/a.txt", "/b.txt", false)
	assert.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, st)
	// 双方都未被改动
	_, err = s.GetItem(ctx, "/a.txt")
	assert.NoError(t, err)
	rc, err := s.OpenRead(ctx, "/b.txt", 0, 0)
	assert.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, []byte("b"), got)
}

func TestMoveAndCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UploadFromStream(ctx, "/a.txt", bytes.NewReader([]byte("a")), 1)
	assert.NoError(t, err)

	st, err := s.MoveItem(ctx, "/a.txt", "/b.txt", false)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, st)
	_, err = s.GetItem(ctx, "/a.txt")
	assert.ErrorIs(t, err, davkit.ErrNotFound)

	st, err = s.CopyItem(ctx, "/b.txt", "/c.txt", false)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, st)
	_, err = s.GetItem(ctx, "/b.txt")
	assert.NoError(t, err)
	_, err = s.GetItem(ctx, "/c.txt")
	assert.NoError(t, err)

	// 覆盖已有目标返回204
	st, err = s.CopyItem(ctx, "/b.txt", "/c.txt", true)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, st)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UploadFromStream(ctx, "/a.txt", bytes.NewReader([]byte("a")), 1)
	assert.NoError(t, err)
	_, err = s.GetItem(ctx, "/a.txt")
	assert.NoError(t, err)
	assert.NoError(t, s.DeleteItem(ctx, "/a.txt"))
	_, err = s.GetItem(ctx, "/a.txt")
	assert.ErrorIs(t, err, davkit.ErrNotFound)
}

func TestEnsureDirectoryExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.NoError(t, s.EnsureDirectoryExists(ctx, "/a/b/c"))
	it, err := s.GetItem(ctx, "/a/b/c")
	assert.NoError(t, err)
	assert.True(t, it.IsDir)
	// 幂等
	assert.NoError(t, s.EnsureDirectoryExists(ctx, "/a/b/c"))
}
