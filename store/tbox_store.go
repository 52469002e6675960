package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/1357310795/tboxdav/cacheapi"
	cachewrap "github.com/1357310795/tboxdav/cacheapi/adaptor"
	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/tbox"
	"github.com/1357310795/tboxdav/uploader"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const metaCacheTTL = 3 * time.Second

type tboxStore struct {
	backend  tbox.IBackend
	sessions *uploader.Registry
	meta     cacheapi.ICache[string, *ItemInfo]
	depth    InfiniteDepthMode
}

type Option func(*tboxStore)

func WithInfiniteDepthMode(m InfiniteDepthMode) Option {
	return func(s *tboxStore) {
		s.depth = m
	}
}

// New 基于Tbox后端构建存储, cacheSize为元信息缓存的内存上限
func New(backend tbox.IBackend, cacheSize int64, opts ...Option) (IStore, error) {
	sessions, err := uploader.NewRegistry(backend)
	if err != nil {
		return nil, err
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, *ItemInfo]{
		NumCounters: 1e5,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create meta cache failed, err:%w", err)
	}
	s := &tboxStore{
		backend:  backend,
		sessions: sessions,
		meta:     cachewrap.WrapRistrettoCache(rc, metaCacheTTL),
		depth:    InfiniteDepthAllowed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *tboxStore) GetItem(ctx context.Context, p string) (*ItemInfo, error) {
	return cacheapi.Load(ctx, s.meta, p, func(ctx context.Context, p string) (*ItemInfo, error) {
		obj, err := s.backend.GetItem(ctx, p)
		if err != nil {
			return nil, err
		}
		return FromObjectInfo(obj, p), nil
	})
}

func (s *tboxStore) GetChildren(ctx context.Context, p string) ([]*ItemInfo, error) {
	objs, err := s.backend.ListItems(ctx, p)
	if err != nil {
		return nil, err
	}
	rs := make([]*ItemInfo, 0, len(objs))
	for _, obj := range objs {
		full := path.Join(p, obj.Name)
		it := FromObjectInfo(obj, full)
		rs = append(rs, it)
		_ = s.meta.Set(ctx, full, it)
	}
	return rs, nil
}

func (s *tboxStore) CreateCollection(ctx context.Context, p string, overwrite bool) (int, error) {
	if !davkit.IsValidName(path.Base(p)) {
		return http.StatusForbidden, fmt.Errorf("%w: invalid collection name", davkit.ErrForbidden)
	}
	if _, err := s.GetItem(ctx, p); err == nil {
		if !overwrite {
			return http.StatusMethodNotAllowed, fmt.Errorf("collection exists, path:%s", p)
		}
		return http.StatusOK, nil
	}
	if _, err := s.GetItem(ctx, path.Dir(p)); err != nil {
		return http.StatusConflict, fmt.Errorf("%w: parent missing, path:%s", davkit.ErrConflict, p)
	}
	if err := s.backend.CreateDirectory(ctx, p); err != nil {
		if tbox.IsSameNameExists(err) {
			return http.StatusCreated, nil
		}
		return davkit.StatusOf(err), err
	}
	s.invalidate(ctx, p)
	return http.StatusCreated, nil
}

func (s *tboxStore) DeleteItem(ctx context.Context, p string) error {
	if err := s.backend.DeleteItem(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, p)
	return nil
}

func (s *tboxStore) MoveItem(ctx context.Context, src, dst string, overwrite bool) (int, error) {
	created, status, err := s.prepareDestination(ctx, dst, overwrite)
	if err != nil {
		return status, err
	}
	if err := s.backend.MoveItem(ctx, src, dst); err != nil {
		return davkit.StatusOf(err), err
	}
	s.invalidate(ctx, src)
	s.invalidate(ctx, dst)
	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

func (s *tboxStore) CopyItem(ctx context.Context, src, dst string, overwrite bool) (int, error) {
	created, status, err := s.prepareDestination(ctx, dst, overwrite)
	if err != nil {
		return status, err
	}
	if err := s.backend.CopyItem(ctx, src, dst); err != nil {
		return davkit.StatusOf(err), err
	}
	s.invalidate(ctx, dst)
	if created {
		return http.StatusCreated, nil
	}
	return http.StatusNoContent, nil
}

// prepareDestination 处理Overwrite语义: 目标存在且不允许覆盖时412,
// 允许覆盖时先删除目标
func (s *tboxStore) prepareDestination(ctx context.Context, dst string, overwrite bool) (created bool, status int, err error) {
	if !davkit.IsValidName(path.Base(dst)) {
		return false, http.StatusForbidden, fmt.Errorf("%w: invalid destination name", davkit.ErrForbidden)
	}
	_, err = s.GetItem(ctx, dst)
	if err != nil {
		if errors.Is(err, davkit.ErrNotFound) {
			if _, perr := s.GetItem(ctx, path.Dir(dst)); perr != nil {
				return false, http.StatusConflict, fmt.Errorf("%w: destination parent missing", davkit.ErrConflict)
			}
			return true, 0, nil
		}
		return false, davkit.StatusOf(err), err
	}
	if !overwrite {
		return false, http.StatusPreconditionFailed, fmt.Errorf("%w: destination exists", davkit.ErrPreconditionFailed)
	}
	if derr := s.DeleteItem(ctx, dst); derr != nil {
		return false, davkit.StatusOf(derr), derr
	}
	return false, 0, nil
}

func (s *tboxStore) UploadFromStream(ctx context.Context, p string, r io.Reader, length int64) (int, error) {
	if !davkit.IsValidName(path.Base(p)) {
		return http.StatusForbidden, fmt.Errorf("%w: invalid file name", davkit.ErrForbidden)
	}
	if err := s.EnsureDirectoryExists(ctx, path.Dir(p)); err != nil {
		return http.StatusConflict, err
	}
	_, gerr := s.GetItem(ctx, p)
	existed := gerr == nil

	sess := s.sessions.Acquire(ctx, p, length)
	if err := uploader.Run(ctx, sess, r); err != nil {
		s.sessions.Release(p, sess)
		return davkit.StatusOf(err), err
	}
	s.sessions.Release(p, sess)
	s.invalidate(ctx, p)
	if existed {
		return http.StatusNoContent, nil
	}
	return http.StatusCreated, nil
}

func (s *tboxStore) OpenRead(ctx context.Context, p string, offset, length int64) (io.ReadCloser, error) {
	return s.backend.Download(ctx, p, offset, length)
}

// EnsureDirectoryExists 逐级补建父目录; 后端报同名已存在时按成功处理
// (存在同名文件时这里会放过, 后续写入报错, 与远端行为保持一致)
func (s *tboxStore) EnsureDirectoryExists(ctx context.Context, p string) error {
	if p == "/" || len(p) == 0 {
		return nil
	}
	if _, err := s.GetItem(ctx, p); err == nil {
		return nil
	}
	if err := s.EnsureDirectoryExists(ctx, path.Dir(p)); err != nil {
		return err
	}
	if err := s.backend.CreateDirectory(ctx, p); err != nil {
		if tbox.IsSameNameExists(err) {
			logutil.GetLogger(ctx).Warn("same name entry exists, treat as directory", zap.String("path", p))
			return nil
		}
		return fmt.Errorf("ensure directory failed, path:%s, err:%w", p, err)
	}
	s.invalidate(ctx, p)
	return nil
}

func (s *tboxStore) SupportsFastMove(src, dst string) bool {
	// 单后端部署, 同一存储内的改名都走服务端rename
	return true
}

func (s *tboxStore) InfiniteDepthMode() InfiniteDepthMode {
	return s.depth
}

// invalidate 变更后清掉本路径与父目录的元信息缓存
func (s *tboxStore) invalidate(ctx context.Context, p string) {
	_ = s.meta.Del(ctx, p)
	_ = s.meta.Del(ctx, path.Dir(p))
}
