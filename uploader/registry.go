package uploader

import (
	"context"
	"fmt"
	"sync"

	"github.com/1357310795/tboxdav/tbox"
	lru "github.com/hnlq715/golang-lru"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultRegistrySize = 256

// Registry 以路径为键的会话注册表, 容量有限, 淘汰最久未用的会话。
// 中断的PUT留下Error态会话, 同路径的下一次PUT据此续传
type Registry struct {
	mu      sync.Mutex
	backend tbox.IBackend
	cache   *lru.Cache
}

func NewRegistry(backend tbox.IBackend) (*Registry, error) {
	c, err := lru.New(defaultRegistrySize)
	if err != nil {
		return nil, fmt.Errorf("create session registry failed, err:%w", err)
	}
	return &Registry{backend: backend, cache: c}, nil
}

// Acquire 返回可用于该路径与大小的会话:
// 命中Error态且大小一致的旧会话时复用其confirmKey续传, 否则全新开始
func (r *Registry) Acquire(ctx context.Context, path string, size int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(path); ok {
		old := v.(*Session)
		if old.State() == StateError && old.Size() == size && old.UploadContext() != nil {
			remain := old.RemainParts()
			logutil.GetLogger(ctx).Info("resume upload session",
				zap.String("path", path), zap.Int("remain", len(remain)))
			s := NewSession(r.backend)
			s.Init(path, size)
			s.Resume(old.UploadContext(), remain)
			r.cache.Add(path, s)
			return s
		}
	}
	s := NewSession(r.backend)
	s.Init(path, size)
	r.cache.Add(path, s)
	return s
}

// Release 上传成功后清掉会话; 失败的会话留在表里等续传
func (r *Registry) Release(path string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.State() == StateDone {
		r.cache.Remove(path)
	}
}
