package lock

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/google/uuid"
)

// Manager 进程内唯一的锁表, 所有操作持锁同步完成, 不会阻塞
type Manager struct {
	mu      sync.Mutex
	byKey   map[string][]*Lock
	byToken map[string]*Lock
	now     func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		byKey:   make(map[string][]*Lock),
		byToken: make(map[string]*Lock),
		now:     time.Now,
	}
}

// Lock 尝试在resourceKey上建锁, 冲突时返回423
func (m *Manager) Lock(key, path, owner string, scope Scope, depth int, timeouts []time.Duration) (*Lock, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	if m.conflicts(key, path, scope, depth) {
		return nil, http.StatusLocked
	}
	l := &Lock{
		Token:       "opaquelocktoken:" + uuid.NewString(),
		Scope:       scope,
		Owner:       owner,
		Depth:       depth,
		Timeout:     davkit.PickTimeout(timeouts),
		ResourceKey: key,
		Path:        path,
		CreatedAt:   now,
	}
	m.byKey[key] = append(m.byKey[key], l)
	m.byToken[l.Token] = l
	return l, http.StatusOK
}

// Refresh 刷新已有锁, token必须属于该resourceKey
func (m *Manager) Refresh(key, token string, timeouts []time.Duration) (*Lock, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	l, ok := m.byToken[token]
	if !ok || l.ResourceKey != key {
		return nil, http.StatusPreconditionFailed
	}
	l.CreatedAt = now
	l.Timeout = davkit.PickTimeout(timeouts)
	return l, http.StatusOK
}

// Unlock 释放锁, token不匹配返回409
func (m *Manager) Unlock(key, token string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	l, ok := m.byToken[token]
	if !ok || l.ResourceKey != key {
		return http.StatusConflict
	}
	m.drop(l)
	return http.StatusNoContent
}

// Validate 变更类handler用来校验调用方携带的token;
// 资源未被锁定时直接放行, 被锁定时至少要有一个token命中生效的锁
// (包含depth=infinity的祖先排他锁)
func (m *Manager) Validate(key, path string, tokens []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	applied := m.appliedLocks(key, path)
	if len(applied) == 0 {
		return true
	}
	for _, l := range applied {
		for _, t := range tokens {
			if l.Token == t {
				return true
			}
		}
	}
	return false
}

// GetActiveLockInfo 喂给lockdiscovery属性
func (m *Manager) GetActiveLockInfo(key, path string) []*Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	applied := m.appliedLocks(key, path)
	rs := make([]*Lock, len(applied))
	copy(rs, applied)
	return rs
}

// GetSupportedLocks 喂给supportedlock属性
func (m *Manager) GetSupportedLocks() []Scope {
	return []Scope{ScopeExclusive, ScopeShared}
}

// ReleaseResource 资源被删除后清掉挂在它上面的锁
func (m *Manager) ReleaseResource(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byKey[key] {
		delete(m.byToken, l.Token)
	}
	delete(m.byKey, key)
}

// 以下方法都要求已持有m.mu

// sweep 惰性过期: 每次查表前剔除已超时的锁, 不跑后台清理
func (m *Manager) sweep(now time.Time) {
	for key, ls := range m.byKey {
		keep := ls[:0]
		for _, l := range ls {
			if l.expired(now) {
				delete(m.byToken, l.Token)
				continue
			}
			keep = append(keep, l)
		}
		if len(keep) == 0 {
			delete(m.byKey, key)
			continue
		}
		m.byKey[key] = keep
	}
}

func (m *Manager) drop(l *Lock) {
	delete(m.byToken, l.Token)
	ls := m.byKey[l.ResourceKey]
	keep := ls[:0]
	for _, item := range ls {
		if item.Token == l.Token {
			continue
		}
		keep = append(keep, item)
	}
	if len(keep) == 0 {
		delete(m.byKey, l.ResourceKey)
		return
	}
	m.byKey[l.ResourceKey] = keep
}

// conflicts 检查新锁与现有锁的冲突:
// exclusive与同key的一切锁冲突; shared只与exclusive冲突;
// depth=infinity的锁覆盖全部后代, 正反两个方向都要查
func (m *Manager) conflicts(key, path string, scope Scope, depth int) bool {
	for _, ls := range m.byKey {
		for _, l := range ls {
			if scope != ScopeExclusive && l.Scope != ScopeExclusive {
				continue
			}
			if l.ResourceKey == key {
				return true
			}
			if l.Depth == davkit.DepthInfinity && isDescendant(l.Path, path) {
				return true
			}
			if depth == davkit.DepthInfinity && isDescendant(path, l.Path) {
				return true
			}
		}
	}
	return false
}

// appliedLocks 作用于该资源的锁: 本体的锁加上depth=infinity的祖先锁
func (m *Manager) appliedLocks(key, path string) []*Lock {
	rs := make([]*Lock, 0, 2)
	rs = append(rs, m.byKey[key]...)
	for _, ls := range m.byKey {
		for _, l := range ls {
			if l.ResourceKey == key {
				continue
			}
			if l.Depth == davkit.DepthInfinity && isDescendant(l.Path, path) {
				rs = append(rs, l)
			}
		}
	}
	return rs
}

func isDescendant(ancestor, p string) bool {
	if ancestor == p {
		return false
	}
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}
