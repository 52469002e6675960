package lock

import (
	"net/http"
	"testing"
	"time"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/stretchr/testify/assert"
)

func timeouts(sec int) []time.Duration {
	return []time.Duration{time.Duration(sec) * time.Second}
}

func TestExclusiveConflict(t *testing.T) {
	m := NewManager()
	l1, st := m.Lock("k1", "/a.txt", "<D:href>u1</D:href>", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	assert.NotNil(t, l1)
	assert.Contains(t, l1.Token, "opaquelocktoken:")

	_, st = m.Lock("k1", "/a.txt", "<D:href>u2</D:href>", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusLocked, st)
	_, st = m.Lock("k1", "/a.txt", "<D:href>u2</D:href>", ScopeShared, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusLocked, st)
}

func TestSharedCoexist(t *testing.T) {
	m := NewManager()
	_, st := m.Lock("k1", "/a.txt", "u1", ScopeShared, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	_, st = m.Lock("k1", "/a.txt", "u2", ScopeShared, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	_, st = m.Lock("k1", "/a.txt", "u3", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusLocked, st)
}

func TestInfiniteDepthBlocksDescendants(t *testing.T) {
	m := NewManager()
	_, st := m.Lock("kdir", "/docs", "u1", ScopeExclusive, davkit.DepthInfinity, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	_, st = m.Lock("kchild", "/docs/a.txt", "u2", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusLocked, st)
	_, st = m.Lock("kother", "/other/a.txt", "u2", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
}

func TestLockAboveLockedChild(t *testing.T) {
	m := NewManager()
	_, st := m.Lock("kchild", "/docs/a.txt", "u1", ScopeShared, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	_, st = m.Lock("kdir", "/docs", "u2", ScopeExclusive, davkit.DepthInfinity, timeouts(60))
	assert.Equal(t, http.StatusLocked, st)
}

func TestRefresh(t *testing.T) {
	m := NewManager()
	l, st := m.Lock("k1", "/a.txt", "u1", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
	refreshed, st := m.Refresh("k1", l.Token, timeouts(120))
	assert.Equal(t, http.StatusOK, st)
	assert.Equal(t, 120*time.Second, refreshed.Timeout)
	_, st = m.Refresh("k1", "opaquelocktoken:unknown", timeouts(120))
	assert.Equal(t, http.StatusPreconditionFailed, st)
}

func TestUnlock(t *testing.T) {
	m := NewManager()
	l, _ := m.Lock("k1", "/a.txt", "u1", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusConflict, m.Unlock("k1", "opaquelocktoken:bad"))
	assert.Equal(t, http.StatusNoContent, m.Unlock("k1", l.Token))
	// 释放后可以重新建锁
	_, st := m.Lock("k1", "/a.txt", "u2", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
}

func TestValidate(t *testing.T) {
	m := NewManager()
	assert.True(t, m.Validate("k1", "/a.txt", nil))
	l, _ := m.Lock("k1", "/a.txt", "u1", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.False(t, m.Validate("k1", "/a.txt", nil))
	assert.False(t, m.Validate("k1", "/a.txt", []string{"opaquelocktoken:bad"}))
	assert.True(t, m.Validate("k1", "/a.txt", []string{l.Token}))
}

func TestValidateAncestorLock(t *testing.T) {
	m := NewManager()
	l, _ := m.Lock("kdir", "/docs", "u1", ScopeExclusive, davkit.DepthInfinity, timeouts(60))
	assert.False(t, m.Validate("kchild", "/docs/a.txt", nil))
	assert.True(t, m.Validate("kchild", "/docs/a.txt", []string{l.Token}))
}

func TestLazyExpiry(t *testing.T) {
	m := NewManager()
	base := time.Now()
	m.now = func() time.Time { return base }
	l, st := m.Lock("k1", "/a.txt", "u1", ScopeExclusive, davkit.DepthZero, timeouts(1))
	assert.Equal(t, http.StatusOK, st)
	m.now = func() time.Time { return base.Add(2 * time.Second) }
	assert.Equal(t, http.StatusConflict, m.Unlock("k1", l.Token))
	_, st = m.Lock("k1", "/a.txt", "u2", ScopeExclusive, davkit.DepthZero, timeouts(60))
	assert.Equal(t, http.StatusOK, st)
}

func TestReleaseResource(t *testing.T) {
	m := NewManager()
	l, _ := m.Lock("k1", "/a.txt", "u1", ScopeExclusive, davkit.DepthZero, timeouts(60))
	m.ReleaseResource("k1")
	assert.Empty(t, m.GetActiveLockInfo("k1", "/a.txt"))
	assert.Equal(t, http.StatusConflict, m.Unlock("k1", l.Token))
}

func TestActiveLockInfo(t *testing.T) {
	m := NewManager()
	l, _ := m.Lock("kdir", "/docs", "u1", ScopeExclusive, davkit.DepthInfinity, timeouts(60))
	infos := m.GetActiveLockInfo("kchild", "/docs/sub/a.txt")
	assert.Len(t, infos, 1)
	assert.Equal(t, l.Token, infos[0].Token)
	assert.Len(t, m.GetSupportedLocks(), 2)
}
