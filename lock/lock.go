package lock

import "time"

type Scope int

const (
	ScopeExclusive Scope = iota
	ScopeShared
)

func (s Scope) String() string {
	if s == ScopeShared {
		return "shared"
	}
	return "exclusive"
}

// Lock 单个写锁, type固定为write
type Lock struct {
	Token       string
	Scope       Scope
	Owner       string //客户端提交的owner片段, 原样回显
	Depth       int    //0或infinity(-1)
	Timeout     time.Duration
	ResourceKey string
	Path        string
	CreatedAt   time.Time
}

func (l *Lock) expired(now time.Time) bool {
	return l.CreatedAt.Add(l.Timeout).Before(now)
}

// Remaining 剩余有效秒数, 用于Timeout回显
func (l *Lock) Remaining(now time.Time) int64 {
	left := l.CreatedAt.Add(l.Timeout).Sub(now)
	if left < 0 {
		return 0
	}
	return int64(left / time.Second)
}
