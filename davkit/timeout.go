package davkit

import (
	"strconv"
	"strings"
	"time"
)

// MaxLockTimeout 单个锁允许的最大有效期
const MaxLockTimeout = 600 * time.Second

// ParseTimeout 解析Timeout头, 形如 "Second-60, Second-300" 或 "Infinite"
// 返回按请求顺序排列的候选超时列表, 每项都会被钳制到MaxLockTimeout
func ParseTimeout(h string) []time.Duration {
	if len(h) == 0 {
		return nil
	}
	rs := make([]time.Duration, 0, 2)
	for _, item := range strings.Split(h, ",") {
		item = strings.TrimSpace(item)
		if strings.EqualFold(item, "Infinite") {
			rs = append(rs, MaxLockTimeout)
			continue
		}
		if !strings.HasPrefix(item, "Second-") {
			continue
		}
		sec, err := strconv.ParseInt(strings.TrimPrefix(item, "Second-"), 10, 64)
		if err != nil || sec <= 0 {
			continue
		}
		d := time.Duration(sec) * time.Second
		if d > MaxLockTimeout {
			d = MaxLockTimeout
		}
		rs = append(rs, d)
	}
	return rs
}

// PickTimeout 选取服务端实际授予的超时, 没有可用项时回落到最大值
func PickTimeout(candidates []time.Duration) time.Duration {
	if len(candidates) == 0 {
		return MaxLockTimeout
	}
	return candidates[0]
}
