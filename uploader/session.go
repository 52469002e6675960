package uploader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/1357310795/tboxdav/tbox"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type State int

const (
	StateNotInit State = iota
	StateConfirmKeyInit
	StateReady
	StateUploading
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotInit:
		return "NotInit"
	case StateConfirmKeyInit:
		return "ConfirmKeyInit"
	case StateReady:
		return "Ready"
	case StateUploading:
		return "Uploading"
	case StateDone:
		return "Done"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

const (
	// renewWindow 凭证剩余有效期低于该值时必须续期
	renewWindow = 30 * time.Second
	// renewBatch 单次续期最多携带的分片数
	renewBatch = 50
	// renewAttempts 续期重试上限
	renewAttempts = 2
)

// NextPartResult NextPart的三态返回
type NextPartResult int

const (
	NextPartOK NextPartResult = iota
	NextPartWaiting
	NextPartDone
)

// Session 一次分片上传会话。remainParts的变更全部走mu串行,
// 分片数据的推送可以并发
type Session struct {
	mu      sync.Mutex
	backend tbox.IBackend

	path       string
	size       int64
	chunkCount int
	uctx       *tbox.UploadContext
	// 尚未被后端确认的分片号, 升序; inflight标记已被worker领走的分片
	remain   []int
	inflight map[int]bool
	state    State
	lastErr  error
	now      func() time.Time
}

func NewSession(backend tbox.IBackend) *Session {
	return &Session{
		backend:  backend,
		inflight: make(map[int]bool),
		state:    StateNotInit,
		now:      time.Now,
	}
}

// Init 设定目标与分片数, 清空进度
func (s *Session) Init(path string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.size = size
	s.chunkCount = int((size + tbox.ChunkSize - 1) / tbox.ChunkSize)
	if size == 0 {
		s.chunkCount = 1 //空文件也占一个分片
	}
	s.remain = nil
	s.inflight = make(map[int]bool)
	s.state = StateNotInit
	s.lastErr = nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Session) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// Prepare 把会话推进到Ready:
// NotInit/Error -> 重新向后端申请confirmKey与全量分片凭证;
// Error且仍有confirmKey与剩余分片时例外, 转入ConfirmKeyInit并续期;
// ConfirmKeyInit -> 仅对剩余分片续期凭证;
// Ready/Uploading/Done -> no-op
func (s *Session) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateReady, StateUploading, StateDone:
		return nil
	case StateNotInit, StateError:
		if s.state == StateError && s.uctx != nil && len(s.uctx.ConfirmKey) > 0 && len(s.remain) > 0 {
			// 有confirmKey且还有剩余分片, 走续传路径
			s.state = StateConfirmKeyInit
			return s.renewLocked(ctx, s.firstRemain(renewBatch))
		}
		uctx, err := s.backend.StartChunkUpload(ctx, s.path, s.chunkCount)
		if err != nil {
			s.state = StateError
			s.lastErr = err
			return fmt.Errorf("start chunk upload failed, err:%w", err)
		}
		s.uctx = uctx
		s.remain = make([]int, 0, s.chunkCount)
		for i := 1; i <= s.chunkCount; i++ {
			s.remain = append(s.remain, i)
		}
		s.inflight = make(map[int]bool)
		s.state = StateReady
		return nil
	case StateConfirmKeyInit:
		return s.renewLocked(ctx, s.firstRemain(renewBatch))
	default:
		return fmt.Errorf("unexpected session state:%s", s.state)
	}
}

// Resume 用历史会话的confirmKey恢复进度, 进入ConfirmKeyInit
func (s *Session) Resume(uctx *tbox.UploadContext, remain []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uctx = uctx
	s.remain = append([]int(nil), remain...)
	sort.Ints(s.remain)
	s.inflight = make(map[int]bool)
	s.state = StateConfirmKeyInit
}

// NextPart 取下一个未在途的分片; 全部在途但未确认时返回waiting
func (s *Session) NextPart() (int, NextPartResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remain) == 0 {
		return 0, NextPartDone
	}
	for _, part := range s.remain {
		if s.inflight[part] {
			continue
		}
		s.inflight[part] = true
		s.state = StateUploading
		return part, NextPartOK
	}
	return 0, NextPartWaiting
}

// RequeuePart worker放弃分片后重新入队等待重试
func (s *Session) RequeuePart(part int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, part)
}

// ClaimPart 重新领取指定分片; 分片已被确认或已被他人领走时返回false
func (s *Session) ClaimPart(part int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[part] {
		return false
	}
	for _, p := range s.remain {
		if p == part {
			s.inflight[part] = true
			return true
		}
	}
	return false
}

// CompletePart 后端确认后才将分片从remain中摘除
func (s *Session) CompletePart(part int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, part)
	keep := s.remain[:0]
	for _, p := range s.remain {
		if p != part {
			keep = append(keep, p)
		}
	}
	s.remain = keep
}

// RemainParts 未确认分片的快照
func (s *Session) RemainParts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.remain...)
}

// EnsureNoExpire 上传前校验凭证: 剩余有效期不足30s或缺少该分片凭证时续期
func (s *Session) EnsureNoExpire(ctx context.Context, part int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uctx != nil {
		_, hasPart := s.uctx.Parts[part]
		if hasPart && s.uctx.Expiration.Sub(s.now()) >= renewWindow {
			return nil
		}
	}
	return s.renewLocked(ctx, []int{part})
}

// Upload 推送单个分片的字节流
func (s *Session) Upload(ctx context.Context, part int, r io.Reader, length int64) error {
	s.mu.Lock()
	cred, ok := s.uctx.Parts[part]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no credential for part:%d", part)
	}
	return s.backend.UploadChunk(ctx, cred, r, length)
}

// Confirm remain清空后向后端封口
func (s *Session) Confirm(ctx context.Context, crc64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.remain) != 0 {
		return fmt.Errorf("confirm with %d parts remain", len(s.remain))
	}
	if err := s.backend.ConfirmUpload(ctx, s.uctx.ConfirmKey, crc64); err != nil {
		s.state = StateError
		s.lastErr = err
		return fmt.Errorf("confirm upload failed, err:%w", err)
	}
	s.state = StateDone
	return nil
}

// Fail 标记会话失败, 保留confirmKey供后续续传
func (s *Session) Fail(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.lastErr = err
	logutil.GetLogger(ctx).Error("upload session failed",
		zap.String("path", s.path), zap.Int("remain", len(s.remain)), zap.Error(err))
}

func (s *Session) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// renewLocked 调用方需持有s.mu
func (s *Session) renewLocked(ctx context.Context, parts []int) error {
	if s.uctx == nil || len(s.uctx.ConfirmKey) == 0 {
		return fmt.Errorf("no confirm key to renew")
	}
	var lastErr error
	for i := 0; i < renewAttempts; i++ {
		uctx, err := s.backend.RenewChunkUpload(ctx, s.uctx.ConfirmKey, parts)
		if err != nil {
			lastErr = err
			continue
		}
		if len(uctx.ConfirmKey) == 0 {
			uctx.ConfirmKey = s.uctx.ConfirmKey
		}
		// 合并新旧凭证, 新下发的覆盖同号旧项
		if s.uctx.Parts == nil {
			s.uctx.Parts = make(map[int]tbox.PartCredential)
		}
		for num, p := range uctx.Parts {
			s.uctx.Parts[num] = p
		}
		s.uctx.ConfirmKey = uctx.ConfirmKey
		s.uctx.Expiration = uctx.Expiration
		s.state = StateReady
		return nil
	}
	s.state = StateError
	s.lastErr = lastErr
	return fmt.Errorf("renew chunk upload failed, err:%w", lastErr)
}

func (s *Session) firstRemain(n int) []int {
	if len(s.remain) < n {
		n = len(s.remain)
	}
	return append([]int(nil), s.remain[:n]...)
}

// UploadContext 当前凭证上下文的快照引用, 供注册表续传使用
func (s *Session) UploadContext() *tbox.UploadContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uctx
}
