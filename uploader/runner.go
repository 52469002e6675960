package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/1357310795/tboxdav/tbox"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultWorkerCount 单个会话并发推流的worker数
	defaultWorkerCount = 4
	// partAttempts 单分片的上传尝试上限
	partAttempts = 3
)

// Run 协调一次PUT: 顺序读取请求体, 按分片号切分,
// 已确认的分片直接丢弃字节(续传场景), 待传分片投给worker池并发推送。
// remainParts的所有变更都发生在协调方或经session内部串行
func Run(ctx context.Context, s *Session, r io.Reader) error {
	if err := s.Prepare(ctx); err != nil {
		return err
	}
	need := make(map[int]bool, len(s.RemainParts()))
	for _, p := range s.RemainParts() {
		need[p] = true
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(defaultWorkerCount)
	size := s.Size()
	var failed error
	for part := 1; part <= s.ChunkCount(); part++ {
		length := int64(tbox.ChunkSize)
		if rest := size - int64(part-1)*tbox.ChunkSize; rest < length {
			length = rest
		}
		if length < 0 {
			length = 0
		}
		if !need[part] {
			// 该分片此前已被后端确认, 跳过对应字节
			if _, err := io.CopyN(io.Discard, r, length); err != nil && err != io.EOF {
				failed = fmt.Errorf("skip completed part failed, part:%d, err:%w", part, err)
				break
			}
			continue
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			failed = fmt.Errorf("read request body failed, part:%d, err:%w", part, err)
			break
		}
		num, st := s.NextPart()
		if st == NextPartDone {
			break
		}
		if st == NextPartWaiting || num != part {
			// 分片号由协调方顺序产生, 这里只做防御校验
			failed = fmt.Errorf("part scheduling mismatch, want:%d, got:%d", part, num)
			break
		}
		eg.Go(func() error {
			return uploadPart(gctx, s, num, buf)
		})
	}
	if err := eg.Wait(); err != nil && failed == nil {
		failed = err
	}
	if failed != nil {
		s.Fail(ctx, failed)
		return failed
	}
	if remain := s.RemainParts(); len(remain) != 0 {
		err := fmt.Errorf("upload incomplete, %d parts remain", len(remain))
		s.Fail(ctx, err)
		return err
	}
	return s.Confirm(ctx, "")
}

func uploadPart(ctx context.Context, s *Session, part int, data []byte) error {
	var lastErr error
	for attempt := 1; attempt <= partAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.EnsureNoExpire(ctx, part); err != nil {
			return err
		}
		err := s.Upload(ctx, part, bytes.NewReader(data), int64(len(data)))
		if err == nil {
			s.CompletePart(part)
			return nil
		}
		lastErr = err
		if !tbox.IsTransient(err) {
			break
		}
		logutil.GetLogger(ctx).Warn("part upload failed, retrying",
			zap.Int("part", part), zap.Int("attempt", attempt), zap.Error(err))
		s.RequeuePart(part)
		if !s.ClaimPart(part) {
			return nil
		}
	}
	return fmt.Errorf("upload part:%d failed, err:%w", part, lastErr)
}
