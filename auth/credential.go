package auth

import (
	"context"
	"fmt"

	"github.com/1357310795/tboxdav/tbox"
)

// staticCredential 固定token/cookie的后端凭证, 过期需人工更换
type staticCredential struct {
	kind  string
	value string
}

func (s *staticCredential) Token(ctx context.Context) (string, error) {
	if len(s.value) == 0 {
		return "", fmt.Errorf("no %s credential configured", s.kind)
	}
	return s.value, nil
}

func (s *staticCredential) Renew(ctx context.Context) error {
	return fmt.Errorf("%s credential can not be renewed", s.kind)
}

// NewCookieCredential JaCookie模式: 用登录cookie换取后端访问
func NewCookieCredential(cookie string) tbox.ICredentials {
	return &staticCredential{kind: "cookie", value: cookie}
}

// NewTokenCredential UserToken模式: 用户级访问token
func NewTokenCredential(token string) tbox.ICredentials {
	return &staticCredential{kind: "token", value: token}
}

// BuildCredentials 按认证模式装配后端凭证; Mixed优先token, 回落cookie
func BuildCredentials(mode Mode, cookie, token string) (tbox.ICredentials, error) {
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeJaCookie:
		return NewCookieCredential(cookie), nil
	case ModeUserToken, ModeCustom:
		return NewTokenCredential(token), nil
	case ModeMixed:
		if len(token) > 0 {
			return NewTokenCredential(token), nil
		}
		return NewCookieCredential(cookie), nil
	default:
		return nil, fmt.Errorf("unknown auth mode:%s", mode)
	}
}
