package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"
)

// Mode 网关接受的认证形态
type Mode string

const (
	ModeNone      Mode = "None"
	ModeJaCookie  Mode = "JaCookie"
	ModeUserToken Mode = "UserToken"
	ModeCustom    Mode = "Custom"
	ModeMixed     Mode = "Mixed"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeJaCookie, ModeUserToken, ModeCustom, ModeMixed:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown auth mode:%s", s)
	}
}

type UserQueryFunc func(ctx context.Context, user string) (string, bool, error)

func MapUserMatch(ud map[string]string) UserQueryFunc {
	return func(ctx context.Context, user string) (string, bool, error) {
		pass, ok := ud[user]
		if !ok {
			return "", false, nil
		}
		return pass, true, nil
	}
}

type IAuth interface {
	Name() string
	IsMatchAuthType(ctx *gin.Context) bool
	Auth(ctx *gin.Context, userdata UserQueryFunc) (string, error)
}

var mp = make(map[string]IAuth)

func register(fn IAuth) {
	mp[fn.Name()] = fn
}

func Get(name string) (IAuth, bool) {
	fn, ok := mp[name]
	return fn, ok
}

func AuthList() []IAuth {
	rs := make([]IAuth, 0, len(mp))
	for _, v := range mp {
		rs = append(rs, v)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Name() < rs[j].Name() })
	return rs
}
