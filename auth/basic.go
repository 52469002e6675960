package auth

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	BasicAuthName = "basic"
)

func init() {
	register(&basicAuth{})
}

type basicAuth struct {
}

func (b *basicAuth) Name() string {
	return BasicAuthName
}

func (b *basicAuth) IsMatchAuthType(ctx *gin.Context) bool {
	auth := ctx.GetHeader("Authorization")
	return strings.HasPrefix(auth, "Basic")
}

func (b *basicAuth) Auth(ctx *gin.Context, fn UserQueryFunc) (string, error) {
	user, pass, ok := ctx.Request.BasicAuth()
	if !ok {
		return "", fmt.Errorf("no auth found")
	}
	expect, ok, err := fn(ctx, user)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("user not found, u:%s", user)
	}
	if expect != pass {
		return "", fmt.Errorf("password not match, u:%s", user)
	}
	return user, nil
}
