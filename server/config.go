package server

import (
	"github.com/1357310795/tboxdav/auth"
	"github.com/1357310795/tboxdav/store"
)

type config struct {
	st       store.IStore
	authMode auth.Mode
	userMap  map[string]string
	readOnly bool
	prefix   string
}

type Option func(c *config)

func WithStore(st store.IStore) Option {
	return func(c *config) {
		c.st = st
	}
}

func WithAuth(mode auth.Mode, users map[string]string) Option {
	return func(c *config) {
		c.authMode = mode
		c.userMap = users
	}
}

func WithReadOnly(v bool) Option {
	return func(c *config) {
		c.readOnly = v
	}
}

func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

func applyOpts(opts ...Option) *config {
	c := &config{
		authMode: auth.ModeNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
