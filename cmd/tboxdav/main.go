package main

import (
	"fmt"
	"os"
	"time"

	"github.com/1357310795/tboxdav/auth"
	"github.com/1357310795/tboxdav/config"
	"github.com/1357310795/tboxdav/server"
	"github.com/1357310795/tboxdav/store"
	"github.com/1357310795/tboxdav/tbox"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"go.uber.org/zap"
)

const (
	exitOK = iota
	exitBadOption
	exitStartupFailure
)

type flags struct {
	host      string
	port      int
	cacheSize string
	authMode  string
	username  string
	password  string
	cookie    string
	token     string
	access    string
	cfgFile   string
}

func main() {
	f := &flags{}
	root := &cobra.Command{
		Use:           "tboxdav",
		Short:         "webdav gateway for the tbox cloud storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	root.Flags().StringVar(&f.host, "host", "", "bind address")
	root.Flags().IntVar(&f.port, "port", 0, "bind port")
	root.Flags().StringVar(&f.cacheSize, "cachesize", "", "meta cache size, e.g. 64MiB (min 10MiB)")
	root.Flags().StringVar(&f.authMode, "auth", "", "auth mode: None/JaCookie/UserToken/Custom/Mixed")
	root.Flags().StringVar(&f.username, "username", "", "basic auth username")
	root.Flags().StringVar(&f.password, "password", "", "basic auth password")
	root.Flags().StringVar(&f.cookie, "cookie", "", "backend login cookie")
	root.Flags().StringVar(&f.token, "token", "", "backend access token")
	root.Flags().StringVar(&f.access, "access", "", "access level: Full/ReadOnly/ReadWithLinkOnly")
	root.Flags().StringVar(&f.cfgFile, "config", "", "yaml config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tboxdav: %v\n", err)
		if _, ok := err.(*optionError); ok {
			os.Exit(exitBadOption)
		}
		os.Exit(exitStartupFailure)
	}
	os.Exit(exitOK)
}

type optionError struct {
	err error
}

func (e *optionError) Error() string {
	return e.err.Error()
}

func badOption(format string, args ...interface{}) error {
	return &optionError{err: fmt.Errorf(format, args...)}
}

func buildConfig(f *flags) (*config.Config, error) {
	c := config.Default()
	if len(f.cfgFile) > 0 {
		parsed, err := config.Parse(f.cfgFile)
		if err != nil {
			return nil, badOption("load config failed: %v", err)
		}
		c = parsed
	}
	// 命令行参数覆盖配置文件
	if len(f.host) > 0 {
		c.Host = f.host
	}
	if f.port > 0 {
		c.Port = f.port
	}
	if len(f.cacheSize) > 0 {
		c.CacheSize = f.cacheSize
	}
	if len(f.authMode) > 0 {
		c.Auth.Mode = f.authMode
	}
	if len(f.username) > 0 {
		c.Auth.Username = f.username
	}
	if len(f.password) > 0 {
		c.Auth.Password = f.password
	}
	if len(f.cookie) > 0 {
		c.Auth.Cookie = f.cookie
	}
	if len(f.token) > 0 {
		c.Auth.Token = f.token
	}
	if len(f.access) > 0 {
		c.Access = f.access
	}
	if err := c.Validate(); err != nil {
		return nil, badOption("%v", err)
	}
	if _, err := auth.ParseMode(c.Auth.Mode); err != nil {
		return nil, badOption("%v", err)
	}
	return c, nil
}

func run(f *flags) error {
	c, err := buildConfig(f)
	if err != nil {
		return err
	}
	logitem := c.LogInfo
	log := logger.Init(logitem.File, logitem.Level, int(logitem.FileCount), int(logitem.FileSize), int(logitem.KeepDays), logitem.Console)
	log.Info("recv config", zap.String("host", c.Host), zap.Int("port", c.Port),
		zap.String("auth", c.Auth.Mode), zap.String("access", c.Access),
		zap.String("cachesize", c.CacheSize))

	mode, _ := auth.ParseMode(c.Auth.Mode)
	cred, err := auth.BuildCredentials(mode, c.Auth.Cookie, c.Auth.Token)
	if err != nil {
		return fmt.Errorf("build backend credentials failed: %w", err)
	}
	backend, err := tbox.New(
		tbox.WithEndpoint(c.Backend.Schema, c.Backend.Host),
		tbox.WithCallTimeout(time.Duration(c.Backend.Timeout)*time.Second),
		tbox.WithCredentials(cred),
	)
	if err != nil {
		return fmt.Errorf("init backend failed: %w", err)
	}
	cacheSize, err := c.CacheSizeBytes()
	if err != nil {
		return badOption("%v", err)
	}
	st, err := store.New(backend, cacheSize)
	if err != nil {
		return fmt.Errorf("init store failed: %w", err)
	}
	users := map[string]string{}
	if len(c.Auth.Username) > 0 {
		users[c.Auth.Username] = c.Auth.Password
	}
	svr, err := server.New(fmt.Sprintf("%s:%d", c.Host, c.Port),
		server.WithStore(st),
		server.WithAuth(mode, users),
		server.WithReadOnly(c.ReadOnly()),
		server.WithPrefix(c.Prefix),
	)
	if err != nil {
		return fmt.Errorf("init server failed: %w", err)
	}
	log.Info("init server succ, start it...")
	if err := svr.Run(); err != nil {
		return fmt.Errorf("run server failed: %w", err)
	}
	return nil
}
