package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	// MinCacheSize 元信息缓存下限
	MinCacheSize = 10 * 1024 * 1024
)

type AuthConfig struct {
	Mode     string `yaml:"mode"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Cookie   string `yaml:"cookie"`
	Token    string `yaml:"token"`
}

type BackendConfig struct {
	Schema  string `yaml:"schema"`
	Host    string `yaml:"host"`
	Timeout int    `yaml:"timeout"` //秒, 单次后端调用
}

type Config struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	CacheSize string           `yaml:"cachesize"`
	Auth      AuthConfig       `yaml:"auth"`
	Access    string           `yaml:"access"`
	Prefix    string           `yaml:"prefix"`
	Backend   BackendConfig    `yaml:"backend"`
	LogInfo   logger.LogConfig `yaml:"log_info"`
}

func Default() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      8080,
		CacheSize: "64MiB",
		Auth:      AuthConfig{Mode: "None"},
		Access:    "Full",
		Backend:   BackendConfig{Schema: "https", Timeout: 30},
	}
}

func Parse(f string) (*Config, error) {
	raw, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("read file:%w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode yaml failed, err:%w", err)
	}
	return c, nil
}

// CacheSizeBytes 解析人类可读的容量并做下限校验
func (c *Config) CacheSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.CacheSize)
	if err != nil {
		return 0, fmt.Errorf("parse cachesize failed, value:%s, err:%w", c.CacheSize, err)
	}
	if n < MinCacheSize {
		return 0, fmt.Errorf("cachesize below minimum, value:%s, min:%s", c.CacheSize, humanize.IBytes(MinCacheSize))
	}
	return int64(n), nil
}

// ReadOnly Full之外的访问级别都按只读挂载处理
func (c *Config) ReadOnly() bool {
	return c.Access != "Full"
}

func (c *Config) Validate() error {
	if _, err := c.CacheSizeBytes(); err != nil {
		return err
	}
	switch c.Access {
	case "Full", "ReadOnly", "ReadWithLinkOnly":
	default:
		return fmt.Errorf("unknown access level:%s", c.Access)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port:%d", c.Port)
	}
	return nil
}
