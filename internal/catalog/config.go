package catalog

import (
	"strings"
	"time"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 4
	DefaultTimeout  = 30 * time.Second
)

type Config struct {
	URL           string
	ApplicationID string
	PageSize      int
	MaxPages      int
	Timeout       time.Duration
	InsecureTLS   bool
	ResolveNames  bool
}

func DefaultConfig() Config {
	return Config{
		PageSize:     DefaultPageSize,
		MaxPages:     DefaultMaxPages,
		Timeout:      DefaultTimeout,
		ResolveNames: true,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "catalog URL is required")
	}
	if strings.TrimSpace(c.ApplicationID) == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "catalog application ID is required")
	}
	if c.PageSize < 0 || c.MaxPages < 0 || c.Timeout < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "catalog page size, max pages and timeout must not be negative")
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	return c
}
