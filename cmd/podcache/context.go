package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"podcache/internal/cache"
	"podcache/internal/config"
	"podcache/internal/logging"
	"podcache/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withManager opens the metadata store for the duration of one command and
// hands a cache manager to fn. CLI commands log to the configured log file so
// daemon and CLI activity land in the same place.
func (c *commandContext) withManager(ctx context.Context, fn func(context.Context, *cache.Manager, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "podcache.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		return err
	}
	st, err := store.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	manager := cache.NewManager(cfg, st, logger)
	return fn(ctx, manager, st)
}
