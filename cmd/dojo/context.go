package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thebtf/dojo/internal/app"
	"github.com/thebtf/dojo/internal/config"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	path := config.SettingsPath()
	if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		cfg.LogLevel = *c.logLevelFlag
	}
	if cfg.DBDSN == "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return cfg, nil
}

// ensureApp opens the store once per invocation and seeds an empty taxonomy.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.appOnce.Do(func() {
		cfg, err := c.loadConfig()
		if err != nil {
			c.appErr = err
			return
		}
		logger := app.NewLogger(cfg.LogLevel)

		a, err := app.New(cfg, logger)
		if err != nil {
			c.appErr = err
			return
		}
		if err := a.EnsureTaxonomy(ctx); err != nil {
			_ = a.Close()
			c.appErr = err
			return
		}
		c.app = a
	})
	return c.app, c.appErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
