package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gazettemachine/internal/config"
	"gazettemachine/internal/logging"
	"gazettemachine/internal/pipeline"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
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

// logger writes to stderr so stdout carries only command output.
func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return logger, nil
}

func (c *commandContext) wantJSON(w io.Writer) bool {
	if c.jsonFlag != nil && *c.jsonFlag {
		return true
	}
	return !isTerminal(w)
}

// withStack loads config, builds a logger and a wired pipeline, and
// releases the stores once fn returns.
func (c *commandContext) withStack(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, stack *pipeline.Stack, logger *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger, err := c.logger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stack, err := pipeline.Build(ctx, cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(ctx, cfg, stack, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
