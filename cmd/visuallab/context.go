package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"visuallab/internal/api"
	"visuallab/internal/config"
)

type commandContext struct {
	bindFlag   *string
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configSource string
	configExists bool
	configErr    error
}

func newCommandContext(bindFlag, configFlag *string) *commandContext {
	return &commandContext{
		bindFlag:   bindFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, source, exists, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		c.configSource = source
		c.configExists = exists
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) bindAddress() string {
	if c.bindFlag != nil {
		if bind := strings.TrimSpace(*c.bindFlag); bind != "" {
			return bind
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Control.Bind
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(c.bindAddress(), cfg.Control.Token)
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.apiClient()
	if err != nil {
		return wrapDialError(err, c.bindAddress())
	}
	if err := fn(client); err != nil {
		return wrapDialError(err, c.bindAddress())
	}
	return nil
}

func wrapDialError(err error, bind string) error {
	if api.IsUnavailable(err) {
		return fmt.Errorf("connect to daemon: nothing is listening on %s; start it with `visuallab serve`", bind)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
