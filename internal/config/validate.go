package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateArtifact(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateService() error {
	parsed, err := url.Parse(c.Service.BaseURL)
	if err != nil {
		return fmt.Errorf("service.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service.base_url must use http or https, got %q", c.Service.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("service.base_url must include a host, got %q", c.Service.BaseURL)
	}
	if err := ensureNonNegativeMap(map[string]int{
		"service.request_timeout":    c.Service.RequestTimeout,
		"workflow.operation_timeout": c.Workflow.OperationTimeout,
	}); err != nil {
		return err
	}
	if c.Service.MaxResponseMiB <= 0 {
		return errors.New("service.max_response_mib must be positive")
	}
	return nil
}

func (c *Config) validateArtifact() error {
	name := c.Artifact.FileName
	if name == "" {
		return errors.New("artifact.file_name must be set")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("artifact.file_name must be a bare file name, got %q", name)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PreviewLimit < 1 || c.Workflow.PreviewLimit > maxPreviewLimit {
		return fmt.Errorf("workflow.preview_limit must be between 1 and %d", maxPreviewLimit)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
