package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeService()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArtifact()
	c.normalizeControl()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeService() {
	if value, ok := os.LookupEnv("VISUALLAB_BACKEND_URL"); ok && strings.TrimSpace(value) != "" {
		c.Service.BaseURL = value
	}
	c.Service.BaseURL = strings.TrimRight(strings.TrimSpace(c.Service.BaseURL), "/")
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = defaultBaseURL
	}
	if c.Service.MaxResponseMiB <= 0 {
		c.Service.MaxResponseMiB = defaultMaxResponseMiB
	}
	c.Service.UserAgent = strings.TrimSpace(c.Service.UserAgent)
	if c.Service.UserAgent == "" {
		c.Service.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = defaultArtifactDir
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArtifact() {
	c.Artifact.FileName = strings.TrimSpace(c.Artifact.FileName)
	if c.Artifact.FileName == "" {
		c.Artifact.FileName = defaultArtifactFileName
	}
}

func (c *Config) normalizeControl() {
	c.Control.Bind = strings.TrimSpace(c.Control.Bind)
	if c.Control.Bind == "" {
		c.Control.Bind = defaultControlBind
	}
	c.Control.Token = strings.TrimSpace(c.Control.Token)
	if c.Control.Token == "" {
		if value, ok := os.LookupEnv("VISUALLAB_API_TOKEN"); ok {
			c.Control.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PreviewLimit == 0 {
		c.Workflow.PreviewLimit = defaultPreviewLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
