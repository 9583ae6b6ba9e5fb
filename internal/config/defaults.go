package config

const (
	defaultConfigPath       = "~/.config/visuallab/config.toml"
	defaultBaseURL          = "http://localhost:8000"
	defaultRequestTimeout   = 0
	defaultMaxResponseMiB   = 256
	defaultUserAgent        = "visuallab/0.1.0"
	defaultStateDir         = "~/.local/share/visuallab"
	defaultArtifactDir      = "~/.local/share/visuallab/artifacts"
	defaultLogDir           = "~/.local/share/visuallab/logs"
	defaultArtifactFileName = "model.pkl"
	defaultControlBind      = "127.0.0.1:7488"
	defaultPreviewLimit     = 5
	maxPreviewLimit         = 100
	defaultOperationTimeout = 0
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
			MaxResponseMiB: defaultMaxResponseMiB,
			UserAgent:      defaultUserAgent,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
		},
		Artifact: Artifact{
			FileName: defaultArtifactFileName,
		},
		Control: Control{
			Bind: defaultControlBind,
		},
		Workflow: Workflow{
			PreviewLimit:     defaultPreviewLimit,
			OperationTimeout: defaultOperationTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
