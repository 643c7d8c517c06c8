package config

import (
	"fmt"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration.
type Config struct {
	Version string        `yaml:"version"`
	Agent   AgentConfig   `yaml:"agent"`
	Auth    AuthConfig    `yaml:"auth"`
	Upload  UploadConfig  `yaml:"upload"`
	Capture CaptureConfig `yaml:"capture"`
}

// AgentConfig contains settings for the long-running agent process.
type AgentConfig struct {
	BridgeHost      string        `yaml:"bridge_host"`
	BridgePort      int           `yaml:"bridge_port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig contains the identity provider endpoints and client settings
// for the native-app authorization code flow.
type AuthConfig struct {
	AuthorizeURL string   `yaml:"authorize_url"`
	TokenURL     string   `yaml:"token_url"`
	RevokeURL    string   `yaml:"revoke_url"`
	ClientID     string   `yaml:"client_id"`
	Scheme       string   `yaml:"scheme"`
	Scopes       []string `yaml:"scopes"`
}

// RedirectURI returns the deep-link redirect target registered with the
// identity provider.
func (a AuthConfig) RedirectURI() string {
	return a.Scheme + "://auth"
}

// UploadConfig contains the capture upload endpoint settings.
type UploadConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CaptureConfig contains screenshot, overlay and window-helper settings.
type CaptureConfig struct {
	ScreenshotCommand []string     `yaml:"screenshot_command"`
	OverlayCommand    []string     `yaml:"overlay_command"`
	ScaleFactor       float64      `yaml:"scale_factor"`
	TempPrefix        string       `yaml:"temp_prefix"`
	WindowHelper      HelperConfig `yaml:"window_helper"`
}

// HelperConfig describes the native window-enumeration helper binary.
type HelperConfig struct {
	Path string `yaml:"path"`
	// Mode selects how correlation happens: "match" invokes the helper with
	// the region and trusts its single-match output; "list" asks the helper
	// for the full z-ordered snapshot and correlates in-process.
	Mode string `yaml:"mode"`
	// ExcludeApp is the owner name of the capturing application itself,
	// skipped during correlation so the overlay never attributes to us.
	ExcludeApp string `yaml:"exclude_app"`
}

// Default values applied when the config file omits a field.
const (
	DefaultBridgeHost = "127.0.0.1"
	DefaultBridgePort = 47923
	DefaultScheme     = "curate"
	DefaultTempPrefix = "synthesis-capture-"
	DefaultExcludeApp = "Synthesis"
)

// Parse parses YAML content into a Config and applies defaults.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.BridgeHost == "" {
		c.Agent.BridgeHost = DefaultBridgeHost
	}
	if c.Agent.BridgePort == 0 {
		c.Agent.BridgePort = DefaultBridgePort
	}
	if c.Agent.LogLevel == "" {
		c.Agent.LogLevel = "info"
	}
	if c.Agent.ShutdownTimeout == 0 {
		c.Agent.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.Scheme == "" {
		c.Auth.Scheme = DefaultScheme
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = []string{"openid", "profile", "email", "offline_access"}
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = 30 * time.Second
	}
	if len(c.Capture.ScreenshotCommand) == 0 {
		c.Capture.ScreenshotCommand = []string{"screencapture", "-x"}
	}
	if c.Capture.ScaleFactor == 0 {
		c.Capture.ScaleFactor = 1.0
	}
	if c.Capture.TempPrefix == "" {
		c.Capture.TempPrefix = DefaultTempPrefix
	}
	if c.Capture.WindowHelper.Mode == "" {
		c.Capture.WindowHelper.Mode = "match"
	}
	if c.Capture.WindowHelper.ExcludeApp == "" {
		c.Capture.WindowHelper.ExcludeApp = DefaultExcludeApp
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"auth.authorize_url": c.Auth.AuthorizeURL,
		"auth.token_url":     c.Auth.TokenURL,
		"upload.url":         c.Upload.URL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
	}
	if c.Auth.RevokeURL != "" {
		if _, err := url.ParseRequestURI(c.Auth.RevokeURL); err != nil {
			return fmt.Errorf("auth.revoke_url is not a valid URL: %w", err)
		}
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required")
	}
	if c.Agent.BridgePort < 1 || c.Agent.BridgePort > 65535 {
		return fmt.Errorf("agent.bridge_port %d out of range", c.Agent.BridgePort)
	}
	switch c.Capture.WindowHelper.Mode {
	case "match", "list":
	default:
		return fmt.Errorf("capture.window_helper.mode must be \"match\" or \"list\", got %q", c.Capture.WindowHelper.Mode)
	}
	switch c.Agent.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level %q is not a known level", c.Agent.LogLevel)
	}
	return nil
}
