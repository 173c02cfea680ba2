package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".breachscan"

// DefaultEnvFile is the dotenv file read before the process environment.
const DefaultEnvFile = ".env"

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey       = "HIBP_API_KEY"
	EnvAPIBaseURL   = "HIBP_API_BASE_URL"
	EnvSMTPAccount  = "SMTP2GO_EMAIL"
	EnvSMTPUsername = "SMTP2GO_USERNAME"
	EnvSMTPPassword = "SMTP2GO_PASSWORD"
	EnvSenderEmail  = "SENDER_EMAIL"
	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSESRegion    = "AWS_SES_REGION"
	EnvSESAccessKey = "AWS_SES_ACCESS_KEY"
	EnvSESSecretKey = "AWS_SES_SECRET_KEY"
	EnvProxy        = "BREACHSCAN_PROXY"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .breachscan configuration file.
// Secrets are deliberately absent; they come from the environment.
type File struct {
	API   APISection   `yaml:"api,omitempty"`
	Paths PathsSection `yaml:"paths,omitempty"`
	Mail  MailSection  `yaml:"mail,omitempty"`
}

// APISection configures the breach API client.
type APISection struct {
	BaseURL     string         `yaml:"baseURL,omitempty"`
	UserAgent   string         `yaml:"userAgent,omitempty"`
	Timeout     time.Duration  `yaml:"timeout,omitempty"`
	Pacing      *time.Duration `yaml:"pacing,omitempty"`
	MaxAttempts int            `yaml:"maxAttempts,omitempty"`
	Proxy       string         `yaml:"proxy,omitempty"`
}

// PathsSection configures where files are read and written.
type PathsSection struct {
	InputDir   string `yaml:"inputDir,omitempty"`
	OutputDir  string `yaml:"outputDir,omitempty"`
	HistoryDir string `yaml:"historyDir,omitempty"`
}

// MailSection configures report emails.
type MailSection struct {
	Transport string `yaml:"transport,omitempty"`
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	Sender    string `yaml:"sender,omitempty"`
	SESRegion string `yaml:"sesRegion,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .breachscan in the current directory
// 3. Look for .breachscan in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ApplyFile overlays the non-zero values of the file onto the config.
// Pacing is applied whenever it is present, so "pacing: 0" disables it.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	setString(&c.APIBaseURL, f.API.BaseURL)
	setString(&c.UserAgent, f.API.UserAgent)
	setString(&c.ProxyAddress, f.API.Proxy)
	if f.API.Timeout > 0 {
		c.Timeout = f.API.Timeout
	}
	if f.API.Pacing != nil {
		c.PacingDelay = *f.API.Pacing
	}
	if f.API.MaxAttempts > 0 {
		c.MaxAttempts = f.API.MaxAttempts
	}

	setString(&c.InputDir, f.Paths.InputDir)
	setString(&c.OutputDir, f.Paths.OutputDir)
	setString(&c.HistoryDir, f.Paths.HistoryDir)

	setString(&c.Transport, f.Mail.Transport)
	setString(&c.SMTPHost, f.Mail.Host)
	setString(&c.SenderEmail, f.Mail.Sender)
	setString(&c.SESRegion, f.Mail.SESRegion)
	if f.Mail.Port > 0 {
		c.SMTPPort = f.Mail.Port
	}
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables that are already set are not overridden.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{EnvAPIKey, &c.APIKey},
		{EnvAPIBaseURL, &c.APIBaseURL},
		{EnvSMTPAccount, &c.SMTPAccount},
		{EnvSMTPUsername, &c.SMTPUsername},
		{EnvSMTPPassword, &c.SMTPPassword},
		{EnvSenderEmail, &c.SenderEmail},
		{EnvSMTPHost, &c.SMTPHost},
		{EnvSESRegion, &c.SESRegion},
		{EnvSESAccessKey, &c.SESAccessKey},
		{EnvSESSecretKey, &c.SESSecretKey},
		{EnvProxy, &c.ProxyAddress},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok {
			setString(s.dst, v)
		}
	}

	if v, ok := lookup(EnvSMTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSMTPPort, ErrInvalidSMTPPort)
		}
		c.SMTPPort = port
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
