package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultAPIBaseURL is the Have I Been Pwned API host.
	DefaultAPIBaseURL = "https://haveibeenpwned.com"

	// DefaultUserAgent identifies breachscan to the API. The API rejects
	// requests without a user agent.
	DefaultUserAgent = "breachscan (+https://github.com/nao1215/breachscan)"

	// DefaultTimeout applies to every outbound API request.
	DefaultTimeout = 10 * time.Second

	// DefaultPacingDelay is the pause between successive lookups of a batch.
	DefaultPacingDelay = 1500 * time.Millisecond

	// DefaultMaxAttempts bounds the attempts per lookup when the API keeps
	// answering 429.
	DefaultMaxAttempts = 5

	// DefaultInputDir holds the address lists that `check --list` resolves against.
	DefaultInputDir = "input"

	// DefaultOutputDir receives rendered report files.
	DefaultOutputDir = "generated"

	// DefaultSMTPHost is the outbound relay.
	DefaultSMTPHost = "mail.smtp2go.com"

	// DefaultSMTPPort is the relay's submission port.
	DefaultSMTPPort = 2525

	// DefaultSESRegion is used when the SES transport is selected without a region.
	DefaultSESRegion = "us-east-1"

	// AppName is the application name used for XDG directory paths.
	AppName = "breachscan"
)

// Mail transports.
const (
	// TransportSMTP sends through the authenticated STARTTLS relay.
	TransportSMTP = "smtp"

	// TransportSES sends through Amazon SES.
	TransportSES = "ses"
)

// Config holds all configuration options for breachscan.
// It is populated from defaults, the config file, the environment and CLI
// flags, and passed explicitly to the components that need it.
type Config struct {
	// APIKey is the hibp-api-key header value.
	APIKey string

	// APIBaseURL is the scheme and host of the breach API, without a trailing slash.
	APIBaseURL string

	// UserAgent is sent with every API request.
	UserAgent string

	// Timeout is the per-request timeout for API calls.
	Timeout time.Duration

	// PacingDelay is the pause between successive lookups of a batch.
	// Manual lookups are never paced.
	PacingDelay time.Duration

	// MaxAttempts is the maximum number of requests per lookup, including
	// retries after HTTP 429.
	MaxAttempts int

	// ProxyAddress is an optional SOCKS5 proxy ("host:port") for API traffic.
	ProxyAddress string

	// InputDir is searched for address lists given by bare file name.
	InputDir string

	// OutputDir receives rendered report files.
	OutputDir string

	// Transport selects how report emails are sent: TransportSMTP or TransportSES.
	Transport string

	// SMTPHost and SMTPPort address the outbound relay.
	SMTPHost string
	SMTPPort int

	// SMTPAccount is the relay account email, used as the envelope sender.
	SMTPAccount string

	// SMTPUsername and SMTPPassword authenticate against the relay.
	SMTPUsername string
	SMTPPassword string

	// SenderEmail is the From address of report emails.
	SenderEmail string

	// SESRegion, SESAccessKey and SESSecretKey configure the SES transport.
	// Empty keys fall back to the default AWS credential chain.
	SESRegion    string
	SESAccessKey string
	SESSecretKey string

	// HistoryDir is where the run history database lives.
	HistoryDir string

	// SaveHistory records each run in the history database.
	SaveHistory bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the YAML configuration file, if one was given.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:  DefaultAPIBaseURL,
		UserAgent:   DefaultUserAgent,
		Timeout:     DefaultTimeout,
		PacingDelay: DefaultPacingDelay,
		MaxAttempts: DefaultMaxAttempts,
		InputDir:    DefaultInputDir,
		OutputDir:   DefaultOutputDir,
		Transport:   TransportSMTP,
		SMTPHost:    DefaultSMTPHost,
		SMTPPort:    DefaultSMTPPort,
		SESRegion:   DefaultSESRegion,
		HistoryDir:  XDGDataDir(),
		SaveHistory: true,
	}
}

// XDGDataDir returns the XDG data directory for breachscan.
// On Linux: ~/.local/share/breachscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for breachscan.
// On Linux: ~/.config/breachscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the numeric and enumerated settings.
// It returns the first problem found. Credentials are checked separately by
// ValidateCredentials because only the check command needs them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrNoAPIBaseURL
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.PacingDelay < 0 {
		return ErrInvalidPacing
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	switch c.Transport {
	case TransportSMTP:
		if c.SMTPPort < 1 || c.SMTPPort > 65535 {
			return ErrInvalidSMTPPort
		}
	case TransportSES:
	default:
		return ErrUnknownTransport
	}
	return nil
}

// requiredSetting pairs a setting's environment variable with its value.
type requiredSetting struct {
	name  string
	value string
}

// ValidateCredentials checks that every required secret is present and
// returns a *MissingSettingError naming the first one that is not.
// The SES transport authenticates through AWS, so it does not need the
// relay account, username and password.
func (c *Config) ValidateCredentials() error {
	required := []requiredSetting{{EnvAPIKey, c.APIKey}}
	if c.Transport != TransportSES {
		required = append(required,
			requiredSetting{EnvSMTPAccount, c.SMTPAccount},
			requiredSetting{EnvSMTPUsername, c.SMTPUsername},
			requiredSetting{EnvSMTPPassword, c.SMTPPassword},
		)
	}
	required = append(required, requiredSetting{EnvSenderEmail, c.SenderEmail})

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &MissingSettingError{Setting: r.name}
		}
	}
	return nil
}
