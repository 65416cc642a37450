package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	appName      = "coursedl"
	envVarPrefix = "COURSEDL"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General     GeneralSettings     `json:"general"`
	Auth        AuthSettings        `json:"auth"`
	Connections ConnectionSettings  `json:"connections"`
	Performance PerformanceSettings `json:"performance"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	OutputDir string   `json:"output_dir"`
	Courses   []string `json:"courses"`

	// RecheckExisting disables the course-level skip so that partially
	// retrieved courses are completed on re-run.
	RecheckExisting bool   `json:"recheck_existing"`
	LogLevel        string `json:"log_level"`
}

// AuthSettings holds either credentials or a pre-issued session cookie.
type AuthSettings struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	SessionCookie string `json:"session_cookie"`
}

// ConnectionSettings contains network connection parameters.
type ConnectionSettings struct {
	BaseURL                string `json:"base_url"`
	UserAgent              string `json:"user_agent"`
	ProxyURL               string `json:"proxy_url"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
	SkipTLSVerification    bool   `json:"skip_tls_verification"`
}

// PerformanceSettings contains performance tuning parameters.
type PerformanceSettings struct {
	MaxFetchRetries  int           `json:"max_fetch_retries"`
	RetryBaseDelay   time.Duration `json:"retry_base_delay"`
	WorkerBufferSize int           `json:"worker_buffer_size"`
	Resolution       string        `json:"resolution"`
}

// envOverrides lists the settings that may be supplied through the environment.
type envOverrides struct {
	Username      string   `envconfig:"COURSEDL_USERNAME"`
	Password      string   `envconfig:"COURSEDL_PASSWORD"`
	Cookie        string   `envconfig:"COURSEDL_COOKIE"`
	Proxy         string   `envconfig:"COURSEDL_PROXY"`
	OutputDir     string   `envconfig:"COURSEDL_OUTPUT_DIR"`
	Courses       []string `envconfig:"COURSEDL_COURSES"`
	BaseURL       string   `envconfig:"COURSEDL_BASE_URL"`
	MaxConcurrent int      `envconfig:"COURSEDL_MAX_CONCURRENT"`
}

const (
	KB = 1024
)

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	defaultDir := filepath.Join(homeDir, "Courses")

	return &Settings{
		General: GeneralSettings{
			OutputDir: defaultDir,
			LogLevel:  "info",
		},
		Connections: ConnectionSettings{
			BaseURL:                "https://www.linkedin.com",
			UserAgent:              "", // Empty means use default UA
			MaxConcurrentDownloads: 4,
		},
		Performance: PerformanceSettings{
			MaxFetchRetries:  3,
			RetryBaseDelay:   200 * time.Millisecond,
			WorkerBufferSize: 32 * KB,
			Resolution:       "_720",
		},
	}
}

// GetConfigDir returns the per-user configuration directory.
// XDG_CONFIG_HOME is honoured on Linux.
func GetConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, appName)
}

// GetStateDir returns the directory holding the download history database.
func GetStateDir() string {
	return filepath.Join(GetConfigDir(), "state")
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "settings.json")
}

// LoadSettings loads settings from the default path. Returns defaults if the file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path over the defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings file `%s`: %w", path, err)
	}

	return settings, nil
}

// ApplyEnv overlays COURSEDL_* environment variables onto s.
func (s *Settings) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envVarPrefix, &env); err != nil {
		return fmt.Errorf("parsing environment variables: %w", err)
	}

	if env.Username != "" {
		s.Auth.Username = env.Username
	}
	if env.Password != "" {
		s.Auth.Password = env.Password
	}
	if env.Cookie != "" {
		s.Auth.SessionCookie = env.Cookie
	}
	if env.Proxy != "" {
		s.Connections.ProxyURL = env.Proxy
	}
	if env.OutputDir != "" {
		s.General.OutputDir = env.OutputDir
	}
	if len(env.Courses) > 0 {
		s.General.Courses = env.Courses
	}
	if env.BaseURL != "" {
		s.Connections.BaseURL = env.BaseURL
	}
	if env.MaxConcurrent > 0 {
		s.Connections.MaxConcurrentDownloads = env.MaxConcurrent
	}
	return nil
}

// Validate reports the first required value that is missing.
func (s *Settings) Validate() error {
	if y, e := func() (string, string) {
		if len(s.General.Courses) == 0 {
			return "general.courses", "COURSES"
		}
		if s.General.OutputDir == "" {
			return "general.output_dir", "OUTPUT_DIR"
		}
		if s.Auth.SessionCookie != "" {
			return "", ""
		}
		if s.Auth.Username == "" {
			return "auth.username", "USERNAME"
		}
		if s.Auth.Password == "" {
			return "auth.password", "PASSWORD"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			y,
			envVarPrefix,
			e,
		)
	}
	return nil
}

// SaveSettings saves settings to the default path atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo writes settings to path atomically.
func SaveSettingsTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// RuntimeConfig carries the subset of Settings the retrieval engine consumes.
type RuntimeConfig struct {
	BaseURL                string
	UserAgent              string
	ProxyURL               string
	SkipTLSVerification    bool
	MaxConcurrentDownloads int
	WorkerBufferSize       int
	MaxFetchRetries        int
	RetryBaseDelay         time.Duration
	Resolution             string
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		BaseURL:                s.Connections.BaseURL,
		UserAgent:              s.Connections.UserAgent,
		ProxyURL:               s.Connections.ProxyURL,
		SkipTLSVerification:    s.Connections.SkipTLSVerification,
		MaxConcurrentDownloads: s.Connections.MaxConcurrentDownloads,
		WorkerBufferSize:       s.Performance.WorkerBufferSize,
		MaxFetchRetries:        s.Performance.MaxFetchRetries,
		RetryBaseDelay:         s.Performance.RetryBaseDelay,
		Resolution:             s.Performance.Resolution,
	}
}

// Redacted returns a copy of s with secrets masked, for display.
func (s *Settings) Redacted() *Settings {
	c := *s
	c.General.Courses = append([]string(nil), s.General.Courses...)
	if c.Auth.Password != "" {
		c.Auth.Password = "********"
	}
	if c.Auth.SessionCookie != "" {
		c.Auth.SessionCookie = "********"
	}
	return &c
}
