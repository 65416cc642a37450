package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()
	require.NotNil(t, settings)

	t.Run("GeneralSettings", func(t *testing.T) {
		assert.NotEmpty(t, settings.General.OutputDir)
		assert.Empty(t, settings.General.Courses)
		assert.False(t, settings.General.RecheckExisting)
		assert.Equal(t, "info", settings.General.LogLevel)
	})

	t.Run("ConnectionSettings", func(t *testing.T) {
		assert.Equal(t, "https://www.linkedin.com", settings.Connections.BaseURL)
		assert.Equal(t, 4, settings.Connections.MaxConcurrentDownloads)
		assert.False(t, settings.Connections.SkipTLSVerification)
		// UserAgent can be empty (means use default)
	})

	t.Run("PerformanceSettings", func(t *testing.T) {
		assert.Equal(t, 3, settings.Performance.MaxFetchRetries)
		assert.Positive(t, settings.Performance.RetryBaseDelay)
		assert.Positive(t, settings.Performance.WorkerBufferSize)
		assert.Equal(t, "_720", settings.Performance.Resolution)
	})
}

func TestGetConfigDir_HonoursXDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)

	dir := GetConfigDir()
	assert.True(t, strings.HasSuffix(dir, "coursedl"), "config dir should end with app name, got %s", dir)
	assert.Equal(t, filepath.Join(dir, "state"), GetStateDir())
	assert.Equal(t, filepath.Join(dir, "settings.json"), GetSettingsPath())
}

func TestLoadSettingsFrom_MissingFileReturnsDefaults(t *testing.T) {
	settings, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data := `{"general":{"courses":["learning-go"]},"connections":{"proxy_url":"socks5://127.0.0.1:1080"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	settings, err := LoadSettingsFrom(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"learning-go"}, settings.General.Courses)
	assert.Equal(t, "socks5://127.0.0.1:1080", settings.Connections.ProxyURL)
	// Untouched fields come from defaults
	assert.Equal(t, 4, settings.Connections.MaxConcurrentDownloads)
	assert.Equal(t, 3, settings.Performance.MaxFetchRetries)
}

func TestLoadSettingsFrom_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadSettingsFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling settings file")
}

func TestSaveAndLoadSettings_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := DefaultSettings()
	original.General.Courses = []string{"a", "b"}
	original.Auth.SessionCookie = "cookie"
	original.Performance.RetryBaseDelay = 2 * time.Second

	require.NoError(t, SaveSettingsTo(path, original))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("COURSEDL_USERNAME", "user@example.com")
	t.Setenv("COURSEDL_PASSWORD", "hunter2")
	t.Setenv("COURSEDL_COOKIE", "AQEDAR")
	t.Setenv("COURSEDL_PROXY", "http://proxy:3128")
	t.Setenv("COURSEDL_OUTPUT_DIR", "/data/courses")
	t.Setenv("COURSEDL_COURSES", "learning-go,advanced-go")
	t.Setenv("COURSEDL_BASE_URL", "http://127.0.0.1:8080")
	t.Setenv("COURSEDL_MAX_CONCURRENT", "9")

	settings := DefaultSettings()
	require.NoError(t, settings.ApplyEnv())

	assert.Equal(t, "user@example.com", settings.Auth.Username)
	assert.Equal(t, "hunter2", settings.Auth.Password)
	assert.Equal(t, "AQEDAR", settings.Auth.SessionCookie)
	assert.Equal(t, "http://proxy:3128", settings.Connections.ProxyURL)
	assert.Equal(t, "/data/courses", settings.General.OutputDir)
	assert.Equal(t, []string{"learning-go", "advanced-go"}, settings.General.Courses)
	assert.Equal(t, "http://127.0.0.1:8080", settings.Connections.BaseURL)
	assert.Equal(t, 9, settings.Connections.MaxConcurrentDownloads)
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	t.Setenv("COURSEDL_MAX_CONCURRENT", "many")

	err := DefaultSettings().ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing environment variables")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:    "no courses",
			mutate:  func(s *Settings) { s.Auth.SessionCookie = "c" },
			wantErr: "missing required configuration: general.courses / COURSEDL_COURSES",
		},
		{
			name: "no credentials",
			mutate: func(s *Settings) {
				s.General.Courses = []string{"x"}
			},
			wantErr: "missing required configuration: auth.username / COURSEDL_USERNAME",
		},
		{
			name: "username without password",
			mutate: func(s *Settings) {
				s.General.Courses = []string{"x"}
				s.Auth.Username = "u"
			},
			wantErr: "missing required configuration: auth.password / COURSEDL_PASSWORD",
		},
		{
			name: "cookie only",
			mutate: func(s *Settings) {
				s.General.Courses = []string{"x"}
				s.Auth.SessionCookie = "c"
			},
		},
		{
			name: "credentials",
			mutate: func(s *Settings) {
				s.General.Courses = []string{"x"}
				s.Auth.Username = "u"
				s.Auth.Password = "p"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestToRuntimeConfig(t *testing.T) {
	s := DefaultSettings()
	s.Connections.ProxyURL = "socks5://127.0.0.1:9050"
	s.Connections.SkipTLSVerification = true
	s.Performance.Resolution = "_1080"

	rc := s.ToRuntimeConfig()
	assert.Equal(t, s.Connections.BaseURL, rc.BaseURL)
	assert.Equal(t, s.Connections.ProxyURL, rc.ProxyURL)
	assert.True(t, rc.SkipTLSVerification)
	assert.Equal(t, s.Connections.MaxConcurrentDownloads, rc.MaxConcurrentDownloads)
	assert.Equal(t, s.Performance.WorkerBufferSize, rc.WorkerBufferSize)
	assert.Equal(t, s.Performance.MaxFetchRetries, rc.MaxFetchRetries)
	assert.Equal(t, s.Performance.RetryBaseDelay, rc.RetryBaseDelay)
	assert.Equal(t, "_1080", rc.Resolution)
}

func TestRedacted(t *testing.T) {
	s := DefaultSettings()
	s.Auth.Username = "u"
	s.Auth.Password = "secret"
	s.Auth.SessionCookie = "cookie"

	r := s.Redacted()
	assert.Equal(t, "u", r.Auth.Username)
	assert.NotEqual(t, "secret", r.Auth.Password)
	assert.NotEqual(t, "cookie", r.Auth.SessionCookie)
	// Original untouched
	assert.Equal(t, "secret", s.Auth.Password)
}
