package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/archiver/pkg/browser"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archiver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultSettingsAreValid(t *testing.T) {
	settings := DefaultSettings()
	require.NoError(t, settings.Validate())

	assert.Equal(t, "https://enrollware.com/admin", settings.Target.AdminURL)
	assert.Equal(t, browser.ByCSS("td > a"), settings.Target.Locators.RowLinks)
	assert.Equal(t, 3, settings.Retry.LoginAttempts)
	assert.Equal(t, 20*time.Second, settings.Timing.LoginSettle)
	assert.False(t, settings.DryRun)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := writeConfig(t, `
target:
  listing_url: https://example.test/locations
  locators:
    row_links: "css=table.locations td > a"
    archive_flag: "xpath=//input[@name='archived']"
retry:
  login_attempts: 5
  listing_backoff: 750ms
timing:
  login_settle: 45s
filters:
  exclude:
    - "HQ*"
dry_run: true
logging:
  verbosity: debug
  file: false
report:
  dir: reports
`)

	settings, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, settings.Validate())

	assert.Equal(t, "https://example.test/locations", settings.Target.ListingURL)
	assert.Equal(t, browser.ByCSS("table.locations td > a"), settings.Target.Locators.RowLinks)
	assert.Equal(t, browser.ByXPath("//input[@name='archived']"), settings.Target.Locators.ArchiveFlag)
	assert.Equal(t, 5, settings.Retry.LoginAttempts)
	assert.Equal(t, 750*time.Millisecond, settings.Retry.ListingBackoff)
	assert.Equal(t, 45*time.Second, settings.Timing.LoginSettle)
	assert.Equal(t, []string{"HQ*"}, settings.Filters.Exclude)
	assert.True(t, settings.DryRun)
	assert.Equal(t, "debug", settings.Logging.Verbosity)
	assert.False(t, settings.Logging.File)
	assert.Equal(t, "reports", settings.Report.Dir)

	// Untouched fields keep their defaults.
	assert.Equal(t, "https://enrollware.com/admin", settings.Target.AdminURL)
	assert.Equal(t, browser.ByID("loginButton"), settings.Target.Locators.LoginButton)
	assert.Equal(t, 3, settings.Retry.ListingAttempts)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeConfig(t, "retry: [not, a, map]\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")

	path = writeConfig(t, "target:\n  locators:\n    submit: \"id=\"\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *Settings)
		errSubstr string
	}{
		{
			name:      "missing admin url",
			mutate:    func(s *Settings) { s.Target.AdminURL = "" },
			errSubstr: "admin_url",
		},
		{
			name:      "missing listing url",
			mutate:    func(s *Settings) { s.Target.ListingURL = "" },
			errSubstr: "listing_url",
		},
		{
			name:      "missing admin marker",
			mutate:    func(s *Settings) { s.Target.AdminMarker = "" },
			errSubstr: "admin_marker",
		},
		{
			name:      "missing required locator",
			mutate:    func(s *Settings) { s.Target.Locators.ArchiveFlag = browser.Locator{} },
			errSubstr: "archive_flag",
		},
		{
			name:      "zero login attempts",
			mutate:    func(s *Settings) { s.Retry.LoginAttempts = 0 },
			errSubstr: "login_attempts",
		},
		{
			name:      "zero listing attempts",
			mutate:    func(s *Settings) { s.Retry.ListingAttempts = 0 },
			errSubstr: "listing_attempts",
		},
		{
			name:      "negative duration",
			mutate:    func(s *Settings) { s.Timing.ProbeTimeout = -time.Second },
			errSubstr: "timing.probe_timeout",
		},
		{
			name:      "invalid glob",
			mutate:    func(s *Settings) { s.Filters.Include = []string{"[abc"} },
			errSubstr: "filters.include",
		},
		{
			name:      "invalid verbosity",
			mutate:    func(s *Settings) { s.Logging.Verbosity = "chatty" },
			errSubstr: "verbosity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.mutate(settings)
			err := settings.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestValidate_OptionalLocatorsMayBeEmpty(t *testing.T) {
	settings := DefaultSettings()
	settings.Target.Locators.RememberMe = browser.Locator{}
	settings.Target.Locators.PageSize = browser.Locator{}
	assert.NoError(t, settings.Validate())
}

func TestLoad_BlankOptionalLocators(t *testing.T) {
	path := writeConfig(t, `
target:
  locators:
    remember_me: ""
    page_size: "  "
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.True(t, settings.Target.Locators.RememberMe.IsZero())
	assert.True(t, settings.Target.Locators.PageSize.IsZero())
	assert.NoError(t, settings.Validate())
}

func TestLoad_BlankRequiredLocatorFailsValidation(t *testing.T) {
	path := writeConfig(t, "target:\n  locators:\n    submit: \"\"\n")

	settings, err := Load(path)
	require.NoError(t, err)
	assert.ErrorContains(t, settings.Validate(), "target.locators.submit is required")
}

func TestBrowserOptions(t *testing.T) {
	settings := DefaultSettings()
	settings.Browser.Headless = false
	settings.Timing.ActionTimeout = 12 * time.Second

	opts := settings.BrowserOptions()
	assert.False(t, opts.Headless)
	assert.Equal(t, 12*time.Second, opts.Timeout)
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, browser.DefaultViewportWidth, opts.Viewport.Width)

	settings.Browser.ViewportWidth = 0
	assert.Nil(t, settings.BrowserOptions().Viewport)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Run("both present", func(t *testing.T) {
		t.Setenv(EnvUsername, "operator")
		t.Setenv(EnvPassword, "s3cret")

		creds, err := CredentialsFromEnv()
		require.NoError(t, err)
		assert.Equal(t, Credentials{Username: "operator", Password: "s3cret"}, creds)
	})

	t.Run("password missing", func(t *testing.T) {
		t.Setenv(EnvUsername, "operator")
		t.Setenv(EnvPassword, "")

		_, err := CredentialsFromEnv()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingCredentials))
		assert.Contains(t, err.Error(), EnvPassword)
		assert.NotContains(t, err.Error(), EnvUsername)
	})

	t.Run("both missing", func(t *testing.T) {
		t.Setenv(EnvUsername, "")
		t.Setenv(EnvPassword, "")

		_, err := CredentialsFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvUsername)
		assert.Contains(t, err.Error(), EnvPassword)
	})
}

func TestCredentialsStringRedactsPassword(t *testing.T) {
	s := Credentials{Username: "operator", Password: "s3cret"}.String()
	assert.Contains(t, s, "operator")
	assert.NotContains(t, s, "s3cret")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "archiver.env")
	require.NoError(t, os.WriteFile(envPath, []byte(strings.Join([]string{
		EnvUsername + "=from-file",
		EnvPassword + "=file-pass",
	}, "\n")), 0600))

	// Existing environment values win over the file.
	t.Setenv(EnvUsername, "from-env")
	t.Setenv(EnvPassword, "")
	require.NoError(t, os.Unsetenv(EnvPassword))

	require.NoError(t, LoadEnvFile(envPath))
	assert.Equal(t, "from-env", os.Getenv(EnvUsername))
	assert.Equal(t, "file-pass", os.Getenv(EnvPassword))

	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestLoadEnvFile_MissingDefaultIsIgnored(t *testing.T) {
	chdir(t, t.TempDir())
	assert.NoError(t, LoadEnvFile(""))
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
