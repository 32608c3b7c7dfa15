// Package config loads the settings and credentials for an archival run.
//
// Settings come from an optional YAML file layered over DefaultSettings.
// Credentials always come from the process environment, optionally seeded
// from a .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/archiver/pkg/browser"
	"github.com/entrhq/archiver/pkg/logging"
)

// Settings is the full configuration of a run.
type Settings struct {
	// Target describes the web application being driven
	Target TargetConfig `yaml:"target" json:"target"`

	// Retry holds per-stage attempt budgets and backoffs
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Timing holds settle intervals and probe timeouts
	Timing TimingConfig `yaml:"timing" json:"timing"`

	// Browser configures the Playwright session
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Filters restrict which locations are archived, by display name
	Filters FilterConfig `yaml:"filters" json:"filters"`

	// DryRun visits and evaluates every location without clicking anything
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Report configures the run report files
	Report ReportConfig `yaml:"report" json:"report"`
}

// TargetConfig holds the fixed endpoints and element locators.
type TargetConfig struct {
	AdminURL      string   `yaml:"admin_url" json:"admin_url"`
	ListingURL    string   `yaml:"listing_url" json:"listing_url"`
	AdminMarker   string   `yaml:"admin_marker" json:"admin_marker"` // case-insensitive URL substring proving login
	PageSizeLabel string   `yaml:"page_size_label" json:"page_size_label"`
	Locators      Locators `yaml:"locators" json:"locators"`
}

// Locators addresses every element the workflow touches.
type Locators struct {
	LoginButton browser.Locator `yaml:"login_button" json:"login_button"`
	Username    browser.Locator `yaml:"username" json:"username"`
	Password    browser.Locator `yaml:"password" json:"password"`
	RememberMe  browser.Locator `yaml:"remember_me" json:"remember_me"`
	PageSize    browser.Locator `yaml:"page_size" json:"page_size"`
	RowLinks    browser.Locator `yaml:"row_links" json:"row_links"`
	NameField   browser.Locator `yaml:"name_field" json:"name_field"`
	ArchiveFlag browser.Locator `yaml:"archive_flag" json:"archive_flag"`
	Submit      browser.Locator `yaml:"submit" json:"submit"`
}

// RetryConfig bounds the retrying stages.
type RetryConfig struct {
	LoginAttempts   int           `yaml:"login_attempts" json:"login_attempts"`
	LoginBackoff    time.Duration `yaml:"login_backoff" json:"login_backoff"`
	ListingAttempts int           `yaml:"listing_attempts" json:"listing_attempts"`
	ListingBackoff  time.Duration `yaml:"listing_backoff" json:"listing_backoff"`
}

// TimingConfig holds waits that stand in for readiness signals the target
// application does not expose.
type TimingConfig struct {
	// LoginSettle bounds the wait for the login form to clear after submit
	LoginSettle time.Duration `yaml:"login_settle" json:"login_settle"`

	// ListingSettle bounds the wait for listing rows to render
	ListingSettle time.Duration `yaml:"listing_settle" json:"listing_settle"`

	// RenderPause is a fixed wait after the rows appear, covering the
	// page-size re-render that has no observable completion signal
	RenderPause time.Duration `yaml:"render_pause" json:"render_pause"`

	// ProbeTimeout bounds optional-element existence checks
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// ActionTimeout is the provider's default timeout for navigation and actions
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout"`

	// PollInterval is the period of readiness polling
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// BrowserConfig configures the browser session.
type BrowserConfig struct {
	Headless       bool `yaml:"headless" json:"headless"`
	ViewportWidth  int  `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height" json:"viewport_height"`
	SkipInstall    bool `yaml:"skip_install" json:"skip_install"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`

	// File enables the per-run log file under ~/.archiver/logs
	File bool `yaml:"file" json:"file"`

	// Dir overrides the log directory
	Dir string `yaml:"dir" json:"dir"`
}

// ReportConfig controls the files written after each run.
type ReportConfig struct {
	// Dir receives <run-id>-report.json and <run-id>-summary.md; empty disables them
	Dir string `yaml:"dir" json:"dir"`
}

// DefaultSettings returns the settings for the Enrollware location list.
func DefaultSettings() *Settings {
	return &Settings{
		Target: TargetConfig{
			AdminURL:      "https://enrollware.com/admin",
			ListingURL:    "https://www.enrollware.com/admin/ts-location-list.aspx",
			AdminMarker:   "admin",
			PageSizeLabel: "All",
			Locators: Locators{
				LoginButton: browser.ByID("loginButton"),
				Username:    browser.ByID("username"),
				Password:    browser.ByID("password"),
				RememberMe:  browser.ByID("rememberMe"),
				PageSize:    browser.ByXPath("//div[@class='dataTables_length']//select"),
				RowLinks:    browser.ByCSS("td > a"),
				NameField:   browser.ByID("mainContent_name"),
				ArchiveFlag: browser.ByID("mainContent_isDeleted"),
				Submit:      browser.ByID("mainContent_submitButton"),
			},
		},
		Retry: RetryConfig{
			LoginAttempts:   3,
			LoginBackoff:    3 * time.Second,
			ListingAttempts: 3,
			ListingBackoff:  2 * time.Second,
		},
		Timing: TimingConfig{
			LoginSettle:   20 * time.Second,
			ListingSettle: 10 * time.Second,
			RenderPause:   3 * time.Second,
			ProbeTimeout:  5 * time.Second,
			ActionTimeout: 30 * time.Second,
			PollInterval:  500 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  browser.DefaultViewportWidth,
			ViewportHeight: browser.DefaultViewportHeight,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
			File:      true,
		},
	}
}

// Load returns DefaultSettings overlaid with the YAML file at path. An empty
// path returns the defaults unchanged. Load does not validate.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return settings, nil
}

// Validate validates the settings
func (s *Settings) Validate() error {
	if s.Target.AdminURL == "" {
		return fmt.Errorf("target.admin_url is required")
	}
	if s.Target.ListingURL == "" {
		return fmt.Errorf("target.listing_url is required")
	}
	if s.Target.AdminMarker == "" {
		return fmt.Errorf("target.admin_marker is required")
	}

	required := map[string]browser.Locator{
		"login_button": s.Target.Locators.LoginButton,
		"username":     s.Target.Locators.Username,
		"password":     s.Target.Locators.Password,
		"row_links":    s.Target.Locators.RowLinks,
		"name_field":   s.Target.Locators.NameField,
		"archive_flag": s.Target.Locators.ArchiveFlag,
		"submit":       s.Target.Locators.Submit,
	}
	for name, loc := range required {
		if loc.IsZero() {
			return fmt.Errorf("target.locators.%s is required", name)
		}
	}

	if s.Retry.LoginAttempts < 1 {
		return fmt.Errorf("retry.login_attempts must be at least 1")
	}
	if s.Retry.ListingAttempts < 1 {
		return fmt.Errorf("retry.listing_attempts must be at least 1")
	}

	durations := map[string]time.Duration{
		"retry.login_backoff":   s.Retry.LoginBackoff,
		"retry.listing_backoff": s.Retry.ListingBackoff,
		"timing.login_settle":   s.Timing.LoginSettle,
		"timing.listing_settle": s.Timing.ListingSettle,
		"timing.render_pause":   s.Timing.RenderPause,
		"timing.probe_timeout":  s.Timing.ProbeTimeout,
		"timing.action_timeout": s.Timing.ActionTimeout,
		"timing.poll_interval":  s.Timing.PollInterval,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}

	if s.Browser.ViewportWidth < 0 || s.Browser.ViewportHeight < 0 {
		return fmt.Errorf("browser viewport cannot be negative")
	}

	if _, err := s.Filters.Compile(); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(s.Logging.Verbosity); err != nil {
		return err
	}

	return nil
}

// BrowserOptions converts the browser section to session options.
func (s *Settings) BrowserOptions() browser.Options {
	opts := browser.Options{
		Headless:    s.Browser.Headless,
		Timeout:     s.Timing.ActionTimeout,
		SkipInstall: s.Browser.SkipInstall,
	}
	if s.Browser.ViewportWidth > 0 && s.Browser.ViewportHeight > 0 {
		opts.Viewport = &browser.Viewport{
			Width:  s.Browser.ViewportWidth,
			Height: s.Browser.ViewportHeight,
		}
	}
	return opts
}
