package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an element does not appear within its timeout.
var ErrNotFound = errors.New("element not found")

// Provider is the capability surface the archival workflow drives.
//
// Implementations own their own waiting and polling. A call returns once the
// operation succeeded or its timeout elapsed.
type Provider interface {
	// Navigate loads url in the current page.
	Navigate(ctx context.Context, url string) error

	// ElementExists reports whether loc is attached to the DOM within timeout.
	// A non-positive timeout checks once without waiting.
	ElementExists(ctx context.Context, loc Locator, timeout time.Duration) bool

	// InputText replaces the value of the input matched by loc.
	InputText(ctx context.Context, loc Locator, text string) error

	// ClickViaScript invokes the element's click() from page script, bypassing
	// actionability checks such as visibility and overlap.
	ClickViaScript(ctx context.Context, loc Locator) error

	// SelectByText selects the option whose visible label is label.
	SelectByText(ctx context.Context, loc Locator, label string) error

	// ReadAttribute returns the named attribute of the first match of loc.
	// The boolean is false when the element or attribute is missing.
	ReadAttribute(ctx context.Context, loc Locator, name string) (string, bool)

	// CurrentURL returns the URL of the current page.
	CurrentURL() string

	// FindAll returns every element currently matching loc, in DOM order.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)

	// Close releases all resources held by the provider.
	Close() error
}

// Element is a handle to one matched element.
type Element interface {
	// Attribute returns the named attribute, or false if it is not set.
	Attribute(name string) (string, bool)
}

// Strategy identifies how a Locator value is interpreted.
type Strategy string

const (
	// StrategyID matches an element by its id attribute
	StrategyID Strategy = "id"

	// StrategyCSS matches elements with a CSS selector
	StrategyCSS Strategy = "css"

	// StrategyXPath matches elements with an XPath expression
	StrategyXPath Strategy = "xpath"
)

// Locator is an opaque description of how to find an element.
type Locator struct {
	Strategy Strategy
	Value    string
}

// ByID returns a locator matching the element with the given id.
func ByID(id string) Locator {
	return Locator{Strategy: StrategyID, Value: id}
}

// ByCSS returns a locator matching a CSS selector.
func ByCSS(selector string) Locator {
	return Locator{Strategy: StrategyCSS, Value: selector}
}

// ByXPath returns a locator matching an XPath expression.
func ByXPath(expr string) Locator {
	return Locator{Strategy: StrategyXPath, Value: expr}
}

// ParseLocator parses the "strategy=value" form. A string without a known
// strategy prefix is treated as a CSS selector.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	if prefix, value, ok := strings.Cut(s, "="); ok {
		strategy := Strategy(strings.ToLower(strings.TrimSpace(prefix)))
		switch strategy {
		case StrategyID, StrategyCSS, StrategyXPath:
			value = strings.TrimSpace(value)
			if value == "" {
				return Locator{}, fmt.Errorf("locator %q has no value", s)
			}
			return Locator{Strategy: strategy, Value: value}, nil
		}
	}

	return ByCSS(s), nil
}

// Selector renders the locator as a Playwright selector string.
func (l Locator) Selector() string {
	switch l.Strategy {
	case StrategyID:
		return "id=" + l.Value
	case StrategyXPath:
		return "xpath=" + l.Value
	default:
		return "css=" + l.Value
	}
}

// String returns the "strategy=value" form accepted by ParseLocator.
func (l Locator) String() string {
	strategy := l.Strategy
	if strategy == "" {
		strategy = StrategyCSS
	}
	return string(strategy) + "=" + l.Value
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// Options configures a new browser Session.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout is the default timeout for page operations
	Timeout time.Duration

	// SkipInstall skips downloading the Playwright driver and browsers
	SkipInstall bool
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for session options
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// MarshalText implements encoding.TextMarshaler so locators can be written
// in configuration files as "strategy=value".
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using ParseLocator.
// Blank text decodes to the zero Locator, which leaves optional elements
// unset.
func (l *Locator) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*l = Locator{}
		return nil
	}
	parsed, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
