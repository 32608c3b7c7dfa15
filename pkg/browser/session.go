package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// readPropertyScript returns the element's string property when it has one,
// falling back to the raw attribute. This mirrors what an operator sees: the
// live value of an input and the resolved href of a link.
const readPropertyScript = `(el, name) => {
	const prop = el[name];
	if (typeof prop === "string") {
		return prop;
	}
	return el.getAttribute(name);
}`

const clickScript = `el => el.click()`

// elementAttributeTimeout bounds attribute reads on already-enumerated elements.
const elementAttributeTimeout = 5 * time.Second

// Session is a Provider backed by a Playwright-driven Chromium page.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated cookies and storage)
	Context playwright.BrowserContext

	// Page is the single page every primitive operates on
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	// CreatedAt is the timestamp when the session was launched
	CreatedAt time.Time

	pw        *playwright.Playwright
	timeout   time.Duration
	closeOnce sync.Once
	closeErr  error
}

var _ Provider = (*Session)(nil)

// Launch installs (unless skipped) and starts Playwright, then opens a
// Chromium page configured by opts.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(milliseconds(opts.Timeout))

	return &Session{
		Browser:   browser,
		Context:   bctx,
		Page:      page,
		Headless:  opts.Headless,
		CreatedAt: time.Now(),
		pw:        pw,
		timeout:   opts.Timeout,
	}, nil
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(milliseconds(s.timeout)),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// ElementExists reports whether loc is attached within timeout. A
// non-positive timeout checks the current DOM once; Playwright would read
// zero as "wait forever".
func (s *Session) ElementExists(ctx context.Context, loc Locator, timeout time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if timeout <= 0 {
		n, err := s.Page.Locator(loc.Selector()).Count()
		return err == nil && n > 0
	}
	return s.waitAttached(loc, timeout) == nil
}

// InputText fills the matched input with text.
func (s *Session) InputText(ctx context.Context, loc Locator, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.waitAttached(loc, s.timeout); err != nil {
		return err
	}

	err := s.first(loc).Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(milliseconds(s.timeout)),
	})
	if err != nil {
		return fmt.Errorf("fill %s failed: %w", loc, err)
	}
	return nil
}

// ClickViaScript calls click() on the matched element from page script.
func (s *Session) ClickViaScript(ctx context.Context, loc Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.waitAttached(loc, s.timeout); err != nil {
		return err
	}

	_, err := s.first(loc).Evaluate(clickScript, nil, playwright.LocatorEvaluateOptions{
		Timeout: playwright.Float(milliseconds(s.timeout)),
	})
	if err != nil {
		return fmt.Errorf("script click on %s failed: %w", loc, err)
	}
	return nil
}

// SelectByText selects the option labelled label in the matched <select>.
func (s *Session) SelectByText(ctx context.Context, loc Locator, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.waitAttached(loc, s.timeout); err != nil {
		return err
	}

	_, err := s.first(loc).SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{label},
	}, playwright.LocatorSelectOptionOptions{
		Timeout: playwright.Float(milliseconds(s.timeout)),
	})
	if err != nil {
		return fmt.Errorf("select %q in %s failed: %w", label, loc, err)
	}
	return nil
}

// ReadAttribute returns the named property or attribute of the first match.
func (s *Session) ReadAttribute(ctx context.Context, loc Locator, name string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if err := s.waitAttached(loc, s.timeout); err != nil {
		return "", false
	}
	return readProperty(s.first(loc), name, s.timeout)
}

// CurrentURL returns the URL of the page.
func (s *Session) CurrentURL() string {
	return s.Page.URL()
}

// FindAll returns all elements currently matching loc.
func (s *Session) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, err := s.Page.Locator(loc.Selector()).All()
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", loc, err)
	}

	elements := make([]Element, 0, len(matches))
	for _, m := range matches {
		elements = append(elements, &element{locator: m})
	}
	return elements, nil
}

// Close closes the page, context and browser, then stops the Playwright
// driver. Safe to call multiple times; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.Context != nil {
			if err := s.Context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if s.Browser != nil {
			if err := s.Browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop playwright: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Session) first(loc Locator) playwright.Locator {
	return s.Page.Locator(loc.Selector()).First()
}

func (s *Session) waitAttached(loc Locator, timeout time.Duration) error {
	err := s.first(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return nil
}

// element wraps a locator resolved by FindAll.
type element struct {
	locator playwright.Locator
}

func (e *element) Attribute(name string) (string, bool) {
	return readProperty(e.locator, name, elementAttributeTimeout)
}

func readProperty(l playwright.Locator, name string, timeout time.Duration) (string, bool) {
	result, err := l.Evaluate(readPropertyScript, name, playwright.LocatorEvaluateOptions{
		Timeout: playwright.Float(milliseconds(timeout)),
	})
	if err != nil || result == nil {
		return "", false
	}
	value, ok := result.(string)
	return value, ok
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
