// Package browsertest provides an in-memory browser.Provider for exercising
// workflow logic without a rendering engine.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/archiver/pkg/browser"
)

// Method names recorded in the call journal.
const (
	MethodNavigate      = "Navigate"
	MethodElementExists = "ElementExists"
	MethodInputText     = "InputText"
	MethodClick         = "ClickViaScript"
	MethodSelect        = "SelectByText"
	MethodReadAttribute = "ReadAttribute"
	MethodCurrentURL    = "CurrentURL"
	MethodFindAll       = "FindAll"
	MethodClose         = "Close"
)

// ErrNavigation is returned for URLs configured to fail.
var ErrNavigation = errors.New("navigation failed")

// Attrs holds the attributes of one fake element.
type Attrs map[string]string

// Page describes what the fake renders at a URL.
type Page struct {
	// Elements maps a locator to every element it matches, in DOM order.
	Elements map[browser.Locator][]Attrs

	// RedirectTo, when set, becomes the current URL after navigating here.
	RedirectTo string

	// ClickTargets maps a locator to the URL loaded after clicking it.
	ClickTargets map[browser.Locator]string

	// ClickElements maps a locator to the elements the page renders after it
	// is clicked, while the URL stays put, as a form posting back to itself.
	ClickElements map[browser.Locator]map[browser.Locator][]Attrs
}

// Call is one recorded provider invocation.
type Call struct {
	Method  string
	URL     string
	Locator browser.Locator
	Arg     string
}

// Fake is a scripted browser.Provider. The zero value is not usable; create
// one with New.
type Fake struct {
	mu sync.Mutex

	// Pages maps URLs to their rendered content
	Pages map[string]*Page

	// NavigationFailures maps a URL to how many more times navigating to it
	// fails. A negative count fails forever.
	NavigationFailures map[string]int

	// NavigationPanics lists URLs whose navigation panics.
	NavigationPanics map[string]bool

	// ClickFailures lists locators whose clicks fail on every page.
	ClickFailures map[browser.Locator]bool

	// InputFailures lists locators whose input fails on every page.
	InputFailures map[browser.Locator]bool

	// SelectFailures lists locators whose selection fails on every page.
	SelectFailures map[browser.Locator]bool

	// CloseErr is returned from Close.
	CloseErr error

	current string
	calls   []Call
	inputs  map[browser.Locator]string
}

var _ browser.Provider = (*Fake)(nil)

// New returns an empty fake positioned at about:blank.
func New() *Fake {
	return &Fake{
		Pages:              make(map[string]*Page),
		NavigationFailures: make(map[string]int),
		NavigationPanics:   make(map[string]bool),
		ClickFailures:      make(map[browser.Locator]bool),
		InputFailures:      make(map[browser.Locator]bool),
		SelectFailures:     make(map[browser.Locator]bool),
		current:            "about:blank",
		inputs:             make(map[browser.Locator]string),
	}
}

// AddPage registers a page and returns it for further setup.
func (f *Fake) AddPage(url string, elements map[browser.Locator][]Attrs) *Page {
	f.mu.Lock()
	defer f.mu.Unlock()

	if elements == nil {
		elements = make(map[browser.Locator][]Attrs)
	}
	page := &Page{
		Elements:      elements,
		ClickTargets:  make(map[browser.Locator]string),
		ClickElements: make(map[browser.Locator]map[browser.Locator][]Attrs),
	}
	f.Pages[url] = page
	return page
}

// Navigate implements browser.Provider.
func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodNavigate, URL: url})
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.NavigationPanics[url] {
		panic(fmt.Sprintf("browsertest: navigation to %s panicked", url))
	}
	if remaining, ok := f.NavigationFailures[url]; ok && remaining != 0 {
		if remaining > 0 {
			f.NavigationFailures[url] = remaining - 1
		}
		return fmt.Errorf("%w: %s", ErrNavigation, url)
	}

	page, ok := f.Pages[url]
	if !ok {
		return fmt.Errorf("%w: no page at %s", ErrNavigation, url)
	}
	f.current = url
	if page.RedirectTo != "" {
		f.current = page.RedirectTo
	}
	return nil
}

// ElementExists implements browser.Provider. The timeout is ignored.
func (f *Fake) ElementExists(ctx context.Context, loc browser.Locator, timeout time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodElementExists, Locator: loc})
	return ctx.Err() == nil && len(f.matches(loc)) > 0
}

// InputText implements browser.Provider.
func (f *Fake) InputText(ctx context.Context, loc browser.Locator, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodInputText, Locator: loc, Arg: text})
	if err := f.check(ctx, loc, f.InputFailures); err != nil {
		return err
	}
	f.inputs[loc] = text
	return nil
}

// ClickViaScript implements browser.Provider.
func (f *Fake) ClickViaScript(ctx context.Context, loc browser.Locator) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodClick, Locator: loc})
	if err := f.check(ctx, loc, f.ClickFailures); err != nil {
		return err
	}
	if page := f.Pages[f.current]; page != nil {
		if elements, ok := page.ClickElements[loc]; ok {
			page.Elements = elements
		}
		if target, ok := page.ClickTargets[loc]; ok {
			f.current = target
		}
	}
	return nil
}

// SelectByText implements browser.Provider.
func (f *Fake) SelectByText(ctx context.Context, loc browser.Locator, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodSelect, Locator: loc, Arg: label})
	return f.check(ctx, loc, f.SelectFailures)
}

// ReadAttribute implements browser.Provider.
func (f *Fake) ReadAttribute(ctx context.Context, loc browser.Locator, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodReadAttribute, Locator: loc, Arg: name})
	if ctx.Err() != nil {
		return "", false
	}
	matches := f.matches(loc)
	if len(matches) == 0 {
		return "", false
	}
	value, ok := matches[0][name]
	return value, ok
}

// CurrentURL implements browser.Provider.
func (f *Fake) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodCurrentURL})
	return f.current
}

// FindAll implements browser.Provider.
func (f *Fake) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodFindAll, Locator: loc})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := f.matches(loc)
	elements := make([]browser.Element, 0, len(matches))
	for _, attrs := range matches {
		elements = append(elements, element(attrs))
	}
	return elements, nil
}

// Close implements browser.Provider.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record(Call{Method: MethodClose})
	return f.CloseErr
}

// Calls returns a copy of the call journal.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	return len(f.CallsTo(method))
}

// CallsTo returns the recorded calls of method, in order.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Clicks returns the URLs on which loc was clicked, in order.
func (f *Fake) Clicks(loc browser.Locator) []string {
	var urls []string
	for _, c := range f.CallsTo(MethodClick) {
		if c.Locator == loc {
			urls = append(urls, c.URL)
		}
	}
	return urls
}

// Input returns the last text entered into loc.
func (f *Fake) Input(loc browser.Locator) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text, ok := f.inputs[loc]
	return text, ok
}

// SetCurrentURL moves the fake to url without recording a call.
func (f *Fake) SetCurrentURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
}

// record stamps the call with the current URL. Callers hold f.mu.
func (f *Fake) record(c Call) {
	if c.URL == "" {
		c.URL = f.current
	}
	f.calls = append(f.calls, c)
}

func (f *Fake) matches(loc browser.Locator) []Attrs {
	page := f.Pages[f.current]
	if page == nil {
		return nil
	}
	return page.Elements[loc]
}

func (f *Fake) check(ctx context.Context, loc browser.Locator, failures map[browser.Locator]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.matches(loc)) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, loc)
	}
	if failures[loc] {
		return fmt.Errorf("browsertest: %s failed on %s", loc, f.current)
	}
	return nil
}

type element Attrs

func (e element) Attribute(name string) (string, bool) {
	value, ok := e[name]
	return value, ok
}
