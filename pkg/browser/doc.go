// Package browser provides the UI capability provider used by the archival
// workflow.
//
// The workflow never talks to a rendering engine directly. It depends on the
// narrow Provider interface, which exposes the handful of primitives needed to
// drive a web form: navigation, bounded element probes, text input,
// script-based clicks, attribute reads and link enumeration.
//
// # Implementations
//
// Session is the production implementation, backed by Playwright and a
// Chromium instance. The browsertest subpackage provides an in-memory fake for
// tests.
//
// # Failure semantics
//
// Every primitive waits up to its own timeout and reports "not there yet" as
// an error (or false for ElementExists). Primitives never panic on missing
// elements, so callers can treat each result as a plain success indicator.
//
// # Locators
//
// Elements are addressed with a Locator, written in configuration as
// "strategy=value":
//
//	id=loginButton
//	css=td > a
//	xpath=//div[@class='dataTables_length']//select
//
// A value without a recognised strategy prefix is treated as CSS.
//
// # Example Usage
//
//	session, err := browser.Launch(ctx, browser.Options{Headless: true})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	if err := session.Navigate(ctx, "https://example.com/admin"); err != nil {
//	    return err
//	}
//	if session.ElementExists(ctx, browser.ByID("loginButton"), 5*time.Second) {
//	    _ = session.InputText(ctx, browser.ByID("username"), user)
//	}
package browser
