package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/archiver/pkg/browser"
	"github.com/entrhq/archiver/pkg/config"
	"github.com/entrhq/archiver/pkg/logging"
)

var errNotAuthenticated = errors.New("session not authenticated")

// Workflow runs the archival stages against one provider. It is not safe for
// concurrent use; the provider is driven strictly sequentially.
type Workflow struct {
	provider browser.Provider
	settings *config.Settings
	logger   *logging.Logger
}

// New creates a workflow. settings must already be validated.
func New(provider browser.Provider, settings *config.Settings, logger *logging.Logger) *Workflow {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Workflow{
		provider: provider,
		settings: settings,
		logger:   logger,
	}
}

// EstablishSession logs in (when a login form is shown), confirms the session
// once the URL shows the admin marker and the login form is gone, and then
// delegates to NavigateToListing. When login
// succeeds, the returned Outcome is the navigator's.
func (w *Workflow) EstablishSession(ctx context.Context, creds config.Credentials) Result {
	log := w.logger.With(string(StageSession))

	if err := creds.Validate(); err != nil {
		log.Errorf("Cannot log in: %v", err)
		return fatal(StageSession, 0, err)
	}

	maxAttempts := w.settings.Retry.LoginAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fatal(StageSession, attempt-1, err)
		}

		err := w.loginAttempt(ctx, log, creds)
		if err == nil {
			log.Successf("Session established (attempt %d/%d)", attempt, maxAttempts)
			listing := w.NavigateToListing(ctx)
			return Result{
				Stage:    StageSession,
				Outcome:  listing.Outcome,
				Attempts: attempt,
				Err:      listing.Err,
				Listing:  &listing,
			}
		}

		lastErr = err
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			log.Warnf("Login attempt %d/%d raised an unexpected error: %v", attempt, maxAttempts, err)
		} else {
			log.Warnf("Login attempt %d/%d failed: %v", attempt, maxAttempts, err)
		}

		if attempt < maxAttempts {
			if err := pause(ctx, w.settings.Retry.LoginBackoff); err != nil {
				return fatal(StageSession, attempt, err)
			}
		}
	}

	log.Errorf("Failed to log in after %d attempts", maxAttempts)
	return exhausted(StageSession, maxAttempts, lastErr)
}

// loginAttempt performs one pass of the login form. It never panics.
func (w *Workflow) loginAttempt(ctx context.Context, log *logging.Logger, creds config.Credentials) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	target := w.settings.Target
	locators := target.Locators
	timing := w.settings.Timing

	if err := w.provider.Navigate(ctx, target.AdminURL); err != nil {
		return fmt.Errorf("open admin page: %w", err)
	}

	if w.provider.ElementExists(ctx, locators.LoginButton, timing.ProbeTimeout) {
		log.Verbosef("Login form present, submitting credentials")

		if err := w.provider.InputText(ctx, locators.Username, creds.Username); err != nil {
			return fmt.Errorf("input username: %w", err)
		}
		if err := w.provider.InputText(ctx, locators.Password, creds.Password); err != nil {
			return fmt.Errorf("input password: %w", err)
		}

		if !locators.RememberMe.IsZero() {
			if !w.provider.ElementExists(ctx, locators.RememberMe, timing.ProbeTimeout) {
				log.Debugf("Remember-me control not found")
			} else if err := w.provider.ClickViaScript(ctx, locators.RememberMe); err != nil {
				log.Debugf("Remember-me not ticked: %v", err)
			}
		}

		if err := w.provider.ClickViaScript(ctx, locators.LoginButton); err != nil {
			return fmt.Errorf("click login button: %w", err)
		}
	} else {
		log.Infof("Login form not shown, session already authenticated")
	}

	// The login form posts back to an admin URL, so the URL alone proves
	// nothing until the form is gone. Neither event is observable directly;
	// poll both until the settle interval runs out.
	authenticated := pollUntil(ctx, timing.LoginSettle, timing.PollInterval, func() bool {
		return w.atAdmin() && !w.loginFormShown(ctx)
	})
	if !authenticated {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.atAdmin() {
			return fmt.Errorf("%w: login form still shown at %s", errNotAuthenticated, w.provider.CurrentURL())
		}
		return fmt.Errorf("%w: %s", errNotAuthenticated, w.provider.CurrentURL())
	}
	return nil
}

// loginFormShown checks for the login button without waiting.
func (w *Workflow) loginFormShown(ctx context.Context) bool {
	return w.provider.ElementExists(ctx, w.settings.Target.Locators.LoginButton, 0)
}

func (w *Workflow) atAdmin() bool {
	current := strings.ToLower(w.provider.CurrentURL())
	return strings.Contains(current, strings.ToLower(w.settings.Target.AdminMarker))
}
