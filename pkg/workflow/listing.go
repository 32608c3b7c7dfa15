package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/archiver/pkg/logging"
)

// NavigateToListing opens the location list and tries to show every row.
// Failing to change the page size is not fatal; the run continues with the
// default pagination.
func (w *Workflow) NavigateToListing(ctx context.Context) Result {
	log := w.logger.With(string(StageListing))
	maxAttempts := w.settings.Retry.ListingAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fatal(StageListing, attempt-1, err)
		}

		err := w.listingAttempt(ctx, log)
		if err == nil {
			log.Successf("Opened location list")
			return succeeded(StageListing, attempt)
		}

		lastErr = err
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			log.Warnf("Listing attempt %d/%d raised an unexpected error: %v", attempt, maxAttempts, err)
		} else {
			log.Warnf("Listing attempt %d/%d failed: %v", attempt, maxAttempts, err)
		}

		if attempt < maxAttempts {
			if err := pause(ctx, w.settings.Retry.ListingBackoff); err != nil {
				return fatal(StageListing, attempt, err)
			}
		}
	}

	log.Errorf("Failed to open the location list after %d attempts", maxAttempts)
	return exhausted(StageListing, maxAttempts, lastErr)
}

func (w *Workflow) listingAttempt(ctx context.Context, log *logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	target := w.settings.Target
	if err := w.provider.Navigate(ctx, target.ListingURL); err != nil {
		return fmt.Errorf("open location list: %w", err)
	}

	pageSize := target.Locators.PageSize
	if pageSize.IsZero() {
		return nil
	}
	if err := w.provider.SelectByText(ctx, pageSize, target.PageSizeLabel); err != nil {
		log.Warnf("Could not show %q rows, continuing with default pagination: %v", target.PageSizeLabel, err)
	} else {
		log.Verbosef("Page size set to %q", target.PageSizeLabel)
	}
	return nil
}
