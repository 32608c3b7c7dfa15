// Package workflow drives the location archival chore through a
// browser.Provider.
//
// A run has three stages, each gating the next:
//
//  1. EstablishSession logs in, unless the session is already authenticated,
//     and confirms success once the URL shows the admin area and the login
//     form is gone.
//  2. NavigateToListing opens the location list and asks it to show every row.
//  3. ArchiveEligibleLocations snapshots the row links, then visits each
//     location once and ticks its archive flag when present.
//
// The first two stages retry a bounded number of times and report a Result.
// The archival stage never retries; each location succeeds or fails on its
// own and the outcome lands in a Report.
//
// Stages report failures through their results rather than errors. A provider
// panic inside a login or listing attempt, or while one location is being
// processed, is recovered and recorded like any other failure; the runner
// recovers whatever else escapes.
package workflow
