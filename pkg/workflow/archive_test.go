package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/archiver/pkg/browser/browsertest"
)

// openListing positions the fake on the listing page, as NavigateToListing
// would have.
func openListing(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.fake.Navigate(context.Background(), testListingURL))
}

func statuses(report *Report) []ItemStatus {
	out := make([]ItemStatus, 0, len(report.Items))
	for _, item := range report.Items {
		out = append(out, item.Status)
	}
	return out
}

func TestArchiveEligibleLocations_SkipsIneligible(t *testing.T) {
	f := newFixture(t)
	first := f.addLocation(1, "Downtown", true)
	second := f.addLocation(2, "Uptown", false)
	third := f.addLocation(3, "Harbor", true)
	openListing(t, f)
	loc := f.settings.Target.Locators

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.NoError(t, report.Err)
	assert.True(t, report.Complete())
	assert.Equal(t, 3, report.Discovered)
	assert.Equal(t, []ItemStatus{StatusArchived, StatusNotArchivable, StatusArchived}, statuses(report))
	assert.Equal(t, []string{first, third}, f.fake.Clicks(loc.ArchiveFlag))
	assert.Equal(t, []string{first, third}, f.fake.Clicks(loc.Submit))
	assert.Equal(t, 2, report.Count(StatusArchived))
	assert.Equal(t, 1, report.Skipped())
	assert.Zero(t, report.Failed())

	assert.Equal(t, "Uptown", report.Items[1].Record.DisplayName)
	assert.Equal(t, second, report.Items[1].Record.URL)
	assert.False(t, report.Items[1].Record.Archivable)

	logs := f.logs.String()
	assert.Contains(t, logs, `Archived -> "Downtown"`)
	assert.Contains(t, logs, `"Uptown" is already archived or cannot be archived`)
}

func TestArchiveEligibleLocations_VisitsEachLocationOnce(t *testing.T) {
	f := newFixture(t)
	urls := []string{
		f.addLocation(1, "A", true),
		f.addLocation(2, "B", true),
		f.addLocation(3, "C", false),
		f.addLocation(4, "D", true),
	}
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.Len(t, report.Items, len(urls))
	for i, url := range urls {
		assert.Equal(t, 1, f.navigations(url), url)
		assert.Equal(t, url, report.Items[i].Record.URL)
	}
	assert.Equal(t, 1, f.fake.Count(browsertest.MethodFindAll))
}

func TestArchiveEligibleLocations_MissingNameField(t *testing.T) {
	f := newFixture(t)
	loc := f.settings.Target.Locators
	url := f.addLocation(1, "ignored", true)
	delete(f.fake.Pages[url].Elements, loc.NameField)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.Len(t, report.Items, 1)
	assert.Equal(t, StatusArchived, report.Items[0].Status)
	assert.Empty(t, report.Items[0].Record.DisplayName)
	for _, c := range f.fake.CallsTo(browsertest.MethodReadAttribute) {
		assert.NotEqual(t, loc.NameField, c.Locator)
	}
	assert.Contains(t, f.logs.String(), "<unnamed>")
}

func TestArchiveEligibleLocations_NavigationFailureContinues(t *testing.T) {
	f := newFixture(t)
	first := f.addLocation(1, "A", true)
	broken := f.addLocation(2, "B", true)
	third := f.addLocation(3, "C", true)
	f.fake.NavigationFailures[broken] = -1
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, []ItemStatus{StatusArchived, StatusNavigationFailed, StatusArchived}, statuses(report))
	assert.ErrorIs(t, report.Items[1].Err, browsertest.ErrNavigation)
	assert.Equal(t, []string{first, third}, f.fake.Clicks(f.settings.Target.Locators.Submit))
	assert.Equal(t, 1, report.Failed())
}

func TestArchiveEligibleLocations_PanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.addLocation(1, "A", true)
	exploding := f.addLocation(2, "B", true)
	third := f.addLocation(3, "C", true)
	f.fake.NavigationPanics[exploding] = true
	openListing(t, f)

	var report *Report
	require.NotPanics(t, func() {
		report = f.workflow(t).ArchiveEligibleLocations(context.Background())
	})

	assert.Equal(t, []ItemStatus{StatusArchived, StatusFailed, StatusArchived}, statuses(report))
	var panicErr *PanicError
	assert.True(t, errors.As(report.Items[1].Err, &panicErr))
	assert.Contains(t, f.fake.Clicks(f.settings.Target.Locators.Submit), third)
}

func TestArchiveEligibleLocations_ClickFailures(t *testing.T) {
	tests := []struct {
		name        string
		failFlag    bool
		failSubmit  bool
		wantSubmits int
	}{
		{name: "archive flag", failFlag: true, wantSubmits: 0},
		{name: "submit", failSubmit: true, wantSubmits: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			loc := f.settings.Target.Locators
			f.addLocation(1, "A", true)
			f.addLocation(2, "B", true)
			f.fake.ClickFailures[loc.ArchiveFlag] = tt.failFlag
			f.fake.ClickFailures[loc.Submit] = tt.failSubmit
			openListing(t, f)

			report := f.workflow(t).ArchiveEligibleLocations(context.Background())

			require.NoError(t, report.Err)
			assert.Equal(t, []ItemStatus{StatusFailed, StatusFailed}, statuses(report))
			assert.Len(t, f.fake.Clicks(loc.Submit), tt.wantSubmits)
			for _, item := range report.Items {
				assert.Error(t, item.Err)
			}
		})
	}
}

func TestArchiveEligibleLocations_DryRun(t *testing.T) {
	f := newFixture(t)
	f.settings.DryRun = true
	f.addLocation(1, "A", true)
	f.addLocation(2, "B", false)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.NoError(t, report.Err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []ItemStatus{StatusWouldArchive, StatusNotArchivable}, statuses(report))
	assert.Zero(t, f.fake.Count(browsertest.MethodClick))
	assert.Contains(t, f.logs.String(), `Would archive "A"`)
}

func TestArchiveEligibleLocations_Filters(t *testing.T) {
	f := newFixture(t)
	f.settings.Filters.Include = []string{"Test *", "Demo*"}
	f.settings.Filters.Exclude = []string{"* Keep"}
	first := f.addLocation(1, "Test Room", true)
	f.addLocation(2, "Test Room Keep", true)
	f.addLocation(3, "Main Campus", true)
	fourth := f.addLocation(4, "Demo", true)
	f.addLocation(5, "", true)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, []ItemStatus{
		StatusArchived,
		StatusFiltered,
		StatusFiltered,
		StatusArchived,
		StatusFiltered,
	}, statuses(report))
	assert.Equal(t, []string{first, fourth}, f.fake.Clicks(f.settings.Target.Locators.Submit))
}

func TestArchiveEligibleLocations_InvalidFilter(t *testing.T) {
	f := newFixture(t)
	f.settings.Filters.Exclude = []string{"[abc"}
	f.addLocation(1, "A", true)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	assert.Error(t, report.Err)
	assert.Empty(t, report.Items)
	assert.Zero(t, f.fake.Count(browsertest.MethodFindAll))
}

func TestArchiveEligibleLocations_EmptyListing(t *testing.T) {
	f := newFixture(t)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	require.NoError(t, report.Err)
	assert.Zero(t, report.Discovered)
	assert.Empty(t, report.Items)
	assert.True(t, report.Complete())
	assert.Contains(t, f.logs.String(), "No location rows appeared")
}

func TestArchiveEligibleLocations_RowLinks(t *testing.T) {
	f := newFixture(t)
	rows := f.settings.Target.Locators.RowLinks
	relative := f.addLocation(1, "A", true)
	absolute := "https://other.test/admin/ts-location.aspx?id=9"
	f.fake.AddPage(absolute, nil)
	f.listingPage.Elements[rows] = append(f.listingPage.Elements[rows],
		browsertest.Attrs{"href": absolute},
		browsertest.Attrs{"href": "  "},
		browsertest.Attrs{"class": "no-link"},
	)
	openListing(t, f)

	report := f.workflow(t).ArchiveEligibleLocations(context.Background())

	assert.Equal(t, 2, report.Discovered)
	require.Len(t, report.Items, 2)
	assert.Equal(t, relative, report.Items[0].Record.URL)
	assert.Equal(t, absolute, report.Items[1].Record.URL)
	assert.Equal(t, StatusNotArchivable, report.Items[1].Status)
	assert.Contains(t, f.logs.String(), "Row 3 has no link target")
}

func TestArchiveEligibleLocations_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addLocation(1, "A", true)
	openListing(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.workflow(t).ArchiveEligibleLocations(ctx)

	assert.ErrorIs(t, report.Err, context.Canceled)
	assert.Empty(t, report.Items)
	assert.False(t, report.Complete())
	assert.Zero(t, f.fake.Count(browsertest.MethodClick))
}

func TestWorkList_IsSnapshot(t *testing.T) {
	refs := []LocationReference{"a", "b"}
	list := NewWorkList(refs)
	refs[0] = "changed"

	assert.Equal(t, 2, list.Len())
	assert.Equal(t, LocationReference("a"), list.At(0))

	out := list.References()
	out[1] = "changed"
	assert.Equal(t, LocationReference("b"), list.At(1))
}
