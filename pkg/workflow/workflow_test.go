package workflow

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/archiver/pkg/browser"
	"github.com/entrhq/archiver/pkg/browser/browsertest"
	"github.com/entrhq/archiver/pkg/config"
	"github.com/entrhq/archiver/pkg/logging"
)

const (
	testAdminURL   = "https://enrollware.test/admin"
	testLoginURL   = "https://enrollware.test/login.aspx"
	testHomeURL    = "https://enrollware.test/admin/home.aspx"
	testListingURL = "https://enrollware.test/admin/ts-location-list.aspx"
)

var testCreds = config.Credentials{Username: "operator", Password: "hunter2"}

// fixture is a scripted Enrollware: the admin URL redirects to a login form
// whose button lands on the admin home page.
type fixture struct {
	fake     *browsertest.Fake
	settings *config.Settings
	logs     *bytes.Buffer

	loginPage   *browsertest.Page
	listingPage *browsertest.Page
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	settings := config.DefaultSettings()
	settings.Target.AdminURL = testAdminURL
	settings.Target.ListingURL = testListingURL
	settings.Retry.LoginBackoff = 0
	settings.Retry.ListingBackoff = 0
	settings.Timing = config.TimingConfig{}
	require.NoError(t, settings.Validate())

	loc := settings.Target.Locators
	fake := browsertest.New()

	fake.AddPage(testAdminURL, nil).RedirectTo = testLoginURL
	loginPage := fake.AddPage(testLoginURL, map[browser.Locator][]browsertest.Attrs{
		loc.LoginButton: {{"type": "submit"}},
		loc.Username:    {{"type": "text"}},
		loc.Password:    {{"type": "password"}},
		loc.RememberMe:  {{"type": "checkbox"}},
	})
	loginPage.ClickTargets[loc.LoginButton] = testHomeURL
	fake.AddPage(testHomeURL, nil)

	listingPage := fake.AddPage(testListingURL, map[browser.Locator][]browsertest.Attrs{
		loc.PageSize: {{"value": "10"}},
	})

	return &fixture{
		fake:        fake,
		settings:    settings,
		logs:        &bytes.Buffer{},
		loginPage:   loginPage,
		listingPage: listingPage,
	}
}

func (f *fixture) workflow(t *testing.T) *Workflow {
	t.Helper()

	logger, err := logging.New(logging.Options{
		Level:   logging.LevelDebug,
		Console: f.logs,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	return New(f.fake, f.settings, logger)
}

// alreadyAuthenticated makes the admin URL render without a login form.
func (f *fixture) alreadyAuthenticated() {
	f.fake.Pages[testAdminURL].RedirectTo = ""
}

// loginAtAdminURL renders the login form at the admin URL itself, with a
// button that posts back without changing the URL.
func (f *fixture) loginAtAdminURL() *browsertest.Page {
	admin := f.fake.Pages[testAdminURL]
	admin.RedirectTo = ""
	admin.Elements = make(map[browser.Locator][]browsertest.Attrs, len(f.loginPage.Elements))
	for loc, attrs := range f.loginPage.Elements {
		admin.Elements[loc] = attrs
	}
	return admin
}

// addLocation adds a row to the listing and a detail page behind it, and
// returns the detail page's absolute URL.
func (f *fixture) addLocation(id int, name string, archivable bool) string {
	loc := f.settings.Target.Locators
	href := fmt.Sprintf("ts-location.aspx?id=%d", id)
	detailURL := "https://enrollware.test/admin/" + href

	f.listingPage.Elements[loc.RowLinks] = append(f.listingPage.Elements[loc.RowLinks], browsertest.Attrs{"href": href})

	elements := map[browser.Locator][]browsertest.Attrs{
		loc.NameField: {{"value": name}},
		loc.Submit:    {{"type": "submit"}},
	}
	if archivable {
		elements[loc.ArchiveFlag] = []browsertest.Attrs{{"type": "checkbox"}}
	}
	f.fake.AddPage(detailURL, elements)
	return detailURL
}

// navigations counts how many times url was requested.
func (f *fixture) navigations(url string) int {
	n := 0
	for _, c := range f.fake.CallsTo(browsertest.MethodNavigate) {
		if c.URL == url {
			n++
		}
	}
	return n
}
