package storage

import (
	"strings"
	"time"
)

// DownloadPathPrefix is the application route that serves stored objects.
const DownloadPathPrefix = "/files/download/"

// URLResolver builds the locators handed to clients. Objects are always served
// through the application, so the locator never depends on the backend.
type URLResolver struct{}

// Resolve returns DownloadPathPrefix + name. expiry is accepted for callers that
// ask for temporary URLs and has no effect.
func (URLResolver) Resolve(name string, expiry ...time.Duration) string {
	return DownloadPathPrefix + name
}

// NameFromURL recovers the object name from a locator issued by Resolve. It
// accepts absolute URLs and drops any query string or fragment.
func (URLResolver) NameFromURL(locator string) (string, bool) {
	locator, _, _ = strings.Cut(locator, "#")
	locator, _, _ = strings.Cut(locator, "?")

	i := strings.Index(locator, DownloadPathPrefix)
	if i < 0 {
		return "", false
	}

	name := locator[i+len(DownloadPathPrefix):]
	if name == "" {
		return "", false
	}
	return name, true
}
