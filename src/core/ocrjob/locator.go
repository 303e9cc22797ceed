package ocrjob

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidLocator = errors.New("invalid content locator")

// ObjectPath turns a document's PDF link into the object key inside the
// configured bucket: the URL path without its leading slash. The host part
// of the URL is ignored.
func ObjectPath(locator string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidLocator, locator)
	}

	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: %q has no object path", ErrInvalidLocator, locator)
	}
	return path, nil
}
