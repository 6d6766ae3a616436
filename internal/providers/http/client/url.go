package client

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves ref against base. Protocol-relative refs take the
// base scheme, or https without a base.
func ResolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty url", ErrUnsupportedURL)
	}

	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}

	if base == "" {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref, nil
		}
		return "", fmt.Errorf("%w: relative url %q without base", ErrUnsupportedURL, ref)
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
