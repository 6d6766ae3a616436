package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/resilience"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

var (
	// ErrNotScript reports a payload that is an HTML page or binary data
	ErrNotScript = errors.New("payload is not script text")
	// ErrTooLarge reports a payload above the configured limit
	ErrTooLarge = errors.New("payload too large")
	// ErrUnsupportedURL reports a URL that is not http(s)
	ErrUnsupportedURL = errors.New("unsupported resource url")
)

// StatusError is a non-2xx response
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Status, e.URL)
}

// FetchText downloads rawURL and returns its body decoded to UTF-8
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	rawURL, err := ResolveURL(c.baseURL, rawURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	req, err := c.Request(ctx, u.Host)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	resp, err := resilience.Do(c.Breakers.For(u.Host), func() (*resty.Response, error) {
		r, err := req.Get(rawURL)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return r, &StatusError{URL: rawURL, Status: r.StatusCode()}
		}
		return r, nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body := resp.Body()
	if len(body) > c.maxBytes {
		return "", fmt.Errorf("fetch %s: %w (%d bytes)", rawURL, ErrTooLarge, len(body))
	}

	text, err := DecodeText(body, resp.Header().Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return text, nil
}

// DecodeText sniffs body and converts it to UTF-8. The content type's
// charset parameter wins over detection.
func DecodeText(body []byte, contentType string) (string, error) {
	if len(body) == 0 {
		return "", nil
	}

	mtype := mimetype.Detect(body)
	if mtype.Is("text/html") || !isText(mtype) {
		return "", fmt.Errorf("%w: detected %s", ErrNotScript, mtype.String())
	}

	if utf8.Valid(body) && !hasCharset(contentType) {
		return strings.TrimPrefix(string(body), "\uFEFF"), nil
	}

	if !hasCharset(contentType) {
		contentType = "text/plain; charset=" + DetectCharset(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	return string(decoded), nil
}

// DetectCharset guesses the charset of body
func DetectCharset(body []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(body)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func hasCharset(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "charset=")
}
