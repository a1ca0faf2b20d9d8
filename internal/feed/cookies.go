package feed

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register finders for major browsers
)

// CookiesFromBrowser loads the gateway's session cookies from a local browser
// profile ("chrome", "chromium", "edge", "brave", "opera", "firefox"),
// de-duplicated by domain, path and name. Session cookies are kept because
// gateway auth relies on them.
func CookiesFromBrowser(browser, baseURL string) ([]*http.Cookie, error) {
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("invalid baseURL host in %q", baseURL)
	}
	want := normalizeBrowser(browser)

	stores := kooky.FindAllCookieStores()
	defer func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}()

	var out []*http.Cookie
	seen := map[string]bool{}
	matched := 0
	for _, s := range stores {
		if normalizeBrowser(s.Browser()) != want {
			continue
		}
		matched++
		cc, _ := s.ReadCookies(kooky.DomainHasSuffix(host))
		out = appendHTTPCookies(out, seen, cc)
	}
	if matched == 0 {
		return nil, fmt.Errorf("no %s cookie stores found", want)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no cookies for %q found in %s", host, want)
	}
	return out, nil
}

func normalizeBrowser(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "google chrome", "chrome", "":
		return "chrome"
	case "microsoft edge", "edge":
		return "edge"
	default:
		return s
	}
}

func dedupeKey(c *http.Cookie) string {
	return strings.ToLower(c.Domain) + "\t" + c.Path + "\t" + c.Name
}

// appendHTTPCookies appends the http.Cookie of each kooky cookie not already in seen.
func appendHTTPCookies(out []*http.Cookie, seen map[string]bool, cc []*kooky.Cookie) []*http.Cookie {
	for _, kc := range cc {
		if kc == nil {
			continue
		}
		hc := kc.Cookie
		key := dedupeKey(&hc)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, &hc)
	}
	return out
}
