package library

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a user-entered subscription URL so that
// equivalent spellings index to the same subscription: scheme defaults
// to https, host is lowercased, default ports and fragments are
// dropped, and a trailing slash on the path is removed. The query
// string is kept because some feed endpoints are query-addressed.
// Returns ok=false for input that cannot name a feed.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), true
}
