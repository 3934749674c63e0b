// Package urlutil resolves, canonicalises, and filters candidate crawl URLs.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Parse validates a raw absolute URL and strips any fragment. It rejects
// input lacking a scheme or host.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q missing scheme or host", raw)
	}
	u.Fragment = ""
	return u, nil
}

// Normalize resolves raw against base, trimming surrounding whitespace and
// removing any fragment. It returns nil when the resolved URL lacks a scheme
// or host (mailto:, javascript:, malformed input). An empty raw link
// normalizes to base itself, minus fragment.
func Normalize(base *url.URL, raw string) *url.URL {
	if base == nil {
		return nil
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme == "" || resolved.Host == "" {
		return nil
	}
	resolved.Fragment = ""
	return resolved
}

// Domain returns the host[:port] component of u, lowercased.
func Domain(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// Extension returns the lowercased final dot-segment of the URL path, or ""
// when the path carries none. Only the last segment counts (".tar.gz" yields
// ".gz") and a dotfile such as "/.config" is not an extension.
func Extension(u *url.URL) string {
	if u == nil {
		return ""
	}
	segment := u.Path
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	dot := strings.LastIndex(segment, ".")
	if dot <= 0 || dot == len(segment)-1 {
		return ""
	}
	return strings.ToLower(segment[dot:])
}

// InScope reports whether u passes the scheme, allowed-domain, and
// blacklisted-extension checks. An empty restriction set imposes no
// constraint; the three checks combine independently.
func InScope(u *url.URL, allowedDomains, blacklistExtensions map[string]struct{}) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if len(allowedDomains) > 0 {
		if _, ok := allowedDomains[Domain(u)]; !ok {
			return false
		}
	}
	if len(blacklistExtensions) > 0 {
		if ext := Extension(u); ext != "" {
			if _, ok := blacklistExtensions[ext]; ok {
				return false
			}
		}
	}
	return true
}

// DomainSet converts a list of domains into a lowercased membership set.
func DomainSet(domains []string) map[string]struct{} {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		set[d] = struct{}{}
	}
	return set
}

// ExtensionSet converts a list of extensions into a lowercased membership set.
func ExtensionSet(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		set[ext] = struct{}{}
	}
	return set
}
