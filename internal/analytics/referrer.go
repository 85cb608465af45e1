package analytics

import (
	"net/url"
	"strings"
)

// SourceDirect is the label for direct (or unclassifiable) traffic.
const SourceDirect = "Direto"

// knownSources maps hostname substrings to display labels. Order matters:
// the first match wins, so e.g. "x.com" is only reached when nothing above
// it matched.
var knownSources = []struct {
	match string
	label string
}{
	{"google", "Google"},
	{"instagram", "Instagram"},
	{"facebook", "Facebook"},
	{"fb.", "Facebook"},
	{"linkedin", "LinkedIn"},
	{"twitter", "Twitter/X"},
	{"x.com", "Twitter/X"},
	{"youtube", "YouTube"},
	{"whatsapp", "WhatsApp"},
	{"tiktok", "TikTok"},
}

// ClassifyReferrer maps a raw HTTP referrer to a short traffic-source label.
// Empty or malformed input degrades to SourceDirect, never an error.
func ClassifyReferrer(referrer string) string {
	if referrer == "" {
		return SourceDirect
	}

	u, err := url.Parse(referrer)
	if err != nil {
		return SourceDirect
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return SourceDirect
	}

	for _, s := range knownSources {
		if strings.Contains(hostname, s.match) {
			return s.label
		}
	}

	// Fallback: first hostname label with "www." stripped, kept as-is. The
	// label shape is relied on by stored rows, so it is not title-cased.
	hostname = strings.TrimPrefix(hostname, "www.")
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		hostname = hostname[:i]
	}
	if hostname == "" {
		return SourceDirect
	}
	return hostname
}
