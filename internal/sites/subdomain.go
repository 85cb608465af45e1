package sites

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// reservedSubdomains can never be claimed by a professional site.
var reservedSubdomains = map[string]bool{
	"www":       true,
	"app":       true,
	"api":       true,
	"admin":     true,
	"dashboard": true,
	"blog":      true,
	"mail":      true,
	"suporte":   true,
}

const maxSubdomainAttempts = 5

// Slugify turns a professional's full name into a subdomain candidate:
// diacritics stripped (João Souza -> joao-souza), lowercased, everything
// outside [a-z0-9] collapsed into single hyphens.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// GenerateSubdomain produces a unique subdomain from a full name, appending
// a random numeric suffix when the plain slug is taken or reserved.
func GenerateSubdomain(db *gorm.DB, fullName string) (string, error) {
	base := Slugify(fullName)
	if base == "" {
		base = "psicologo"
	}

	candidate := base
	for attempt := 0; attempt < maxSubdomainAttempts; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, rand.Intn(9000)+1000)
		}
		if reservedSubdomains[candidate] {
			continue
		}

		var count int64
		if err := db.Model(&Site{}).Where("subdomain = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check subdomain availability: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not find an available subdomain for %q", fullName)
}

// SubdomainFromHost extracts the subdomain label when host is under the
// configured base domain; returns "" otherwise.
func SubdomainFromHost(host, baseDomain string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}

	sub := strings.TrimSuffix(host, suffix)
	// Only single-label subdomains map to sites.
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
