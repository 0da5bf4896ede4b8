package tenantx

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ReservedSubdomains may never be claimed by a tenant.
var ReservedSubdomains = map[string]bool{
	"www":       true,
	"demo":      true,
	"api":       true,
	"admin":     true,
	"mail":      true,
	"ftp":       true,
	"localhost": true,
	"marketing": true,
}

// Danish letters do not decompose under NFD, so they need an explicit table.
// ß is included for German club names.
var translitTable = map[rune]string{
	'æ': "ae", 'Æ': "ae",
	'ø': "oe", 'Ø': "oe",
	'å': "aa", 'Å': "aa",
	'ß': "ss",
	'đ': "d", 'Đ': "d",
	'ł': "l", 'Ł': "l",
}

var (
	subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	hyphenRuns       = regexp.MustCompile(`-{2,}`)
)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NameToSubdomain derives a DNS-safe subdomain from a club name. Letters are
// lowercased, Danish and accented characters are transliterated to ASCII,
// anything else becomes a hyphen, and hyphen runs collapse.
func NameToSubdomain(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		if repl, ok := translitTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}

	folded, _, err := transform.String(accentStripper, b.String())
	if err != nil {
		folded = b.String()
	}

	var out strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out.WriteRune(r)
		default:
			out.WriteRune('-')
		}
	}

	s := hyphenRuns.ReplaceAllString(out.String(), "-")
	return strings.Trim(s, "-")
}

// ValidateSubdomain checks a candidate subdomain against DNS label rules and
// the reserved list. Returns nil when the subdomain is acceptable.
func ValidateSubdomain(subdomain string) error {
	if len(subdomain) < 3 || len(subdomain) > 63 {
		return ErrInvalidSubdomain("subdomain must be between 3 and 63 characters")
	}
	if !subdomainPattern.MatchString(subdomain) {
		return ErrInvalidSubdomain("subdomain may only contain lowercase letters, digits and hyphens, and may not start or end with a hyphen")
	}
	if ReservedSubdomains[subdomain] {
		return ErrInvalidSubdomain("subdomain is reserved")
	}
	return nil
}
