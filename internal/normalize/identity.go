package normalize

import (
	"encoding/hex"
	"net/url"
	"strings"

	"golang.org/x/crypto/sha3"
)

// compositePrefix marks identities built from record content.
const compositePrefix = "composite:"

// CompositeKey derives an identity from title, company and date. The
// parts are trimmed and lowercased, so cosmetic differences collapse.
func CompositeKey(title, company, date string) string {
	parts := []string{title, company, date}
	for i, p := range parts {
		parts[i] = strings.ToLower(CollapseSpace(p))
	}
	sum := sha3.Sum256([]byte(strings.Join(parts, "|")))
	return compositePrefix + hex.EncodeToString(sum[:16])
}

// IsComposite reports whether id was built by CompositeKey.
func IsComposite(id string) bool {
	return strings.HasPrefix(id, compositePrefix)
}

// CanonicalURL lowercases scheme and host and drops the query, the
// fragment and a trailing slash. Unparseable or relative input is
// returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = ""
	}
	return u.String()
}
