package browserurl

import (
	"regexp"
	"strings"
)

// Some browsers show bare domains in the address bar without a protocol.
var bareDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][\w.-]+\.[a-zA-Z]{2,}(/.*)?$`)

// ValidateURL normalizes a raw address-bar or script result into an
// acceptable URL. Known schemes pass through, bare domains are promoted to
// https, anything else is rejected with an empty string.
func ValidateURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") ||
		strings.HasPrefix(trimmed, "https://") ||
		strings.HasPrefix(trimmed, "file://") {
		return trimmed
	}
	if bareDomainPattern.MatchString(trimmed) {
		return "https://" + trimmed
	}
	return ""
}

func lower(s string) string {
	return strings.ToLower(s)
}
