package stylegen

import "strings"

// Credential is one opaque API secret. Backends rotate through their
// credentials in configuration order.
type Credential string

// Redacted returns a log-safe form that keeps only the last four characters.
func (c Credential) Redacted() string {
	s := string(c)
	if len(s) <= 4 {
		return "****"
	}
	return "..." + s[len(s)-4:]
}

// ParseCredentials flattens values (each possibly a comma-separated list)
// into an ordered credential list. Blank entries and repeats are dropped.
func ParseCredentials(values ...string) []Credential {
	var creds []Credential
	seen := make(map[string]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			creds = append(creds, Credential(part))
		}
	}
	return creds
}
