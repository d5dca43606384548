package lookup

import "strings"

// ToSecretName converts a property name into a candidate secret identifier.
// Every rune outside 0-9, a-z, A-Z and '-' becomes '-'. The result has the
// same number of runes as name, and converting it again returns it unchanged.
func ToSecretName(name string) string {
	return strings.Map(func(r rune) rune {
		if IsSecretNameRune(r) {
			return r
		}
		return '-'
	}, name)
}

// IsSecretNameRune reports whether r is legal in a secret identifier.
func IsSecretNameRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r == '-':
		return true
	}
	return false
}
