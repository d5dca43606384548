package lookup

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestToSecretName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "already_valid_dashed", input: "my-secret", expected: "my-secret"},
		{name: "already_valid_camel", input: "mySecret", expected: "mySecret"},
		{name: "already_valid_digits", input: "my123Secret", expected: "my123Secret"},
		{name: "dotted", input: "my.secret.name", expected: "my-secret-name"},
		{name: "dotted_short", input: "database.url", expected: "database-url"},
		{name: "underscore_and_dot", input: "my_secret.name", expected: "my-secret-name"},
		{name: "slash_and_at", input: "app/config@value", expected: "app-config-value"},
		{name: "punctuation_run", input: "special!@#$chars", expected: "special----chars"},
		{name: "spaces", input: "my secret name", expected: "my-secret-name"},
		{name: "spaces_long", input: "config with spaces", expected: "config-with-spaces"},
		{name: "framework_property", input: "quarkus.datasource.default.jdbc.url", expected: "quarkus-datasource-default-jdbc-url"},
		{name: "profile_property", input: "mp.config.profile.dev.enabled", expected: "mp-config-profile-dev-enabled"},
		{name: "non_ascii_letter", input: "pässword", expected: "p-ssword"},
		{name: "emoji", input: "key🔑name", expected: "key-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToSecretName(tt.input))
		})
	}
}

func TestToSecretNameProperties(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"a.b.c",
		"A_B/C D",
		"--already--dashed--",
		"tab\tnewline\n",
		"unicode-ümlaut-日本",
		"0123456789",
		"!@#$%^&*()",
	}

	for _, in := range inputs {
		once := ToSecretName(in)
		assert.Equal(t, once, ToSecretName(once), "remap must be idempotent for %q", in)
		assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(once), "remap must preserve length for %q", in)
		for _, r := range once {
			assert.True(t, IsSecretNameRune(r), "remap of %q produced illegal rune %q", in, r)
		}
	}
}

func TestIsSecretNameRune(t *testing.T) {
	for _, r := range "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-" {
		assert.True(t, IsSecretNameRune(r), "%q should be legal", r)
	}
	for _, r := range "._/ @#:+=\té" {
		assert.False(t, IsSecretNameRune(r), "%q should be illegal", r)
	}
}
