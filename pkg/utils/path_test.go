package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePathKey(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f", SanitizePathKey("a.b#c$d[e]f"))
	assert.Equal(t, "bob@example_com", SanitizePathKey("bob@example.com"))
	assert.Equal(t, "admin", SanitizePathKey("admin"))
	assert.Equal(t, "", SanitizePathKey(""))
}

func TestSanitizePathKeyIdempotent(t *testing.T) {
	inputs := []string{"a.b#c$d[e]f", "bob@example.com", "already_safe"}
	for _, in := range inputs {
		once := SanitizePathKey(in)
		assert.Equal(t, once, SanitizePathKey(once))
	}
}
