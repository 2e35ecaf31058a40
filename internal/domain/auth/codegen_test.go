package auth

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	firstDigits := make(map[byte]bool)
	for i := 0; i < 500; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, VerificationCodeLength)
		_, err = strconv.Atoi(code)
		require.NoError(t, err)
		seen[code] = true
		firstDigits[code[0]] = true
	}
	assert.Greater(t, len(seen), 490)
	assert.True(t, firstDigits['0'], "leading zeros must be possible")
}

func TestHashCode_BoundToEmail(t *testing.T) {
	assert.Equal(t, hashCode("a@test.banana", "123456"), hashCode("a@test.banana", "123456"))
	assert.NotEqual(t, hashCode("a@test.banana", "123456"), hashCode("b@test.banana", "123456"))
	assert.Len(t, hashCode("a@test.banana", "123456"), 64)
}
