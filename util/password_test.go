package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrambleRoundTrip(t *testing.T) {
	seed := RandomBytes(20)
	for _, password := range []string{"secret", "a", "correct horse battery staple"} {
		token := Scramble411([]byte(password), seed)
		stored := DoubleSHA1([]byte(password))
		assert.True(t, CheckScramble(token, seed, stored), "password %q should verify", password)
		assert.False(t, CheckScramble(token, seed, DoubleSHA1([]byte("other"))))
		assert.False(t, CheckScramble(Scramble411([]byte("other"), seed), seed, stored))
	}
}

func TestScrambleEmptyPassword(t *testing.T) {
	seed := RandomBytes(20)
	assert.Nil(t, Scramble411(nil, seed))
	assert.True(t, CheckScramble(nil, seed, nil))
	assert.False(t, CheckScramble(nil, seed, DoubleSHA1([]byte("x"))))
	assert.False(t, CheckScramble(Scramble411([]byte("x"), seed), seed, nil))
}

func TestRandomBytesNoZero(t *testing.T) {
	seed := RandomBytes(20)
	assert.Equal(t, 20, len(seed))
	for i, b := range seed {
		assert.NotZero(t, b, "seed byte %d", i)
	}
}
