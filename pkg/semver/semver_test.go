package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnyCompatible(t *testing.T) {
	supported := []Semver{NewSemver(1, 0, 0), NewSemver(8, 0, 0)}

	assert.True(t, AnyCompatible(supported, NewSemver(8, 3, 1)))
	assert.True(t, AnyCompatible(supported, NewSemver(1, 0, 0)))
	assert.False(t, AnyCompatible(supported, NewSemver(9, 0, 0)))
	assert.False(t, AnyCompatible(nil, NewSemver(1, 0, 0)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "8.0.1", NewSemver(8, 0, 1).String())
}
