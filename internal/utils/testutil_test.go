package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTestMongoURI(t *testing.T) {
	first := GetTestMongoURI()
	assert.NotEmpty(t, first)
	// Resolved once, then memoized.
	assert.Equal(t, first, GetTestMongoURI())
}
