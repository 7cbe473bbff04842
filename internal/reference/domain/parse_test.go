package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	parsed, err := Parse("BBB-2406-017")
	assert.NoError(t, err)
	assert.Equal(t, "BBB", parsed.Prefix)
	assert.Equal(t, "2406", parsed.YYMM)
	assert.Equal(t, 17, parsed.Sequence)
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"BBB-2406",
		"BBB-2406-1",
		"BBB-2406-0001",
		"bbb-2406-001",
		"BBB-240-001",
		"BBB-2406-001-extra",
		"BBB_2406_001",
	}
	for _, value := range cases {
		_, err := Parse(value)
		assert.ErrorIs(t, err, ErrMalformedReference, value)
	}
}
