package domain

import (
	"regexp"
	"strconv"
)

var referencePattern = regexp.MustCompile(`^([A-Z]+)-(\d{4})-(\d{3})$`)

// Parse decomposes a reference number. The format is strict: prefix
// letters, four month digits, dash, three sequence digits.
func Parse(value string) (Parsed, error) {
	match := referencePattern.FindStringSubmatch(value)
	if match == nil {
		return Parsed{}, ErrMalformedReference
	}

	sequence, err := strconv.Atoi(match[3])
	if err != nil {
		return Parsed{}, ErrMalformedReference
	}

	return Parsed{
		Prefix:   match[1],
		YYMM:     match[2],
		Sequence: sequence,
	}, nil
}
