package domain

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseOffsetToken(t *testing.T) {
	cases := []struct {
		token       string
		expectEmpty bool
		expectRows  uint64
		expectError bool
	}{
		{token: "", expectEmpty: true},
		{token: "0", expectRows: 0},
		{token: "42", expectRows: 42},
		{token: "18446744073709551615", expectRows: 18446744073709551615},
		{token: "abc", expectError: true},
		{token: "-1", expectError: true},
		{token: "3.5", expectError: true},
	}

	for _, c := range cases {
		offset, err := ParseOffsetToken(c.token)

		if c.expectError {
			if err == nil {
				t.Fatalf("expected error parsing %q, got none", c.token)
			}
			continue
		}

		if err != nil {
			t.Fatalf("unexpected error parsing %q: %s", c.token, err)
		}

		assert.Equal(t, offset.IsEmpty(), c.expectEmpty)
		if !c.expectEmpty {
			assert.Equal(t, offset.Rows(), c.expectRows)
		}
	}
}

func TestOffsetTokenRoundTrip(t *testing.T) {
	assert.Equal(t, EmptyOffset().String(), "")
	assert.Equal(t, OffsetFromRowCount(0).String(), "0")
	assert.Equal(t, OffsetFromRowCount(120).String(), "120")
}

func TestOffsetAdvance(t *testing.T) {
	offset := EmptyOffset()

	offset = offset.Advance(10)
	assert.Equal(t, offset.Rows(), uint64(10))
	assert.Equal(t, offset.IsEmpty(), false)

	offset = offset.Advance(25)
	assert.Equal(t, offset.Rows(), uint64(35))
	assert.Equal(t, offset.String(), "35")
}

func TestOffsetAfter(t *testing.T) {
	cases := []struct {
		name     string
		a        OffsetToken
		b        OffsetToken
		expected bool
	}{
		{"empty not after empty", EmptyOffset(), EmptyOffset(), false},
		{"empty not after zero", EmptyOffset(), OffsetFromRowCount(0), false},
		{"zero after empty", OffsetFromRowCount(0), EmptyOffset(), true},
		{"larger after smaller", OffsetFromRowCount(11), OffsetFromRowCount(10), true},
		{"equal not after", OffsetFromRowCount(10), OffsetFromRowCount(10), false},
		{"smaller not after larger", OffsetFromRowCount(9), OffsetFromRowCount(10), false},
	}

	for _, c := range cases {
		if got := c.a.After(c.b); got != c.expected {
			t.Fatalf("%s: got %t, expected %t", c.name, got, c.expected)
		}
	}
}
