package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zakyrmh/fundledger/ledger"
)

func TestSuggestTag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"gaji bulan maret", "Gaji Bulan Maret"},
		{"  bonus  ", "Bonus"},
		{"lunch 25000 at warung", "Lunch"}, // stops at the first non-letter
		{"12345", ""},
		{"", ""},
		{"GAJI", "Gaji"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ledger.SuggestTag(tc.in), "input %q", tc.in)
	}
}

func TestSuggestTag_CapsLength(t *testing.T) {
	long := "a very long description that keeps going and going beyond any reasonable tag"
	got := ledger.SuggestTag(long)
	assert.LessOrEqual(t, len(got), 40)
	assert.NotEmpty(t, got)
}
