package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{"0", "0.00", false},
		{"150", "150.00", false},
		{"12.34", "12.34", false},
		{"12,34", "12.34", false},
		{"12.345", "12.35", false},
		{"12.344", "12.34", false},
		{" 99999999.99 ", "99999999.99", false},
		{"100000000", "", true},
		{"-1", "", true},
		{"+1", "", true},
		{"", "", true},
		{"abc", "", true},
		{"1.2.3", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			m, err := ParseMoney(tc.in)
			if tc.err {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.String())
		})
	}
}
