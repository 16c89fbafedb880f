package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDimension(t *testing.T) {
	for _, d := range Dimensions() {
		got, err := ParseDimension(string(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	got, err := ParseDimension("")
	require.NoError(t, err)
	assert.Equal(t, DimensionNone, got)
	assert.Equal(t, "none", got.String())

	for _, bad := range []string{"uname", "accounts.uname", "company;--", "COMPANY"} {
		_, err := ParseDimension(bad)
		assert.ErrorIs(t, err, ErrUnknownDimension, bad)
	}
}
