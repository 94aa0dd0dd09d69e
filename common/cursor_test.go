package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	require := require.New(t)

	c, err := ParseColor("#ff8000")
	require.Nil(err)
	require.Equal(Color{R: 255, G: 128, B: 0, A: 255}, c)

	c, err = ParseColor("10203040")
	require.Nil(err)
	require.Equal(Color{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, c)
	require.Equal("#10203040", c.String())

	_, err = ParseColor("#fff")
	require.NotNil(err)
	_, err = ParseColor("#zzzzzz")
	require.NotNil(err)

	require.Equal("(1,2,7)", Position{X: 1, Y: 2, Z: 7}.String())
}
