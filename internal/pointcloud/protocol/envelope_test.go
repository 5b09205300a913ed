package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponseTypesAreDistinct(t *testing.T) {
	require.NotEqual(t, ParseProgress, ParseResult)
	require.NotEqual(t, ParseResult, ParseError)
	require.NotEqual(t, ParseProgress, ParseError)
}
