package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleChunk(id string) Chunk {
	return Chunk{
		NodeID:          id,
		Center:          [3]float64{1, 2, 3},
		Level:           2,
		Spacing:         0.5,
		Positions:       []float32{0, 0, 0, 1, 1, 1},
		Colors:          []uint8{255, 0, 0, 0, 255, 0},
		Intensities:     []uint16{100, 200},
		Classifications: []uint8{1, 2},
	}
}

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	want := sampleChunk("node-0-0-0")
	data := EncodeChunks([]Chunk{want})
	got, err := DecodeChunks(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, want.NodeID, got[0].NodeID)
	require.Equal(t, want.Center, got[0].Center)
	require.Equal(t, want.Level, got[0].Level)
	require.InDelta(t, want.Spacing, got[0].Spacing, 1e-6)
	require.Equal(t, want.Positions, got[0].Positions)
	require.Equal(t, want.Colors, got[0].Colors)
	require.Equal(t, want.Intensities, got[0].Intensities)
	require.Equal(t, want.Classifications, got[0].Classifications)
}

func TestEncodeDecodeMultipleChunks(t *testing.T) {
	a := sampleChunk("a")
	b := sampleChunk("bb")
	data := EncodeChunks([]Chunk{a, b})
	got, err := DecodeChunks(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].NodeID)
	require.Equal(t, "bb", got[1].NodeID)
}

func TestDecodeChunksEmptyCount(t *testing.T) {
	data := EncodeChunks(nil)
	got, err := DecodeChunks(data)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecodeChunksTruncatedFails(t *testing.T) {
	data := EncodeChunks([]Chunk{sampleChunk("x")})
	_, err := DecodeChunks(data[:len(data)-4])
	require.Error(t, err)
}

func TestDecodeChunksTooShortForHeaderFails(t *testing.T) {
	_, err := DecodeChunks([]byte{1, 2})
	require.Error(t, err)
}

func TestPad4Alignment(t *testing.T) {
	require.Equal(t, 4, pad4(1))
	require.Equal(t, 4, pad4(4))
	require.Equal(t, 8, pad4(5))
}
