package imgutil

import (
	"bytes"
	"encoding/binary"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkHeader(length uint32, chunkType string) []byte {
	out := make([]byte, 4, 8)
	binary.BigEndian.PutUint32(out, length)
	return append(out, chunkType...)
}

func TestReadPNGChunksCopiesThrough(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	require.NoError(t, WritePNGSignature(&src))
	require.NoError(t, WritePNGChunk(&src, PNGChunk{Type: "gAMA", Data: []byte{0, 0, 0xb1, 0x8f}, CRC: [4]byte{1, 2, 3, 4}}))
	require.NoError(t, WritePNGChunk(&src, PNGChunk{Type: "IEND", CRC: [4]byte{0xae, 0x42, 0x60, 0x82}}))
	src.WriteString("trailing bytes are ignored")

	var types []string
	var out bytes.Buffer
	require.NoError(t, WritePNGSignature(&out))
	err := ReadPNGChunks(bytes.NewReader(src.Bytes()), func(c PNGChunk) error {
		types = append(types, c.Type)
		return WritePNGChunk(&out, c)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"gAMA", "IEND"}, types)
	require.True(t, bytes.HasPrefix(src.Bytes(), out.Bytes()))
}

// Not parallel so TotalAlloc only reflects this read.
func TestReadPNGChunksHugeLengthOnShortStream(t *testing.T) {
	var src bytes.Buffer
	require.NoError(t, WritePNGSignature(&src))
	src.Write(chunkHeader(1<<31-1, "tEXt"))
	src.WriteString("tiny")

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	err := ReadPNGChunks(bytes.NewReader(src.Bytes()), func(PNGChunk) error { return nil })
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestReadPNGChunksRejectsOversizedLength(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	require.NoError(t, WritePNGSignature(&src))
	src.Write(chunkHeader(1<<31, "IDAT"))

	err := ReadPNGChunks(bytes.NewReader(src.Bytes()), func(PNGChunk) error { return nil })
	require.ErrorContains(t, err, "too large")
}

func TestReadPNGChunksBadSignature(t *testing.T) {
	t.Parallel()

	err := ReadPNGChunks(bytes.NewReader([]byte("GIF89a..")), func(PNGChunk) error { return nil })
	require.ErrorIs(t, err, ErrPNGSignature)
}
