package scrub

import (
	"bufio"
	"io"

	"mdm/pkg/imgutil"
)

// stripPNG copies the PNG stream in r to w without its ancillary text, time,
// EXIF and colour-profile chunks.
func stripPNG(r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := imgutil.WritePNGSignature(bw); err != nil {
		return err
	}

	err := imgutil.ReadPNGChunks(r, func(c imgutil.PNGChunk) error {
		if shouldDropPNGChunk(c.Type) {
			return nil
		}
		return imgutil.WritePNGChunk(bw, c)
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func shouldDropPNGChunk(chunkName string) bool {
	switch chunkName {
	case "tEXt", "zTXt", "iTXt", "eXIf", "tIME", "iCCP":
		return true
	default:
		return false
	}
}
