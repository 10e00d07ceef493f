package imgutil

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PNGChunk is one length-prefixed PNG chunk. CRC is carried through verbatim.
type PNGChunk struct {
	Type string
	Data []byte
	CRC  [4]byte
}

// ErrPNGSignature is returned when a stream does not start with the PNG magic.
var ErrPNGSignature = errors.New("invalid PNG signature")

// ReadPNGChunks calls fn for each chunk after the signature, stopping after
// IEND or at a clean end of stream.
func ReadPNGChunks(r io.Reader, fn func(PNGChunk) error) error {
	br := bufio.NewReader(r)

	sig := make([]byte, len(pngSig))
	if _, err := io.ReadFull(br, sig); err != nil {
		return err
	}
	if !hasPrefix(sig, pngSig) {
		return ErrPNGSignature
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		length := binary.BigEndian.Uint32(lenBuf)
		if length > 1<<31-1 {
			return fmt.Errorf("png chunk too large: %d", length)
		}

		typeBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, typeBuf); err != nil {
			return err
		}

		// Grow with the bytes actually present instead of trusting length.
		var data bytes.Buffer
		if _, err := io.CopyN(&data, br, int64(length)); err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		chunk := PNGChunk{Type: string(typeBuf), Data: data.Bytes()}
		if _, err := io.ReadFull(br, chunk.CRC[:]); err != nil {
			return err
		}

		if err := fn(chunk); err != nil {
			return err
		}
		if chunk.Type == "IEND" {
			return nil
		}
	}
}

// WritePNGSignature writes the 8 byte PNG magic.
func WritePNGSignature(w io.Writer) error {
	_, err := w.Write(pngSig)
	return err
}

// WritePNGChunk writes c back out in wire format.
func WritePNGChunk(w io.Writer, c PNGChunk) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(c.Data)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	if _, err := io.WriteString(w, c.Type); err != nil {
		return err
	}
	if _, err := w.Write(c.Data); err != nil {
		return err
	}
	_, err := w.Write(c.CRC[:])
	return err
}
