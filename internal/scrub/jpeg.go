package scrub

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegXmpHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	jpegPhotoshop  = []byte("Photoshop 3.0\x00")
	jpegICCHeader  = []byte("ICC_PROFILE\x00")
)

// emptyExif is an APP1 payload holding a big-endian TIFF header whose IFD0
// has zero entries and no successor.
var emptyExif = []byte("Exif\x00\x00" +
	"MM\x00\x2a\x00\x00\x00\x08" +
	"\x00\x00" +
	"\x00\x00\x00\x00")

// writeJPEGWithEmptyExif copies the JPEG in r to w, inserting an empty EXIF
// segment right after SOI and dropping any EXIF, XMP, Photoshop or ICC segment
// the encoder may have produced.
func writeJPEGWithEmptyExif(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return fmt.Errorf("invalid JPEG SOI")
	}
	if _, err := bw.Write(soi); err != nil {
		return err
	}
	if err := writeSegment(bw, 0xe1, emptyExif); err != nil {
		return err
	}

	for {
		markerPrefix, err := br.ReadByte()
		if err != nil {
			return err
		}
		for markerPrefix != 0xff {
			markerPrefix, err = br.ReadByte()
			if err != nil {
				return err
			}
		}

		marker, err := br.ReadByte()
		if err != nil {
			return err
		}
		for marker == 0xff {
			marker, err = br.ReadByte()
			if err != nil {
				return err
			}
		}

		if marker == 0xd9 { // EOI
			if _, err := bw.Write([]byte{0xff, 0xd9}); err != nil {
				return err
			}
			break
		}

		if marker == 0xda { // SOS: entropy-coded data runs to EOI
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			if _, err := io.Copy(bw, br); err != nil {
				return err
			}
			break
		}

		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return fmt.Errorf("invalid JPEG segment length")
		}
		payload := make([]byte, segLen-2)
		if _, err := io.ReadFull(br, payload); err != nil {
			return err
		}

		if isMetadataSegment(marker, payload) {
			continue
		}
		if err := writeSegment(bw, marker, payload); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeSegment(w io.Writer, marker byte, payload []byte) error {
	head := []byte{0xff, marker, 0, 0}
	binary.BigEndian.PutUint16(head[2:], uint16(len(payload)+2))
	if _, err := w.Write(head); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func isMetadataSegment(marker byte, payload []byte) bool {
	switch marker {
	case 0xe1:
		return hasPrefix(payload, jpegExifHeader) || hasPrefix(payload, jpegXmpHeader)
	case 0xed:
		return hasPrefix(payload, jpegPhotoshop)
	case 0xe2:
		return hasPrefix(payload, jpegICCHeader)
	case 0xfe: // COM
		return true
	}
	return false
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
