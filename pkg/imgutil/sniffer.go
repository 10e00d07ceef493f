package imgutil

import (
	"errors"
	"io"
)

// Kind identifies an image codec the scrubber can re-encode.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindWEBP
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindWEBP:
		return "webp"
	default:
		return "unknown"
	}
}

var (
	pngSig   = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig  = []byte{0xff, 0xd8, 0xff}
	riffSig  = []byte("RIFF")
	webpFour = []byte("WEBP")
)

const headerLen = 12

// DetectHeader inspects the first bytes of a file for known signatures.
// WEBP needs the full 12 byte RIFF header; JPEG and PNG need 8.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errors.New("header too short")
	}

	if hasPrefix(header, jpegSig) {
		return KindJPEG, nil
	}
	if hasPrefix(header, pngSig) {
		return KindPNG, nil
	}
	if len(header) >= headerLen && hasPrefix(header, riffSig) && hasPrefix(header[8:], webpFour) {
		return KindWEBP, nil
	}

	return KindUnknown, nil
}

// SniffReader reads up to 12 bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, headerLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}

	return DetectHeader(header[:n])
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
