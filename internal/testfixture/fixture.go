// Package testfixture builds small images and documents carrying known
// metadata for tests.
package testfixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

// Solid returns a w×h opaque image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// ExifTIFF returns a little-endian TIFF block whose IFD0 holds Make and
// DateTime tags.
func ExifTIFF(cameraMake string) []byte {
	makeVal := []byte(cameraMake + "\x00")
	dateVal := []byte("2024:01:02 03:04:05\x00")

	const entries = 2
	dataStart := uint32(8 + 2 + entries*12 + 4)

	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(entries))

	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x010f))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(len(makeVal)))
	_ = binary.Write(&tiff, binary.LittleEndian, dataStart)

	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(len(dateVal)))
	_ = binary.Write(&tiff, binary.LittleEndian, dataStart+uint32(len(makeVal)))

	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write(makeVal)
	tiff.Write(dateVal)
	return tiff.Bytes()
}

// JPEGWithExif encodes a 64×64 image and splices an EXIF APP1 segment with
// Make=cameraMake right after SOI.
func JPEGWithExif(cameraMake string) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Solid(64, 64, color.NRGBA{R: 120, G: 20, B: 200, A: 0xff}), &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	payload := append([]byte("Exif\x00\x00"), ExifTIFF(cameraMake)...)
	segment := []byte{0xff, 0xe1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte{}, data[:2]...)
	out = append(out, segment...)
	out = append(out, data[2:]...)
	return out, nil
}

// PNGWithChunks encodes a small image and inserts the given chunks before IEND.
func PNGWithChunks(chunks ...[]byte) ([]byte, error) {
	img := Solid(8, 8, color.NRGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if len(data) < 12 || string(data[len(data)-8:len(data)-4]) != "IEND" {
		return nil, fmt.Errorf("unexpected png trailer")
	}

	insertAt := len(data) - 12
	out := append([]byte{}, data[:insertAt]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	out = append(out, data[insertAt:]...)
	return out, nil
}

// PNGWithMetadata carries text, time and EXIF chunks.
func PNGWithMetadata() ([]byte, error) {
	return PNGWithChunks(
		PNGChunk("tEXt", []byte("Model\x00DramaCam")),
		PNGChunk("tIME", []byte{0x07, 0xe8, 0x01, 0x02, 0x03, 0x04, 0x05}),
		PNGChunk("eXIf", ExifTIFF("DramaCam")),
	)
}

// PNGChunk builds one chunk with a valid CRC.
func PNGChunk(chunkType string, data []byte) []byte {
	chunkTypeBytes := []byte(chunkType)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	crc := crc32.ChecksumIEEE(append(append([]byte{}, chunkTypeBytes...), data...))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc)

	chunk := make([]byte, 0, 12+len(data))
	chunk = append(chunk, lenBuf...)
	chunk = append(chunk, chunkTypeBytes...)
	chunk = append(chunk, data...)
	chunk = append(chunk, crcBuf...)
	return chunk
}

// WEBPWithExif wraps a lossy 32×24 frame in an extended (VP8X) container
// that carries an EXIF chunk with Make=cameraMake.
func WEBPWithExif(cameraMake string) ([]byte, error) {
	const w, h = 32, 24
	var enc bytes.Buffer
	if err := webp.Encode(&enc, Solid(w, h, color.NRGBA{R: 30, G: 160, B: 90, A: 0xff}), &webp.Options{Quality: 90}); err != nil {
		return nil, err
	}
	frame, err := webpFrame(enc.Bytes())
	if err != nil {
		return nil, err
	}

	vp8x := make([]byte, 10)
	vp8x[0] = 0x08 // EXIF present
	putUint24(vp8x[4:], w-1)
	putUint24(vp8x[7:], h-1)

	var body bytes.Buffer
	body.WriteString("WEBP")
	body.Write(riffChunk("VP8X", vp8x))
	body.Write(frame)
	body.Write(riffChunk("EXIF", ExifTIFF(cameraMake)))

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(body.Len()))
	return append(out, body.Bytes()...), nil
}

// webpFrame returns the image chunks of an encoded WEBP file verbatim.
func webpFrame(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, fmt.Errorf("unexpected webp header")
	}
	var frame []byte
	for i := 12; i+8 <= len(data); {
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		end := i + 8 + size + size&1
		if end > len(data) {
			end = len(data)
		}
		switch string(data[i : i+4]) {
		case "VP8 ", "VP8L", "ALPH":
			frame = append(frame, data[i:end]...)
		}
		i = end
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("webp has no image chunk")
	}
	return frame, nil
}

func riffChunk(fourCC string, data []byte) []byte {
	out := append([]byte(fourCC), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// Secrets embedded by PDFWithInfo.
const (
	PDFAuthor   = "Jane Doe"
	PDFProducer = "DramaWriter 9"
	PDFXMPMark  = "xmpmeta"
)

// PDFWithInfo returns a one-page PDF with a populated Info dictionary and a
// catalog-level XMP stream.
func PDFWithInfo() []byte {
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"/></x:xmpmeta>`
	return buildPDF([]string{
		"<</Type/Catalog/Pages 2 0 R/Metadata 4 0 R>>",
		"<</Type/Pages/Kids[3 0 R]/Count 1>>",
		"<</Type/Page/Parent 2 0 R/MediaBox[0 0 200 200]>>",
		fmt.Sprintf("<</Type/Metadata/Subtype/XML/Length %d>>\nstream\n%s\nendstream", len(xmp), xmp),
		"<</Author(" + PDFAuthor + ")/Title(Quarterly Secrets)/Producer(" + PDFProducer + ")/CreationDate(D:20240102030405)>>",
	}, 5)
}

// PDFPlain returns a one-page PDF without Info or XMP.
func PDFPlain() []byte {
	return buildPDF([]string{
		"<</Type/Catalog/Pages 2 0 R>>",
		"<</Type/Pages/Kids[3 0 R]/Count 1>>",
		"<</Type/Page/Parent 2 0 R/MediaBox[0 0 200 200]>>",
	}, 0)
}

func buildPDF(objs []string, infoNr int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	info := ""
	if infoNr > 0 {
		info = fmt.Sprintf("/Info %d 0 R", infoNr)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R%s>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, info, xref)
	return buf.Bytes()
}
