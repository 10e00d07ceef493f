// Package scrub re-encodes images and rewrites PDFs so that no embedded
// metadata from the source reaches the destination.
//
// Images are never patched: they are decoded to pixels and encoded again, and
// the only metadata written is an explicitly empty block. PDFs are rebuilt from
// their object graph with the document-info dictionary and XMP stream dropped.
package scrub

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"mdm/internal/classify"
	"mdm/internal/watermark"
	"mdm/pkg/imgutil"
)

// Encode parameters are fixed so repeated runs produce identical bytes.
const (
	JPEGQuality = 95
	WEBPQuality = 95
)

var (
	ErrUnsupportedFormat = classify.ErrUnsupportedFormat
	ErrDecodeFailed      = errors.New("decode failed")
	ErrEncodeFailed      = errors.New("encode failed")
	ErrEncryptedPDF      = errors.New("encrypted pdf not supported")
)

type ImageOptions struct {
	// Watermark is applied before encoding when non-nil.
	Watermark *watermark.Options
}

// Image decodes r, optionally watermarks it and writes a metadata-free
// encoding of kind to w.
func Image(r io.Reader, w io.Writer, kind imgutil.Kind, opts ImageOptions) error {
	switch kind {
	case imgutil.KindJPEG, imgutil.KindPNG, imgutil.KindWEBP:
	default:
		return ErrUnsupportedFormat
	}

	src, err := imaging.Decode(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	var img image.Image = imaging.Clone(src)
	if opts.Watermark != nil {
		marked, err := watermark.Compose(img, *opts.Watermark)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		img = marked
	}

	if err := encode(w, img, kind); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

func encode(w io.Writer, img image.Image, kind imgutil.Kind) error {
	var buf bytes.Buffer
	switch kind {
	case imgutil.KindJPEG:
		if err := imaging.Encode(&buf, watermark.Flatten(img), imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
			return err
		}
		return writeJPEGWithEmptyExif(&buf, w)
	case imgutil.KindPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return err
		}
		return stripPNG(&buf, w)
	case imgutil.KindWEBP:
		return webp.Encode(w, img, &webp.Options{Quality: WEBPQuality})
	default:
		return ErrUnsupportedFormat
	}
}
