// Package classify maps file paths to the scrubbing strategy that handles them.
//
// Classification looks at the lowercased extension only. File contents are never
// sniffed, so a PNG saved as photo.jpg is dispatched to the JPEG path and shows up
// as a decode failure in the report.
package classify

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mdm/pkg/imgutil"
)

// Category selects which scrubber handles a file.
type Category int

const (
	Passthrough Category = iota
	Image
	PDF
)

func (c Category) String() string {
	switch c {
	case Image:
		return "image"
	case PDF:
		return "pdf"
	default:
		return "passthrough"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return Image, nil
	case "pdf":
		return PDF, nil
	case "passthrough", "copy":
		return Passthrough, nil
	default:
		return Passthrough, fmt.Errorf("unknown category %q", s)
	}
}

// ErrUnsupportedFormat is returned for image extensions no encoder exists for.
var ErrUnsupportedFormat = errors.New("unsupported image type")

// Table maps a lowercased extension (with the leading dot) to its category.
type Table map[string]Category

// DefaultTable returns the extensions the engine scrubs out of the box.
func DefaultTable() Table {
	return Table{
		".jpg":  Image,
		".jpeg": Image,
		".png":  Image,
		".webp": Image,
		".pdf":  PDF,
	}
}

var codecs = map[string]imgutil.Kind{
	".jpg":  imgutil.KindJPEG,
	".jpeg": imgutil.KindJPEG,
	".png":  imgutil.KindPNG,
	".webp": imgutil.KindWEBP,
}

type Classifier struct {
	table Table
}

// New builds a classifier over a copy of table. A nil table means DefaultTable.
func New(table Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	own := make(Table, len(table))
	for ext, cat := range table {
		own[NormalizeExt(ext)] = cat
	}
	return &Classifier{table: own}
}

// Classify returns the category for path based on its extension.
func (c *Classifier) Classify(path string) Category {
	return c.table[NormalizeExt(filepath.Ext(path))]
}

// ImageCodec returns the encoder family for an image path.
func ImageCodec(path string) (imgutil.Kind, error) {
	kind, ok := codecs[NormalizeExt(filepath.Ext(path))]
	if !ok {
		return imgutil.KindUnknown, ErrUnsupportedFormat
	}
	return kind, nil
}

// NormalizeExt lowercases ext and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
