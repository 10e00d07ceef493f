package watermark

import (
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// systemFonts are tried in order before falling back to the embedded face.
var systemFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/Library/Fonts/Arial.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

// loadFace never fails: a missing system font degrades to Go Regular and, if
// even that cannot be parsed, to the fixed 7x13 bitmap face.
func loadFace(size int) (font.Face, func()) {
	if size <= 0 {
		size = DefaultFontSize
	}

	for _, path := range systemFonts {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if face, err := newFace(data, size); err == nil {
			return face, func() { _ = face.Close() }
		}
	}

	if face, err := newFace(goregular.TTF, size); err == nil {
		return face, func() { _ = face.Close() }
	}

	return basicfont.Face7x13, func() {}
}

func newFace(data []byte, size int) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
