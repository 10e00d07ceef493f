// Package watermark stamps a tiled, semi-transparent text overlay onto images.
package watermark

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Defaults used by the CLI when no value is configured.
const (
	DefaultOpacity  = 0.18
	DefaultFontSize = 48

	minStep = 100
)

var ErrEmptyText = errors.New("watermark text is empty")

type Options struct {
	Text     string
	Opacity  float64
	FontSize int
}

// Compose renders opts.Text diagonally tiled across img and returns an opaque
// copy. The alpha channel of the source is discarded even when the overlay
// leaves a pixel untouched.
func Compose(img image.Image, opts Options) (*image.NRGBA, error) {
	if opts.Text == "" {
		return nil, ErrEmptyText
	}

	face, closeFace := loadFace(opts.FontSize)
	defer closeFace()

	base := imaging.Clone(img)
	bounds := base.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	metrics := face.Metrics()
	tw := font.MeasureString(face, opts.Text).Ceil()
	th := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	overlay := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: alpha(opts.Opacity)}),
		Face: face,
	}
	for _, origin := range Grid(w, h, tw, th) {
		d.Dot = fixed.P(origin.X, origin.Y+ascent)
		d.DrawString(opts.Text)
	}

	composited := imaging.Overlay(base, overlay, bounds.Min, 1.0)
	return Flatten(composited), nil
}

// Grid returns the top-left origins of every tile for a w×h canvas carrying
// text of size tw×th. Tiles start one text extent before the origin so the
// pattern reaches every corner.
func Grid(w, h, tw, th int) []image.Point {
	step := Step(w, h)
	var points []image.Point
	for y := -th; y < h+step; y += step {
		for x := -tw; x < w+step; x += step {
			points = append(points, image.Pt(x, y))
		}
	}
	return points
}

// Step is the spacing between tile origins on both axes.
func Step(w, h int) int {
	step := int(float64(min(w, h)) * 0.25)
	return max(minStep, step)
}

// Flatten drops the alpha channel, keeping straight colour values.
func Flatten(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

func alpha(opacity float64) uint8 {
	switch {
	case opacity <= 0:
		return 0
	case opacity >= 1:
		return 0xff
	}
	return uint8(opacity * 255)
}
