package verify

import (
	"io"

	"mdm/pkg/imgutil"
)

// PNGKey is a decoded metadata entry a PNG stream can carry.
type PNGKey int

const (
	KeyTransparency PNGKey = iota
	KeyGamma
	KeyText
	KeyExif
	KeyICCProfile
	KeySRGB
	KeyChromaticity
	KeyPhysical
	KeyBackground
	KeyTime
)

func (k PNGKey) String() string {
	switch k {
	case KeyTransparency:
		return "transparency"
	case KeyGamma:
		return "gamma"
	case KeyText:
		return "text"
	case KeyExif:
		return "exif"
	case KeyICCProfile:
		return "icc_profile"
	case KeySRGB:
		return "srgb"
	case KeyChromaticity:
		return "chromaticity"
	case KeyPhysical:
		return "dpi"
	case KeyBackground:
		return "background"
	default:
		return "time"
	}
}

var pngChunkKeys = map[string]PNGKey{
	"tRNS": KeyTransparency,
	"gAMA": KeyGamma,
	"tEXt": KeyText,
	"zTXt": KeyText,
	"iTXt": KeyText,
	"eXIf": KeyExif,
	"iCCP": KeyICCProfile,
	"sRGB": KeySRGB,
	"cHRM": KeyChromaticity,
	"pHYs": KeyPhysical,
	"bKGD": KeyBackground,
	"tIME": KeyTime,
}

// benignPNGKeys is kept deliberately narrow. Colour-profile keys are flagged.
var benignPNGKeys = map[PNGKey]bool{
	KeyTransparency: true,
	KeyGamma:        true,
}

// PNGKeys lists the metadata keys present in a PNG stream, in chunk order.
func PNGKeys(r io.Reader) ([]PNGKey, error) {
	var keys []PNGKey
	err := imgutil.ReadPNGChunks(r, func(c imgutil.PNGChunk) error {
		if key, ok := pngChunkKeys[c.Type]; ok {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

// PNG fails when any key outside the benign set is present.
func PNG(r io.Reader) Result {
	keys, err := PNGKeys(r)
	if err != nil {
		return fail("png unreadable: " + err.Error())
	}
	for _, key := range keys {
		if !benignPNGKeys[key] {
			return fail(NotePNGAncillary)
		}
	}
	return ok()
}
