package verify

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/spf13/afero"

	"mdm/internal/classify"
	"mdm/internal/pdfdoc"
	"mdm/pkg/imgutil"
)

// Finding names the leftover entries of one metadata group.
type Finding struct {
	Group string
	Names []string
}

// Findings lists the metadata still present in the file at path, grouped the
// same way the checks group it. Clean and passthrough files yield nothing.
func Findings(fsys afero.Fs, path string, c *classify.Classifier) ([]Finding, error) {
	category := c.Classify(path)
	if category == classify.Passthrough {
		return nil, nil
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if category == classify.PDF {
		return pdfFindings(f)
	}

	kind, err := imgutil.SniffReader(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch kind {
	case imgutil.KindJPEG:
		return exifFindings(f), nil
	case imgutil.KindPNG:
		return pngFindings(f)
	default:
		return nil, nil
	}
}

func exifFindings(rs io.ReadSeeker) []Finding {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		return nil
	}

	byGroup := map[ExifGroup][]string{}
	for _, tag := range tags {
		group := groupForPath(tag.IfdPath)
		byGroup[group] = appendUnique(byGroup[group], tag.TagName)
	}

	var findings []Finding
	for group := GroupZeroth; group <= GroupFirst; group++ {
		if names := byGroup[group]; len(names) > 0 {
			findings = append(findings, Finding{Group: group.String(), Names: names})
		}
	}
	return findings
}

func pngFindings(r io.Reader) ([]Finding, error) {
	var order []PNGKey
	byKey := map[PNGKey][]string{}

	err := imgutil.ReadPNGChunks(r, func(c imgutil.PNGChunk) error {
		key, ok := pngChunkKeys[c.Type]
		if !ok || benignPNGKeys[key] {
			return nil
		}
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		name := c.Type
		if key == KeyText {
			if textKey := pngTextKey(c.Data); textKey != "" {
				name = textKey
			}
		}
		byKey[key] = appendUnique(byKey[key], name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(order))
	for _, key := range order {
		findings = append(findings, Finding{Group: key.String(), Names: byKey[key]})
	}
	return findings, nil
}

// pngTextKey returns the keyword of a tEXt, zTXt or iTXt payload.
func pngTextKey(data []byte) string {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return ""
	}
	return string(data[:idx])
}

func pdfFindings(rs io.ReadSeeker) ([]Finding, error) {
	ctx, err := pdfdoc.Open(rs)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	if ctx.Info != nil {
		info, found := pdfdoc.Info(ctx.XRefTable)
		switch {
		case !found:
			findings = append(findings, Finding{Group: "Info", Names: []string{fmt.Sprintf("unresolved %s", ctx.Info)}})
		case len(info) > 0:
			names := make([]string, 0, len(info))
			for k := range info {
				names = append(names, k)
			}
			sort.Strings(names)
			findings = append(findings, Finding{Group: "Info", Names: names})
		}
	}
	if catalog, found := pdfdoc.Catalog(ctx.XRefTable); found {
		if _, has := catalog["Metadata"]; has {
			findings = append(findings, Finding{Group: "XMP", Names: []string{"Metadata"}})
		}
	}
	return findings, nil
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}
