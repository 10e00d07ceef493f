// Package pdfdoc opens PDF object graphs with pdfcpu and exposes the few
// document-level entries the scrubber and the verifier care about.
package pdfdoc

import (
	"bytes"
	"io"
	"regexp"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const defaultVersion = "1.7"

var (
	configOnce sync.Once
	versionRe  = regexp.MustCompile(`^%PDF-(\d\.\d)`)
)

// Open parses the whole document graph from rs.
func Open(rs io.ReadSeeker) (*model.Context, error) {
	configOnce.Do(func() {
		// keep pdfcpu from creating a config dir under the user's home
		model.ConfigPath = "disable"
	})
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return api.ReadContext(rs, model.NewDefaultConfiguration())
}

// HeaderVersion returns the version from the %PDF- header line, or 1.7 when the
// header cannot be read. rs is rewound afterwards.
func HeaderVersion(rs io.ReadSeeker) string {
	defer func() { _, _ = rs.Seek(0, io.SeekStart) }()

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return defaultVersion
	}
	header := make([]byte, 16)
	n, _ := io.ReadFull(rs, header)
	m := versionRe.FindSubmatch(bytes.TrimLeft(header[:n], "\x00\r\n\t "))
	if m == nil {
		return defaultVersion
	}
	return string(m[1])
}

// Catalog returns the document catalog dictionary as stored in the xref table,
// so edits to it are visible to anything walking the table afterwards.
func Catalog(xrt *model.XRefTable) (types.Dict, bool) {
	if xrt.Root == nil {
		return nil, false
	}
	return Dict(xrt, *xrt.Root)
}

// Dict resolves ref to a dictionary held in the xref table.
func Dict(xrt *model.XRefTable, ref types.IndirectRef) (types.Dict, bool) {
	d, err := xrt.DereferenceDict(ref)
	if err != nil || d == nil {
		return nil, false
	}
	return d, true
}

// Info returns the document-information dictionary, or nil when the trailer
// carries none.
func Info(xrt *model.XRefTable) (types.Dict, bool) {
	if xrt.Info == nil {
		return nil, false
	}
	return Dict(xrt, *xrt.Info)
}
