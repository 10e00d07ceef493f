package verify

import (
	"io"

	"mdm/internal/pdfdoc"
)

// PDF re-opens the document and fails when the trailer still points at a
// non-empty information dictionary or the catalog still references XMP.
func PDF(rs io.ReadSeeker) Result {
	ctx, err := pdfdoc.Open(rs)
	if err != nil {
		return fail(noteUnreadablePDF + ": " + err.Error())
	}

	if ctx.Info != nil {
		info, found := pdfdoc.Info(ctx.XRefTable)
		if !found || len(info) > 0 {
			return fail(NotePDFInfo)
		}
	}

	if catalog, found := pdfdoc.Catalog(ctx.XRefTable); found {
		if _, has := catalog["Metadata"]; has {
			return fail(NotePDFXMP)
		}
	}
	return ok()
}
