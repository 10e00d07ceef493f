// Package verify re-opens scrubbed files and checks that no metadata survived.
//
// It never trusts the encoder: every check reads the destination back from
// storage and inspects the structures a metadata leak would live in.
package verify

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"mdm/internal/classify"
	"mdm/pkg/imgutil"
)

// Notes reported by the checks.
const (
	NoteOK            = "ok"
	NoteExifPresent   = "exif still present"
	NotePNGAncillary  = "png ancillary chunks remain"
	NotePDFInfo       = "pdf info remains"
	NotePDFXMP        = "pdf xmp remains"
	NoteUnsupported   = "unsupported image type"
	noteUnreadablePDF = "pdf unreadable"
)

// Result is the verdict for one file, independent of whether writing it
// succeeded.
type Result struct {
	OK   bool
	Note string
}

func ok() Result { return Result{OK: true, Note: NoteOK} }

func fail(note string) Result { return Result{Note: note} }

// File verifies the file at path according to its classification. The second
// return value is false for passthrough files, which are never checked.
func File(fsys afero.Fs, path string, c *classify.Classifier) (Result, bool) {
	switch c.Classify(path) {
	case classify.Image:
		kind, err := classify.ImageCodec(path)
		if err != nil {
			return fail(NoteUnsupported), true
		}
		f, err := fsys.Open(path)
		if err != nil {
			return fail(fmt.Sprintf("io error: %v", err)), true
		}
		defer f.Close()
		return Image(f, kind), true
	case classify.PDF:
		f, err := fsys.Open(path)
		if err != nil {
			return fail(fmt.Sprintf("io error: %v", err)), true
		}
		defer f.Close()
		return PDF(f), true
	default:
		return Result{}, false
	}
}

// Image checks that rs holds an image of the expected kind and carries no
// metadata for that kind.
func Image(rs io.ReadSeeker, kind imgutil.Kind) Result {
	got, err := imgutil.SniffReader(rs)
	if err != nil || got != kind {
		return fail(fmt.Sprintf("output is not %s", kind))
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Sprintf("io error: %v", err))
	}

	switch kind {
	case imgutil.KindJPEG:
		return JPEG(rs)
	case imgutil.KindPNG:
		return PNG(rs)
	case imgutil.KindWEBP:
		return WEBP(rs)
	default:
		return fail(NoteUnsupported)
	}
}

// WEBP always passes: the encoder never emits EXIF, XMP or ICC chunks.
func WEBP(io.Reader) Result {
	return ok()
}

// Entry is the verdict for one file found by Tree.
type Entry struct {
	Path string
	Result
}

// Tree verifies root, which may be a single file or a directory walked in
// lexical order. Passthrough files are left out.
func Tree(fsys afero.Fs, root string, c *classify.Classifier) ([]Entry, error) {
	var entries []Entry
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if res, checked := File(fsys, path, c); checked {
			entries = append(entries, Entry{Path: path, Result: res})
		}
		return nil
	})
	return entries, err
}
