package processor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/djherbis/times"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"mdm/internal/classify"
	"mdm/internal/report"
	"mdm/internal/scrub"
	"mdm/internal/verify"
	"mdm/internal/watermark"
)

const (
	noteExists = "exists"
	noteCopied = "copied"
)

type transform func(r io.ReadSeeker, w io.Writer) error

func processFile(job Job, dst string, opts Options) report.Item {
	fsys := opts.Fs
	log := opts.Logger.With(zap.String("src", job.Path), zap.String("dst", dst))

	category := opts.Classifier.Classify(job.Path)
	typ := typeFor(category)

	srcInfo, err := fsys.Stat(job.Path)
	if err != nil {
		log.Warn("stat source failed", zap.Error(err))
		return report.NewItem(job.Path, dst, typ, 0, 0, false, ioNote(err))
	}
	sizeIn := srcInfo.Size()

	if dstInfo, err := fsys.Stat(dst); err == nil && !opts.Overwrite {
		log.Debug("destination exists, skipping")
		item := report.NewItem(job.Path, dst, report.TypeSkip, sizeIn, dstInfo.Size(), true, noteExists)
		item.BytesRemoved = 0
		return item
	}
	if filepath.Clean(dst) == filepath.Clean(job.Path) {
		return report.NewItem(job.Path, dst, typ, sizeIn, sizeIn, false, errSameFile.Error())
	}

	var fn transform
	switch category {
	case classify.Image:
		kind, err := classify.ImageCodec(job.Path)
		if err != nil {
			log.Warn("unsupported image type")
			return report.NewItem(job.Path, dst, typ, sizeIn, sizeOf(fsys, dst), false, noteFor(err))
		}
		imgOpts := scrub.ImageOptions{}
		if opts.Watermark != "" {
			imgOpts.Watermark = &watermark.Options{Text: opts.Watermark, Opacity: opts.Opacity, FontSize: opts.FontSize}
		}
		fn = func(r io.ReadSeeker, w io.Writer) error { return scrub.Image(r, w, kind, imgOpts) }
	case classify.PDF:
		fn = scrub.PDF
	default:
		fn = func(r io.ReadSeeker, w io.Writer) error {
			_, err := io.Copy(w, r)
			return err
		}
	}

	if err := writeAtomic(fsys, job.Path, dst, srcInfo.Mode(), fn); err != nil {
		log.Warn("write failed", zap.Error(err))
		return report.NewItem(job.Path, dst, typ, sizeIn, sizeOf(fsys, dst), false, noteFor(err))
	}

	if category == classify.Passthrough {
		keepTimes(fsys, job.Path, dst, srcInfo, log)
		log.Debug("copied")
		return report.NewItem(job.Path, dst, typ, sizeIn, sizeOf(fsys, dst), true, noteCopied)
	}
	if opts.KeepTimes {
		keepTimes(fsys, job.Path, dst, srcInfo, log)
	}

	res, _ := verify.File(fsys, dst, opts.Classifier)
	if !res.OK {
		log.Warn("verification failed", zap.String("note", res.Note))
	} else {
		log.Debug("scrubbed")
	}
	return report.NewItem(job.Path, dst, typ, sizeIn, sizeOf(fsys, dst), res.OK, res.Note)
}

// writeAtomic runs fn from src into a temp file beside dst and renames it over
// dst only when fn and the flush both succeed.
func writeAtomic(fsys afero.Fs, src, dst string, mode os.FileMode, fn transform) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	destDir := filepath.Dir(dst)
	if err := fsys.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	tmpFile, err := afero.TempFile(fsys, destDir, ".mdm-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer fsys.Remove(tmpName)

	if err := fn(in, tmpFile); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(tmpName, mode.Perm()); err != nil {
		return err
	}

	return replaceFile(fsys, tmpName, dst)
}

func replaceFile(fsys afero.Fs, tmpPath, destPath string) error {
	if err := fsys.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := fsys.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return fsys.Rename(tmpPath, destPath)
}

// keepTimes copies access and modification times from src to dst. Failures
// are logged and otherwise ignored.
func keepTimes(fsys afero.Fs, src, dst string, srcInfo os.FileInfo, log *zap.Logger) {
	mtime := srcInfo.ModTime()
	atime := mtime
	if _, isOs := fsys.(*afero.OsFs); isOs {
		if ts, err := times.Stat(src); err == nil {
			atime = ts.AccessTime()
		}
	}
	if err := fsys.Chtimes(dst, atime, mtime); err != nil {
		log.Debug("preserve timestamps failed", zap.Error(err))
	}
}

func sizeOf(fsys afero.Fs, path string) int64 {
	info, err := fsys.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func typeFor(c classify.Category) string {
	switch c {
	case classify.Image:
		return report.TypeImage
	case classify.PDF:
		return report.TypePDF
	default:
		return report.TypeCopy
	}
}

func noteFor(err error) string {
	switch {
	case errors.Is(err, scrub.ErrUnsupportedFormat):
		return verify.NoteUnsupported
	case errors.Is(err, scrub.ErrDecodeFailed),
		errors.Is(err, scrub.ErrEncodeFailed),
		errors.Is(err, scrub.ErrEncryptedPDF):
		return err.Error()
	default:
		return ioNote(err)
	}
}

func ioNote(err error) string {
	return fmt.Sprintf("io error: %v", err)
}
