package processor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdm/internal/classify"
	"mdm/internal/report"
	"mdm/internal/testfixture"
	"mdm/internal/verify"
	"mdm/pkg/imgutil"
)

func memTree(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out", 0o755))
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fsys, name, data, 0o644))
	}
	return fsys
}

func jpegWithExif(t *testing.T) []byte {
	t.Helper()
	data, err := testfixture.JPEGWithExif("DramaCam")
	require.NoError(t, err)
	return data
}

func itemFor(t *testing.T, batch report.Batch, base string) report.Item {
	t.Helper()
	for _, item := range batch.Files {
		if filepath.Base(item.Src) == base {
			return item
		}
	}
	t.Fatalf("no report entry for %s", base)
	return report.Item{}
}

func TestRunImageAndTextFile(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.jpg"), jpegWithExif(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "note.txt"), []byte("just text\n"), 0o644))

	batch, err := Run(context.Background(), Options{InputRoot: in, OutputRoot: out}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Summary.Count)
	assert.Empty(t, batch.Failed())

	txt := itemFor(t, batch, "note.txt")
	assert.Equal(t, report.TypeCopy, txt.Type)
	assert.Equal(t, int64(0), txt.BytesRemoved)
	assert.True(t, txt.OK)
	copied, err := os.ReadFile(filepath.Join(out, "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("just text\n"), copied)

	img := itemFor(t, batch, "a.jpg")
	assert.Equal(t, report.TypeImage, img.Type)
	assert.Equal(t, verify.NoteOK, img.Note)

	f, err := os.Open(filepath.Join(out, "a.jpg"))
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, verify.Image(f, imgutil.KindJPEG).OK)

	reported := batch.Summary.BytesIn - batch.Summary.BytesOut
	if reported < 0 {
		reported = 0
	}
	assert.Equal(t, reported, batch.Summary.BytesRemoved)
}

func TestRunPDF(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/docs/report.pdf": testfixture.PDFWithInfo()})

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)

	item := batch.Files[0]
	assert.Equal(t, report.TypePDF, item.Type)
	assert.True(t, item.OK, item.Note)
	assert.Equal(t, "/out/docs/report.pdf", item.Dst)

	data, err := afero.ReadFile(fsys, "/out/docs/report.pdf")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, []byte(testfixture.PDFAuthor)))
}

func TestRunWEBP(t *testing.T) {
	src, err := testfixture.WEBPWithExif("DramaCam")
	require.NoError(t, err)
	fsys := memTree(t, map[string][]byte{"/in/pics/a.webp": src})

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)

	item := batch.Files[0]
	assert.Equal(t, report.TypeImage, item.Type)
	assert.True(t, item.OK, item.Note)

	data, err := afero.ReadFile(fsys, "/out/pics/a.webp")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, []byte("DramaCam")))
	kind, err := imgutil.SniffReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imgutil.KindWEBP, kind)
}

func TestRunSkipsExistingDestination(t *testing.T) {
	fsys := memTree(t, map[string][]byte{
		"/in/a.jpg":  jpegWithExif(t),
		"/out/a.jpg": []byte("already here"),
	})

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)

	item := batch.Files[0]
	assert.Equal(t, report.TypeSkip, item.Type)
	assert.True(t, item.OK)
	assert.Equal(t, "exists", item.Note)
	assert.Equal(t, int64(0), item.BytesRemoved)

	data, err := afero.ReadFile(fsys, "/out/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("already here"), data)
}

func TestRunOverwriteReplacesDestination(t *testing.T) {
	fsys := memTree(t, map[string][]byte{
		"/in/a.jpg":  jpegWithExif(t),
		"/in/b.txt":  []byte("new"),
		"/out/a.jpg": []byte("stale"),
		"/out/b.txt": []byte("old"),
	})

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Overwrite: true, Fs: fsys}, nil)
	require.NoError(t, err)

	assert.Equal(t, report.TypeImage, itemFor(t, batch, "a.jpg").Type)
	assert.Equal(t, report.TypeCopy, itemFor(t, batch, "b.txt").Type)

	data, err := afero.ReadFile(fsys, "/out/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestRunDecodeFailureLeavesNoPartialFile(t *testing.T) {
	fsys := memTree(t, map[string][]byte{
		"/in/broken.jpg": []byte("this is not a jpeg"),
		"/in/ok.txt":     []byte("fine"),
	})

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 2)

	broken := itemFor(t, batch, "broken.jpg")
	assert.False(t, broken.OK)
	assert.True(t, strings.HasPrefix(broken.Note, "decode failed"), broken.Note)
	assert.Equal(t, int64(0), broken.SizeOut)

	exists, err := afero.Exists(fsys, "/out/broken.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".mdm-"), "temp file left behind: %s", e.Name())
	}

	assert.True(t, itemFor(t, batch, "ok.txt").OK)
	assert.Len(t, batch.Failed(), 1)
}

func TestRunUnsupportedImageType(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/anim.gif": []byte("GIF89a")})
	table := classify.DefaultTable()
	table[".gif"] = classify.Image

	batch, err := Run(context.Background(), Options{
		InputRoot:  "/in",
		OutputRoot: "/out",
		Fs:         fsys,
		Classifier: classify.New(table),
	}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)

	item := batch.Files[0]
	assert.False(t, item.OK)
	assert.Equal(t, "unsupported image type", item.Note)

	exists, err := afero.Exists(fsys, "/out/anim.gif")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunSingleFileInput(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/photos/a.png": mustPNG(t)})

	batch, err := Run(context.Background(), Options{InputRoot: "/in/photos/a.png", OutputRoot: "/out", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "/out/a.png", batch.Files[0].Dst)
	assert.True(t, batch.Files[0].OK, batch.Files[0].Note)
}

func TestRunSkipsOutputInsideInput(t *testing.T) {
	fsys := memTree(t, map[string][]byte{
		"/in/a.txt":           []byte("a"),
		"/in/clean/stale.txt": []byte("from a previous run"),
	})
	require.NoError(t, fsys.MkdirAll("/in/clean", 0o755))

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/in/clean", Fs: fsys}, nil)
	require.NoError(t, err)
	require.Len(t, batch.Files, 1)
	assert.Equal(t, "/in/a.txt", batch.Files[0].Src)
}

func TestRunRootErrors(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/a.txt": []byte("a"), "/file": []byte("x")})

	_, err := Run(context.Background(), Options{InputRoot: "/missing", OutputRoot: "/out", Fs: fsys}, nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/nowhere", Fs: fsys}, nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/file", Fs: fsys}, nil)
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: afero.NewReadOnlyFs(fsys)}, nil)
	assert.Error(t, err)
}

func TestRunReportFollowsTraversalOrder(t *testing.T) {
	files := map[string][]byte{}
	var want []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("/in/f%02d.txt", i)
		files[name] = []byte(name)
		want = append(want, name)
	}
	fsys := memTree(t, files)

	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Workers: 4, Fs: fsys}, nil)
	require.NoError(t, err)

	var got []string
	for _, item := range batch.Files {
		got = append(got, item.Src)
	}
	assert.Equal(t, want, got)
}

func TestRunProgressUpdates(t *testing.T) {
	fsys := memTree(t, map[string][]byte{
		"/in/a.txt":  []byte("a"),
		"/in/b.jpg":  []byte("broken"),
		"/in/c.txt":  []byte("c"),
		"/out/c.txt": []byte("c"),
	})

	updates := make(chan ProgressUpdate, 64)
	batch, err := Run(context.Background(), Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, updates)
	require.NoError(t, err)
	close(updates)

	var total ProgressUpdate
	for u := range updates {
		total.TotalDelta += u.TotalDelta
		total.ProcessedDelta += u.ProcessedDelta
		total.FailedDelta += u.FailedDelta
		total.SkippedDelta += u.SkippedDelta
		total.BytesRemovedDelta += u.BytesRemovedDelta
	}

	assert.Equal(t, 3, total.TotalDelta)
	assert.Equal(t, 3, total.ProcessedDelta)
	assert.Equal(t, 1, total.FailedDelta)
	assert.Equal(t, 1, total.SkippedDelta)
	assert.Equal(t, batch.Summary.Count, total.ProcessedDelta)
}

func TestRunKeepTimes(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(in, "a.png")
	require.NoError(t, os.WriteFile(src, mustPNG(t), 0o644))
	past := time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, past, past))

	_, err := Run(context.Background(), Options{InputRoot: in, OutputRoot: out, KeepTimes: true}, nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(out, "a.png"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "mtime %s", info.ModTime())
}

func TestRunWatermarkedOutputRescrubs(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/a.jpg": jpegWithExif(t), "/in/b.png": mustPNG(t)})
	require.NoError(t, fsys.MkdirAll("/again", 0o755))

	opts := Options{InputRoot: "/in", OutputRoot: "/out", Watermark: "KING", Opacity: 0.2, FontSize: 10, Fs: fsys}
	first, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	require.Empty(t, first.Failed())

	opts.InputRoot, opts.OutputRoot = "/out", "/again"
	second, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Empty(t, second.Failed())
	for _, item := range second.Files {
		assert.GreaterOrEqual(t, item.BytesRemoved, int64(0))
	}
}

func TestRunCancelled(t *testing.T) {
	fsys := memTree(t, map[string][]byte{"/in/a.txt": []byte("a")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{InputRoot: "/in", OutputRoot: "/out", Fs: fsys}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStopsWhenProgressReaderGoesAway(t *testing.T) {
	files := map[string][]byte{}
	for i := 0; i < 100; i++ {
		files[fmt.Sprintf("/in/f%03d.txt", i)] = []byte("x")
	}
	fsys := memTree(t, files)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan ProgressUpdate, 64)
	go func() {
		for i := 0; i < 5; i++ {
			<-updates
		}
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, Options{InputRoot: "/in", OutputRoot: "/out", Workers: 2, Fs: fsys}, updates)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run kept blocking on progress updates nobody reads")
	}
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/a/b", "/a"))
	assert.True(t, isWithin("/a", "/a"))
	assert.False(t, isWithin("/ab", "/a"))
	assert.False(t, isWithin("/", "/a"))
}

func mustPNG(t *testing.T) []byte {
	t.Helper()
	data, err := testfixture.PNGWithMetadata()
	require.NoError(t, err)
	return data
}
