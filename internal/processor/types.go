package processor

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"mdm/internal/classify"
	"mdm/internal/report"
)

type Options struct {
	// InputRoot is a file or a directory. OutputRoot must already exist.
	InputRoot  string
	OutputRoot string

	// Watermark text; empty disables watermarking.
	Watermark string
	Opacity   float64
	FontSize  int

	KeepTimes bool
	Overwrite bool

	// Workers bounds the number of files processed at once. 0 means NumCPU,
	// 1 processes files strictly one after another.
	Workers int

	Fs         afero.Fs
	Classifier *classify.Classifier
	Logger     *zap.Logger
}

// Job is one regular file found under the input root.
type Job struct {
	Index   int
	Path    string
	RelPath string
}

// Result pairs a job with the report entry it produced.
type Result struct {
	Index int
	Item  report.Item
}

type ProgressUpdate struct {
	TotalDelta        int
	ProcessedDelta    int
	FailedDelta       int
	SkippedDelta      int
	BytesRemovedDelta int64
}
