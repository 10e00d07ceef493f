// Package report holds the per-file and per-run accounting produced by a
// scrub run and writes it to disk as JSON.
package report

import "time"

// FileName is written at the output root.
const FileName = "mdm-report.json"

// Item types as they appear in the report.
const (
	TypeImage = "image"
	TypePDF   = "pdf"
	TypeCopy  = "copy"
	TypeSkip  = "skip"
)

// Item is the outcome for one input file.
type Item struct {
	Src          string `json:"src"`
	Dst          string `json:"dst"`
	Type         string `json:"type"`
	SizeIn       int64  `json:"size_in"`
	SizeOut      int64  `json:"size_out"`
	BytesRemoved int64  `json:"bytes_removed"`
	OK           bool   `json:"ok"`
	Note         string `json:"note"`
}

// NewItem fills BytesRemoved from the sizes, clamped at zero so a re-encode
// that grows a file never reports negative savings.
func NewItem(src, dst, typ string, sizeIn, sizeOut int64, ok bool, note string) Item {
	return Item{
		Src:          src,
		Dst:          dst,
		Type:         typ,
		SizeIn:       sizeIn,
		SizeOut:      sizeOut,
		BytesRemoved: Removed(sizeIn, sizeOut),
		OK:           ok,
		Note:         note,
	}
}

type Summary struct {
	Count        int   `json:"count"`
	BytesIn      int64 `json:"bytes_in"`
	BytesOut     int64 `json:"bytes_out"`
	BytesRemoved int64 `json:"bytes_removed"`
}

// Batch is the report for a whole run. Started and Ended are epoch seconds.
type Batch struct {
	Started float64 `json:"started"`
	Ended   float64 `json:"ended"`
	Input   string  `json:"input"`
	Output  string  `json:"output"`
	Files   []Item  `json:"files"`
	Summary Summary `json:"summary"`
}

// Failed returns the items whose scrub or verification did not succeed.
func (b Batch) Failed() []Item {
	var failed []Item
	for _, item := range b.Files {
		if !item.OK {
			failed = append(failed, item)
		}
	}
	return failed
}

// Removed is max(0, in-out).
func Removed(in, out int64) int64 {
	return max(0, in-out)
}

// Builder accumulates items for one run.
type Builder struct {
	batch Batch
}

func NewBuilder(input, output string, started time.Time) *Builder {
	return &Builder{
		batch: Batch{
			Started: epochSeconds(started),
			Input:   input,
			Output:  output,
			Files:   []Item{},
		},
	}
}

func (b *Builder) Add(item Item) {
	b.batch.Files = append(b.batch.Files, item)
}

// Build stamps the end time and computes the summary. The total removed is
// derived from the summed sizes, not from the per-item values.
func (b *Builder) Build(ended time.Time) Batch {
	var sum Summary
	for _, item := range b.batch.Files {
		sum.Count++
		sum.BytesIn += item.SizeIn
		sum.BytesOut += item.SizeOut
	}
	sum.BytesRemoved = Removed(sum.BytesIn, sum.BytesOut)

	out := b.batch
	out.Files = append([]Item(nil), b.batch.Files...)
	if out.Files == nil {
		out.Files = []Item{}
	}
	out.Ended = epochSeconds(ended)
	out.Summary = sum
	return out
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
