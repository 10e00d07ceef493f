package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"mdm/internal/classify"
	"mdm/internal/report"
	"mdm/internal/watermark"
)

// Run scrubs every file under opts.InputRoot into opts.OutputRoot and returns
// the report for the run. Per-file failures are recorded in the report and
// never abort the batch; an error is returned only when the roots are unusable
// or ctx is cancelled, in which case the report covers the files finished so far.
func Run(ctx context.Context, opts Options, updates chan<- ProgressUpdate) (report.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = withDefaults(opts)
	started := time.Now()
	fsys := opts.Fs

	absRoot, err := filepath.Abs(opts.InputRoot)
	if err != nil {
		return report.Batch{}, err
	}
	outputAbs, err := filepath.Abs(opts.OutputRoot)
	if err != nil {
		return report.Batch{}, err
	}

	info, err := fsys.Stat(absRoot)
	if err != nil {
		return report.Batch{}, fmt.Errorf("input root: %w", err)
	}
	if err := checkOutputRoot(fsys, outputAbs); err != nil {
		return report.Batch{}, err
	}

	outputInsideRoot := info.IsDir() && outputAbs != absRoot && isWithin(outputAbs, absRoot)
	opts.OutputRoot = outputAbs

	log := opts.Logger.With(zap.String("input", absRoot), zap.String("output", outputAbs))
	log.Info("scrub run started", zap.Int("workers", opts.Workers))

	jobs := make(chan Job)
	results := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts)
		}()
	}

	var collected []Result
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			collected = append(collected, res)
			sendProgress(ctx, updates, progressFor(res.Item))
		}
	}()

	producerErr := make(chan error, 1)
	go func() {
		defer close(jobs)

		next := 0
		sendJob := func(path, rel string) error {
			job := Job{Index: next, Path: path, RelPath: rel}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
			next++
			sendProgress(ctx, updates, ProgressUpdate{TotalDelta: 1})
			return nil
		}

		if !info.IsDir() {
			producerErr <- sendJob(absRoot, filepath.Base(absRoot))
			return
		}

		err := afero.Walk(fsys, absRoot, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if fi.IsDir() {
				if outputInsideRoot && isWithin(path, outputAbs) {
					return filepath.SkipDir
				}
				return nil
			}
			if !fi.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return err
			}
			return sendJob(path, rel)
		})
		producerErr <- err
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	sort.Slice(collected, func(i, j int) bool { return collected[i].Index < collected[j].Index })
	builder := report.NewBuilder(absRoot, outputAbs, started)
	for _, res := range collected {
		builder.Add(res.Item)
	}
	batch := builder.Build(time.Now())

	log.Info("scrub run finished",
		zap.Int("files", batch.Summary.Count),
		zap.Int("failed", len(batch.Failed())),
		zap.Int64("bytes_removed", batch.Summary.BytesRemoved))

	if err := <-producerErr; err != nil {
		return batch, err
	}
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, opts Options) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return
		}
		dst := filepath.Join(opts.OutputRoot, job.RelPath)
		results <- Result{Index: job.Index, Item: processFile(job, dst, opts)}
	}
}

func withDefaults(opts Options) Options {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.FontSize <= 0 {
		opts.FontSize = watermark.DefaultFontSize
	}
	return opts
}

// checkOutputRoot rejects a missing, non-directory or read-only output root
// before any file is touched.
func checkOutputRoot(fsys afero.Fs, dir string) error {
	info, err := fsys.Stat(dir)
	if err != nil {
		return fmt.Errorf("output root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output root %s is not a directory", dir)
	}

	probe, err := afero.TempFile(fsys, dir, ".mdm-probe-*")
	if err != nil {
		return fmt.Errorf("output root not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return fsys.Remove(name)
}

// sendProgress drops the update once ctx is done so a consumer that stopped
// reading cannot stall the pipeline.
func sendProgress(ctx context.Context, updates chan<- ProgressUpdate, u ProgressUpdate) {
	if updates == nil {
		return
	}
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}

func progressFor(item report.Item) ProgressUpdate {
	update := ProgressUpdate{ProcessedDelta: 1, BytesRemovedDelta: item.BytesRemoved}
	if !item.OK {
		update.FailedDelta = 1
	}
	if item.Type == report.TypeSkip {
		update.SkippedDelta = 1
	}
	return update
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

var errSameFile = errors.New("output path resolves to input path")
