package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mdm/internal/classify"
	"mdm/internal/config"
	"mdm/internal/processor"
	"mdm/internal/report"
	"mdm/internal/tui"
)

var (
	runInput      string
	runOutput     string
	runConfigPath string
	runNoTUI      bool
	runFlagValues = config.Default()
)

var runCmd = &cobra.Command{
	Use:   "run --input <path> --out <dir> [flags]",
	Short: "Scrub metadata from a file or folder into an output folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(runConfigPath)
		if err != nil {
			return err
		}
		applyRunFlags(cmd.Flags(), &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		table, err := cfg.Table()
		if err != nil {
			return err
		}

		input, err := filepath.Abs(runInput)
		if err != nil {
			return err
		}
		output, err := filepath.Abs(runOutput)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(output, 0o755); err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opts := processor.Options{
			InputRoot:  input,
			OutputRoot: output,
			Watermark:  cfg.Watermark,
			Opacity:    cfg.Opacity,
			FontSize:   cfg.FontSize,
			KeepTimes:  cfg.KeepTimes,
			Overwrite:  cfg.Overwrite,
			Workers:    cfg.Workers,
			Classifier: classify.New(table),
			Logger:     logger,
		}

		var batch report.Batch
		if runNoTUI || verbose {
			batch, err = processor.Run(ctx, opts, nil)
		} else {
			batch, err = runWithProgress(ctx, opts)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		reportPath, writeErr := report.Write(afero.NewOsFs(), output, batch)
		if writeErr != nil {
			return writeErr
		}
		logger.Debug("report written", zap.String("path", reportPath))

		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchRows(batch)))
		fmt.Fprintf(os.Stdout, "Done. Report: %s\n", reportPath)
		return err
	},
}

func runWithProgress(ctx context.Context, opts processor.Options) (report.Batch, error) {
	return runWithUI(ctx, opts, func(ctx context.Context, updates <-chan processor.ProgressUpdate) {
		program := tea.NewProgram(tui.NewModel(updates), tea.WithContext(ctx))
		_, _ = program.Run()
	})
}

// runWithUI runs the batch while ui consumes progress updates. The UI owns the
// terminal in raw mode, so ctrl+c arrives as a key press rather than SIGINT:
// once ui returns the batch is cancelled and leftover updates are drained.
func runWithUI(ctx context.Context, opts processor.Options, ui func(context.Context, <-chan processor.ProgressUpdate)) (report.Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan processor.ProgressUpdate, 64)
	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		ui(ctx, updates)
		cancel()
		for range updates {
		}
	}()

	batch, err := processor.Run(ctx, opts, updates)
	close(updates)
	<-uiDone
	return batch, err
}

// applyRunFlags copies only the flags set on the command line so that file
// and environment values survive when a flag is left at its default.
func applyRunFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("watermark") {
		cfg.Watermark = runFlagValues.Watermark
	}
	if flags.Changed("wm-opacity") {
		cfg.Opacity = runFlagValues.Opacity
	}
	if flags.Changed("wm-size") {
		cfg.FontSize = runFlagValues.FontSize
	}
	if flags.Changed("keep-times") {
		cfg.KeepTimes = runFlagValues.KeepTimes
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = runFlagValues.Overwrite
	}
	if flags.Changed("workers") {
		cfg.Workers = runFlagValues.Workers
	}
}

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&runInput, "input", "i", "", "file or folder to scrub")
	flags.StringVarP(&runOutput, "out", "o", "", "output folder (created if missing)")
	flags.StringVar(&runConfigPath, "config", "", "TOML config file")
	flags.BoolVar(&runNoTUI, "no-tui", false, "disable the progress display")

	flags.StringVar(&runFlagValues.Watermark, "watermark", "", "tile this text over every image")
	flags.Float64Var(&runFlagValues.Opacity, "wm-opacity", runFlagValues.Opacity, "watermark opacity in [0,1]")
	flags.IntVar(&runFlagValues.FontSize, "wm-size", runFlagValues.FontSize, "watermark font size in points")
	flags.BoolVar(&runFlagValues.KeepTimes, "keep-times", false, "preserve access and modification times on scrubbed files")
	flags.BoolVar(&runFlagValues.Overwrite, "overwrite", false, "replace existing files in the output folder")
	flags.IntVar(&runFlagValues.Workers, "workers", runFlagValues.Workers, "files processed in parallel")

	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(runCmd)
}
