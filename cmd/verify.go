package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"mdm/internal/classify"
	"mdm/internal/config"
	"mdm/internal/tui"
	"mdm/internal/verify"
)

var (
	verifyConfigPath string
	verifyDetails    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Check scrubbed files for leftover metadata without modifying them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(verifyConfigPath)
		if err != nil {
			return err
		}
		table, err := cfg.Table()
		if err != nil {
			return err
		}

		fsys := afero.NewOsFs()
		classifier := classify.New(table)
		entries, err := verify.Tree(fsys, args[0], classifier)
		if err != nil {
			return err
		}

		failed := 0
		for _, entry := range entries {
			mark, style := "ok", verifyOKStyle
			if !entry.OK {
				mark, style = "FAIL", verifyFailStyle
				failed++
			}
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				style.Render(fmt.Sprintf("%-4s", mark)),
				verifyFileStyle.Render(entry.Path),
				verifyDimStyle.Render(entry.Note),
			)
			if verifyDetails && !entry.OK {
				printFindings(fsys, entry.Path, classifier)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files still carry metadata", failed, len(entries))
		}
		fmt.Fprintf(os.Stdout, "%s\n", verifyDimStyle.Render(fmt.Sprintf("%d files clean", len(entries))))
		return nil
	},
}

func printFindings(fsys afero.Fs, path string, c *classify.Classifier) {
	findings, err := verify.Findings(fsys, path, c)
	if err != nil {
		fmt.Fprintf(os.Stdout, "     %s\n", verifyDimStyle.Render(err.Error()))
		return
	}
	for _, finding := range findings {
		fmt.Fprintf(os.Stdout, "     %s %s\n",
			verifyGroupStyle.Render(finding.Group+":"),
			verifyFileStyle.Render(strings.Join(finding.Names, ", ")),
		)
	}
}

var (
	verifyGroupStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	verifyFileStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	verifyOKStyle    = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorSuccess)
	verifyFailStyle  = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorFail)
	verifyDimStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	verifyCmd.Flags().StringVar(&verifyConfigPath, "config", "", "TOML config file")
	verifyCmd.Flags().BoolVarP(&verifyDetails, "details", "d", false, "list the metadata left in failing files")
	rootCmd.AddCommand(verifyCmd)
}
