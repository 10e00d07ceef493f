package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Write stores batch as indented JSON at dir/mdm-report.json and returns the
// path written.
func Write(fsys afero.Fs, dir string, batch Batch) (string, error) {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
