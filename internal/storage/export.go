package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportSnapshot writes a snapshot as indented JSON files into dir:
// run.json, pages.json, source.json and destination.json.
func ExportSnapshot(snap *Snapshot, dir string) ([]string, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot", ErrNilParameter)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	files := []struct {
		value any
		name  string
	}{
		{snap.Run, "run.json"},
		{snap.Pages, "pages.json"},
		{snap.Source, "source.json"},
		{snap.Destination, "destination.json"},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return written, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}

		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
