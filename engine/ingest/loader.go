package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadDocument reads one parsed document from a JSON file.
func LoadDocument(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("load %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.ID == "" {
		// Fall back to the file name so batch reports stay traceable.
		doc.ID = filepath.Base(path)
	}
	return doc, nil
}

// IngestPaths loads each file and runs the batch pipeline. Files that
// fail to load get a failed status without consuming a pipeline slot.
func IngestPaths(ctx context.Context, paths []string, deps Deps, workers int) []DocStatus {
	statuses := make([]DocStatus, 0, len(paths))
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := LoadDocument(p)
		if err != nil {
			statuses = append(statuses, DocStatus{
				DocID:       filepath.Base(p),
				Status:      StatusFailed,
				ErrorDetail: err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
	}
	return append(statuses, IngestBatch(ctx, docs, deps, workers)...)
}
