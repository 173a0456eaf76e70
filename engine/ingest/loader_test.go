package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeDocFile(t *testing.T, dir, name string, doc Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeDocFile(t, dir, "report.json", testDocument("doc-a"))

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != "doc-a" || doc.Text == "" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestLoadDocument_FallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	path := writeDocFile(t, dir, "unnamed.json", Document{Text: "some text"})

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != "unnamed.json" {
		t.Fatalf("got ID %q, want the file name", doc.ID)
	}
}

func TestIngestPaths_MixedLoadAndPipelineResults(t *testing.T) {
	deps, _ := testDeps(t, nil)
	dir := t.TempDir()

	good := writeDocFile(t, dir, "good.json", testDocument("doc-good"))
	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	statuses := IngestPaths(context.Background(), []string{good, broken}, deps, 2)
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}

	byID := map[string]DocStatus{}
	for _, s := range statuses {
		byID[s.DocID] = s
	}
	if byID["doc-good"].Status != StatusSuccess {
		t.Errorf("good file: %+v", byID["doc-good"])
	}
	if byID["broken.json"].Status != StatusFailed {
		t.Errorf("broken file: %+v", byID["broken.json"])
	}
}
