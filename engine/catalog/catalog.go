// Package catalog keeps the Neo4j record of the ingestion corpus: which
// documents are in the knowledge store, which projects they came from, and
// the corpus-level statistics the API reports. The vector store answers
// "what text is similar"; the catalog answers "what do we hold and where
// did it come from".
package catalog

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

// Catalog provides document/project bookkeeping on Neo4j.
type Catalog struct {
	driver neo4j.DriverWithContext
}

// New creates a Catalog on an existing driver. The driver's lifecycle is
// owned by the caller.
func New(driver neo4j.DriverWithContext) *Catalog {
	return &Catalog{driver: driver}
}

// ProjectSummary is one historical project as the similar-project mode
// reports it.
type ProjectSummary struct {
	VoltageClass string `json:"voltage_class"`
	ProjectType  string `json:"project_type"`
	Documents    int64  `json:"documents"`
}

// Stats aggregates the corpus by its structural metadata.
type Stats struct {
	Documents      int64            `json:"documents"`
	Chunks         int64            `json:"chunks"`
	ByProjectType  map[string]int64 `json:"by_project_type"`
	ByVoltageClass map[string]int64 `json:"by_voltage_class"`
}

// RecordDocument upserts the document node and links it to its project
// node. Re-ingestion updates the existing node rather than duplicating it.
func (c *Catalog) RecordDocument(ctx context.Context, id, title string, fp domain.ProjectFingerprint, chunks int) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (d:Document {id: $id})
		SET d.title = $title, d.chunks = $chunks, d.ingested_at = $at
		MERGE (p:Project {voltage_class: $voltage, project_type: $ptype})
		MERGE (d)-[:BELONGS_TO]->(p)`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":      id,
		"title":   title,
		"chunks":  chunks,
		"at":      time.Now().UTC().Format(time.RFC3339),
		"voltage": fp.VoltageClass,
		"ptype":   fp.ProjectType,
	})
	return err
}

// RemoveDocument deletes the document node; project nodes stay for other
// documents that share them.
func (c *Catalog) RemoveDocument(ctx context.Context, id string) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (d:Document {id: $id}) DETACH DELETE d`, map[string]any{"id": id})
	return err
}

// SimilarProjects returns projects matching the fingerprint, most
// documented first. Empty fingerprint fields match anything.
func (c *Catalog) SimilarProjects(ctx context.Context, fp domain.ProjectFingerprint, limit int) ([]ProjectSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (d:Document)-[:BELONGS_TO]->(p:Project)
		WHERE ($voltage = '' OR p.voltage_class = $voltage)
		  AND ($ptype = '' OR p.project_type = $ptype)
		RETURN p.voltage_class AS voltage, p.project_type AS ptype, count(d) AS docs
		ORDER BY docs DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"voltage": fp.VoltageClass,
		"ptype":   fp.ProjectType,
		"limit":   limit,
	})
	if err != nil {
		return nil, err
	}

	var out []ProjectSummary
	for result.Next(ctx) {
		rec := result.Record()
		voltage, _, _ := neo4j.GetRecordValue[string](rec, "voltage")
		ptype, _, _ := neo4j.GetRecordValue[string](rec, "ptype")
		docs, _, _ := neo4j.GetRecordValue[int64](rec, "docs")
		out = append(out, ProjectSummary{VoltageClass: voltage, ProjectType: ptype, Documents: docs})
	}
	return out, result.Err()
}

// Stats aggregates document and chunk counts by project metadata.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	stats := Stats{ByProjectType: map[string]int64{}, ByVoltageClass: map[string]int64{}}

	cypher := `MATCH (d:Document)-[:BELONGS_TO]->(p:Project)
		RETURN p.voltage_class AS voltage, p.project_type AS ptype,
		       count(d) AS docs, sum(d.chunks) AS chunks`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return stats, err
	}
	for result.Next(ctx) {
		rec := result.Record()
		voltage, _, _ := neo4j.GetRecordValue[string](rec, "voltage")
		ptype, _, _ := neo4j.GetRecordValue[string](rec, "ptype")
		docs, _, _ := neo4j.GetRecordValue[int64](rec, "docs")
		chunks, _, _ := neo4j.GetRecordValue[int64](rec, "chunks")
		stats.Documents += docs
		stats.Chunks += chunks
		stats.ByProjectType[ptype] += docs
		stats.ByVoltageClass[voltage] += docs
	}
	return stats, result.Err()
}
