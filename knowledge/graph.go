// Package knowledge maintains a Neo4j graph linking chat messages and
// tickets to the code files they mention. The graph is optional: a nil
// driver degrades every operation to an empty result.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Mention links one source record to the code file paths found in its text.
type Mention struct {
	OriginID string
	Source   string
	Paths    []string
}

type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// SyncMentions upserts origin and code-file nodes and the MENTIONS edges
// between them. Re-running on the same input is a no-op thanks to MERGE.
func (g *Graph) SyncMentions(ctx context.Context, mentions []Mention) error {
	if g == nil || g.driver == nil || len(mentions) == 0 {
		return nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, mention := range mentions {
			if _, err := tx.Run(ctx, `
				MERGE (o:Origin {id: $id})
				SET o.source = $source,
				    o.updated_at = datetime()
			`, map[string]any{
				"id":     mention.OriginID,
				"source": mention.Source,
			}); err != nil {
				return nil, fmt.Errorf("upsert origin node: %w", err)
			}

			for _, path := range mention.Paths {
				if _, err := tx.Run(ctx, `
					MATCH (o:Origin {id: $id})
					MERGE (f:CodeFile {path: $path})
					MERGE (o)-[:MENTIONS]->(f)
				`, map[string]any{
					"id":   mention.OriginID,
					"path": path,
				}); err != nil {
					return nil, fmt.Errorf("upsert mention edge: %w", err)
				}
			}
		}
		return nil, nil
	})

	return err
}

// RelatedFiles returns the code file paths mentioned by each of the given
// origin IDs. Origins with no mentions are simply absent from the map.
func (g *Graph) RelatedFiles(ctx context.Context, originIDs []string) (map[string][]string, error) {
	related := make(map[string][]string)
	if g == nil || g.driver == nil || len(originIDs) == 0 {
		return related, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (o:Origin)-[:MENTIONS]->(f:CodeFile)
			WHERE o.id IN $ids
			RETURN o.id AS origin, collect(f.path) AS paths
		`, map[string]any{"ids": originIDs})
		if err != nil {
			return nil, fmt.Errorf("query mentions: %w", err)
		}

		out := make(map[string][]string)
		for records.Next(ctx) {
			record := records.Record()
			origin, _ := record.Get("origin")
			rawPaths, _ := record.Get("paths")

			originID, ok := origin.(string)
			if !ok {
				continue
			}
			values, ok := rawPaths.([]any)
			if !ok {
				continue
			}

			paths := make([]string, 0, len(values))
			for _, v := range values {
				if p, ok := v.(string); ok {
					paths = append(paths, p)
				}
			}
			out[originID] = paths
		}
		return out, records.Err()
	})
	if err != nil {
		return related, err
	}

	if out, ok := result.(map[string][]string); ok {
		related = out
	}
	return related, nil
}

// Purge removes all mention data. Used by the clear command.
func (g *Graph) Purge(ctx context.Context) error {
	if g == nil || g.driver == nil {
		return nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (o:Origin) DETACH DELETE o",
		"MATCH (f:CodeFile) DETACH DELETE f",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}
