package postgres

import (
	"context"
	"fmt"
)

const documentsSQL = `SELECT id, file_name, COALESCE(document_type, '') AS document_type, content
FROM documents_full
WHERE content IS NOT NULL AND content <> ''
ORDER BY id`

// SourceDocument is one full document eligible for passage indexing.
type SourceDocument struct {
	ID           string
	FileName     string
	DocumentType string
	Content      string
}

// Documents reads every non-empty document from documents_full.
func Documents(ctx context.Context, db Querier) ([]SourceDocument, error) {
	rows, err := db.Query(ctx, documentsSQL)
	if err != nil {
		return nil, fmt.Errorf("query documents_full: %w", err)
	}
	maps, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make([]SourceDocument, 0, len(maps))
	for _, m := range maps {
		out = append(out, SourceDocument{
			ID:           fmt.Sprint(m["id"]),
			FileName:     str(m["file_name"]),
			DocumentType: str(m["document_type"]),
			Content:      str(m["content"]),
		})
	}
	return out, nil
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
