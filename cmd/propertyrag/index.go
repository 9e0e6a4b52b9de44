package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DanielJandric/embeddingsall-sub000/internal/tools/postgres"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools/vector"
)

var (
	indexChunkSize    int
	indexChunkOverlap int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index documents_full passages into the vector store",
	Long: `Read every document from documents_full, split it into overlapping
passages and add them to the vector collection used by semantic_search.
Use a persistent vector.path so the index outlives the command.

Examples:
  propertyrag index
  propertyrag index --chunk-size 800 --overlap 100`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexChunkSize, "chunk-size", 1200, "maximum passage length in characters")
	indexCmd.Flags().IntVar(&indexChunkOverlap, "overlap", 200, "characters shared by consecutive passages")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath, appOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if a.pool == nil {
		return errors.New("postgres.dsn is required")
	}
	if a.vector == nil {
		return errors.New("vector.enabled is false")
	}

	docs, err := postgres.Documents(ctx, a.pool)
	if err != nil {
		return err
	}
	var passages []vector.Document
	for _, d := range docs {
		md := map[string]string{}
		if d.DocumentType != "" {
			md["document_type"] = d.DocumentType
		}
		passages = append(passages, vector.Passages(d.ID, d.FileName, d.Content, md, indexChunkSize, indexChunkOverlap)...)
	}
	if len(passages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no documents to index")
		return nil
	}
	if err := a.vector.Index(ctx, passages); err != nil {
		return err
	}
	a.logger.Info(ctx, "index complete", zap.Int("documents", len(docs)), zap.Int("passages", len(passages)))
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d passages from %d documents (collection size %d)\n",
		len(passages), len(docs), a.vector.Count())
	return nil
}
