package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DanielJandric/embeddingsall-sub000/internal/agentic"
	"github.com/DanielJandric/embeddingsall-sub000/internal/reflection"
)

var (
	queryIntent        string
	queryThreshold     float64
	queryMaxIterations int
	queryNoReflection  bool
	queryReport        string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer one question in-process and print the JSON result",
	Long: `Run one agentic query without starting a server. The result is printed
as JSON on stdout; logs go to stderr.

Examples:
  propertyrag query "combien de logements vacants à Aigle"
  propertyrag query --intent land_registry "servitudes parcelle 1234 Martigny"
  propertyrag query --threshold 0.9 --max-iterations 5 "état locatif Sion"
  propertyrag query --report markdown "rendement avenue de la gare 12 martigny"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryIntent, "intent", "", "force an intent instead of classifying the question")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "confidence threshold (default from config)")
	queryCmd.Flags().IntVar(&queryMaxIterations, "max-iterations", 0, "maximum correction iterations (default from config)")
	queryCmd.Flags().BoolVar(&queryNoReflection, "no-reflection", false, "skip the reflection pass")
	queryCmd.Flags().StringVar(&queryReport, "report", "", "also print the reflection critique to stderr (text|markdown)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	switch queryReport {
	case "", "text", "markdown":
	default:
		return fmt.Errorf("unknown report format %q (want text or markdown)", queryReport)
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath, appOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	req := agentic.Request{
		Query:         args[0],
		Intent:        queryIntent,
		MaxIterations: queryMaxIterations,
	}
	if cmd.Flags().Changed("threshold") {
		req.ConfidenceThreshold = &queryThreshold
	}
	if queryNoReflection {
		off := false
		req.EnableReflection = &off
	}

	res, err := a.service.Query(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if queryReport != "" && res.Data != nil && res.Data.Reflection != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), reflection.Format(*res.Data.Reflection, queryReport))
	}
	return nil
}
