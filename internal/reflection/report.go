package reflection

import (
	"fmt"
	"strings"

	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Format renders a verdict as "markdown" or "text". Other formats yield "";
// JSON is left to the caller via json.Marshal.
func Format(result plan.Reflection, format string) string {
	switch format {
	case "markdown":
		return formatAsMarkdown(result)
	case "text":
		return formatAsText(result)
	default:
		return ""
	}
}

func verdict(result plan.Reflection) string {
	if result.ShouldContinue {
		return "another corrected pass is recommended"
	}
	return "answer accepted"
}

func formatAsMarkdown(result plan.Reflection) string {
	var sb strings.Builder

	sb.WriteString("# Reflection\n\n")
	sb.WriteString(fmt.Sprintf("**Confidence:** %.1f/10\n", result.Confidence))
	sb.WriteString(fmt.Sprintf("**Verdict:** %s\n\n", verdict(result)))

	sections := []struct {
		title string
		items []string
	}{
		{"Missing Checks", result.MissingChecks},
		{"Contradictions", result.ContradictionsFound},
		{"Improvement Actions", result.ImprovementActions},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", s.title))
		for _, item := range s.items {
			sb.WriteString(fmt.Sprintf("- %s\n", item))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatAsText(result plan.Reflection) string {
	var sb strings.Builder

	sb.WriteString("REFLECTION\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(fmt.Sprintf("Confidence: %.1f/10\n", result.Confidence))
	sb.WriteString(fmt.Sprintf("Verdict: %s\n\n", verdict(result)))

	sections := []struct {
		title string
		items []string
	}{
		{"MISSING CHECKS", result.MissingChecks},
		{"CONTRADICTIONS", result.ContradictionsFound},
		{"IMPROVEMENT ACTIONS", result.ImprovementActions},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		sb.WriteString(s.title + "\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for i, item := range s.items {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, item))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
