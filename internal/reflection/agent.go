package reflection

import (
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
)

// Scoring constants of the 0-10 confidence scale.
const (
	MaxConfidence      = 10.0
	IssuePenalty       = 3.0
	NoSourcePenalty    = 2.0
	ContinueBelowScore = 8.0
)

// Findings and the action that addresses each.
const (
	MissingSummary = "Ajouter un résumé synthétique."
	MissingSources = "Pas de sources référencées."
	MissingMetrics = "Aucune métrique chiffrée."

	ActionSummary = "Générer une synthèse courte à partir des données brutes."
	ActionSources = "Inclure au moins un document source."
	ActionMetrics = "Calculer au moins un indicateur financier ou opérationnel."
)

// Agent critiques final answers.
type Agent struct{}

// NewAgent creates a reflection agent.
func NewAgent() *Agent {
	return &Agent{}
}

// Reflect critiques response. sources are the sources the orchestrator
// reported for it.
func (a *Agent) Reflect(query string, response plan.Response, sources []string) plan.Reflection {
	result := plan.Reflection{
		MissingChecks:       []string{},
		ContradictionsFound: []string{},
		ImprovementActions:  []string{},
	}

	if response.Summary() == "" {
		result.MissingChecks = append(result.MissingChecks, MissingSummary)
		result.ImprovementActions = append(result.ImprovementActions, ActionSummary)
	}
	if len(sources) == 0 {
		result.MissingChecks = append(result.MissingChecks, MissingSources)
		result.ImprovementActions = append(result.ImprovementActions, ActionSources)
	}
	if len(response.Metrics()) == 0 {
		result.MissingChecks = append(result.MissingChecks, MissingMetrics)
		result.ImprovementActions = append(result.ImprovementActions, ActionMetrics)
	}
	result.ContradictionsFound = append(result.ContradictionsFound, response.Warnings()...)

	confidence := MaxConfidence
	if len(result.MissingChecks) > 0 || len(result.ContradictionsFound) > 0 {
		confidence -= IssuePenalty
	}
	if len(sources) == 0 {
		confidence -= NoSourcePenalty
	}
	result.Confidence = min(max(confidence, 0), MaxConfidence)
	result.ShouldContinue = result.Confidence < ContinueBelowScore
	return result
}
